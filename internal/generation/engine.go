// Package generation produces flashcard sets and quizzes with a completion
// model, grounded in the learner's documents.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/document"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/prompt"
	"github.com/monetadev/moneta/internal/retrieval"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
)

// Artifact names used in SchemaViolationError.
const (
	ArtifactFlashcardSet = "flashcard-set"
	ArtifactQuiz         = "quiz"
)

// noDocuments fills the documents slot of a prompt when retrieval found
// nothing.
const noDocuments = "(none)"

// Retriever finds user-scoped context chunks.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]vectorstore.Chunk, error)
}

// DocumentReader extracts and splits a document without indexing it.
type DocumentReader interface {
	Read(doc ingest.Document) ([]document.Chunk, error)
}

// Engine implements flashcard and quiz generation.
type Engine struct {
	provider  llm.Provider
	retriever Retriever
	reader    DocumentReader
	sets      study.FlashcardSetRepository
	config    Config
	log       zerolog.Logger
}

// New creates an Engine.
func New(provider llm.Provider, retriever Retriever, reader DocumentReader, sets study.FlashcardSetRepository, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		provider:  provider,
		retriever: retriever,
		reader:    reader,
		sets:      sets,
		config:    cfg,
		log:       log,
	}
}

// GenerateFlashcardSet produces at most opts.K flashcards for the current
// user. The result is not persisted.
func (e *Engine) GenerateFlashcardSet(ctx context.Context, opts FlashcardOptions) (*study.GeneratedFlashcardSet, error) {
	if _, err := auth.UserID(ctx); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var (
		userMsg string
		err     error
	)
	switch s := opts.Strategy().(type) {
	case VectorBacked:
		userMsg, err = e.vectorContext(ctx, s)
	case DocumentBacked:
		userMsg, err = e.documentContext(ctx, s)
	default:
		err = fmt.Errorf("unsupported strategy %T", s)
	}
	if err != nil {
		return nil, err
	}

	system, err := prompt.Render(prompt.FlashcardSystem, prompt.Vars{"k": opts.K, "mode": opts.Mode})
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		Schema:      e.config.FlashcardSchema,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.FlashcardTemperature,
		TopP:        e.config.FlashcardTopP,
	}
	var out study.GeneratedFlashcardSet
	if err := e.generate(llm.WithPurpose(ctx, llm.PurposeFlashcards), ArtifactFlashcardSet, req, &out); err != nil {
		return nil, err
	}

	for _, v := range e.config.FlashcardValidators {
		if verr := v.ValidateFlashcards(&out, opts); verr != nil {
			return nil, &study.SchemaViolationError{Artifact: ArtifactFlashcardSet, Reason: verr.Message, Err: verr}
		}
	}

	e.log.Info().
		Str("strategy", strategyName(opts.Strategy())).
		Int("requested", opts.K).
		Int("generated", len(out.Flashcards)).
		Msg("flashcard set generated")
	return &out, nil
}

// vectorContext builds the user message from retrieved chunks, or from the
// empty-context template when nothing matched.
func (e *Engine) vectorContext(ctx context.Context, s VectorBacked) (string, error) {
	query := s.Query
	if e.config.RewriteQuery {
		rewritten, err := e.rewrite(ctx, s.Query)
		if err != nil {
			e.log.Warn().Err(err).Msg("query rewrite failed, using original query")
		} else if rewritten != "" {
			query = rewritten
		}
	}

	chunks, err := e.retriever.Retrieve(ctx, retrieval.Request{
		Query:     query,
		Threshold: e.config.FlashcardRetrieval.Threshold,
		TopK:      e.config.FlashcardRetrieval.TopK,
	})
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		e.log.Debug().Str("query", query).Msg("no context matched")
		return prompt.Render(prompt.FlashcardEmptyContext, prompt.Vars{"query": s.Query})
	}
	return prompt.Render(prompt.FlashcardUser, prompt.Vars{
		"context": retrieval.JoinChunks(chunks),
		"query":   s.Query,
	})
}

func (e *Engine) rewrite(ctx context.Context, query string) (string, error) {
	msg, err := prompt.Render(prompt.FlashcardRewrite, prompt.Vars{"query": query})
	if err != nil {
		return "", err
	}
	resp, err := e.provider.Generate(llm.WithPurpose(ctx, llm.PurposeRewrite), llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: msg}},
		Model:     e.config.RewriteModel,
		MaxTokens: 256,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// documentContext reads the reference document, condenses it with the
// model and builds the user message from the condensed notes.
func (e *Engine) documentContext(ctx context.Context, s DocumentBacked) (string, error) {
	chunks, err := e.reader.Read(s.Document)
	if err != nil {
		return "", err
	}
	if n := e.config.CondenseMaxChunks; n > 0 && len(chunks) > n {
		chunks = chunks[:n]
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	raw := strings.Join(texts, "\n\n")

	name := s.Document.OriginalFilename
	if name == "" {
		name = s.Document.StoredFilename()
	}
	msg, err := prompt.Render(prompt.FlashcardCondense, prompt.Vars{
		"query":    s.Query,
		"filename": name,
		"document": raw,
	})
	if err != nil {
		return "", err
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, llm.PurposeCondense), llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: msg}},
		MaxTokens: e.config.CondenseMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("condense %s: %w", name, err)
	}
	condensed := strings.TrimSpace(resp.Text())
	if condensed == "" {
		e.log.Warn().Str("filename", name).Msg("condense returned nothing, using document text")
		condensed = raw
	}

	return prompt.Render(prompt.FlashcardUser, prompt.Vars{"context": condensed, "query": s.Query})
}

// GenerateQuiz produces at most opts.K questions from a flashcard set the
// current user authored or that is public. The result is not persisted.
func (e *Engine) GenerateQuiz(ctx context.Context, opts QuizOptions) (*study.GeneratedQuiz, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	set, err := e.sets.FindByID(ctx, opts.SetID)
	if err != nil {
		var nf *study.ReferenceNotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("load flashcard set %s: %w", opts.SetID, err)
	}
	if set.AuthorID != owner && !set.IsPublic {
		return nil, study.NotFound(study.KindFlashcardSet, opts.SetID)
	}

	outline := set.Outline()
	chunks, err := e.retriever.Retrieve(ctx, retrieval.Request{
		Query:     QuizQueryPrefix + outline,
		Threshold: e.config.QuizRetrieval.Threshold,
		TopK:      e.config.QuizRetrieval.TopK,
	})
	if err != nil {
		return nil, err
	}
	documents := noDocuments
	if len(chunks) > 0 {
		documents = retrieval.JoinChunks(chunks)
	}

	system, err := prompt.Render(prompt.QuizSystem, prompt.Vars{"k": opts.K, "types": opts.AllowedTypes()})
	if err != nil {
		return nil, err
	}
	userMsg, err := prompt.Render(prompt.QuizUser, prompt.Vars{"set": outline, "documents": documents})
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		Schema:      e.config.QuizSchema,
		Model:       e.config.QuizModel,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.QuizTemperature,
	}
	var out study.GeneratedQuiz
	if err := e.generate(llm.WithPurpose(ctx, llm.PurposeQuiz), ArtifactQuiz, req, &out); err != nil {
		return nil, err
	}

	for _, v := range e.config.QuizValidators {
		if verr := v.ValidateQuiz(&out, opts); verr != nil {
			return nil, &study.SchemaViolationError{Artifact: ArtifactQuiz, Reason: verr.Message, Err: verr}
		}
	}

	e.log.Info().
		Str("set", opts.SetID.String()).
		Int("requested", opts.K).
		Int("generated", len(out.Questions)).
		Int("documents", len(chunks)).
		Msg("quiz generated")
	return &out, nil
}

// generate runs a schema-constrained call and decodes the result into out.
// Output that fails the schema or does not decode is a SchemaViolationError.
func (e *Engine) generate(ctx context.Context, artifact string, req llm.Request, out any) error {
	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		if errors.As(err, &invalid) {
			return &study.SchemaViolationError{Artifact: artifact, Reason: "response does not match schema", Err: err}
		}
		return fmt.Errorf("%s generation failed: %w", artifact, err)
	}
	if err := json.Unmarshal(resp.Content, out); err != nil {
		return &study.SchemaViolationError{Artifact: artifact, Reason: "malformed JSON", Err: err}
	}
	return nil
}

func strategyName(s Strategy) string {
	if _, ok := s.(DocumentBacked); ok {
		return "document"
	}
	return "vector"
}
