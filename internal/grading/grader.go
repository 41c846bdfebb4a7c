// Package grading asks the completion model to grade a quiz submission.
package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/prompt"
	"github.com/monetadev/moneta/internal/retrieval"
	"github.com/monetadev/moneta/internal/schemas"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
)

// Artifact is the name grading schema violations carry.
const Artifact = "graded-quiz"

// QueryPrefix precedes the quiz and set outlines in the retrieval query.
const QueryPrefix = "Educational content for grading the following quiz and the flashcard set it was written from:\n"

// Retriever finds user-scoped context chunks.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]vectorstore.Chunk, error)
}

// Config controls the Grader.
type Config struct {
	Schema      *llm.Schema
	Threshold   float64
	TopK        int
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the standard grading settings.
func DefaultConfig() Config {
	return Config{
		Schema:    schemas.MustLatest(schemas.GradedQuiz),
		Threshold: 0.75,
		TopK:      5,
		MaxTokens: 4096,
	}
}

// Grader implements model-based grading.
type Grader struct {
	provider  llm.Provider
	retriever Retriever
	quizzes   study.QuizRepository
	sets      study.FlashcardSetRepository
	config    Config
	log       zerolog.Logger
}

// New creates a Grader.
func New(provider llm.Provider, retriever Retriever, quizzes study.QuizRepository, sets study.FlashcardSetRepository, cfg Config, log zerolog.Logger) *Grader {
	return &Grader{
		provider:  provider,
		retriever: retriever,
		quizzes:   quizzes,
		sets:      sets,
		config:    cfg,
		log:       log,
	}
}

// Grade returns the model's verdict on input. A missing quiz or set is a
// *study.ReferenceNotFoundError; any later failure is a *study.GradingError
// wrapping its cause. Nothing is persisted.
func (g *Grader) Grade(ctx context.Context, input study.AttemptInput) (*study.GradedQuiz, *study.Quiz, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, nil, err
	}
	if input.QuizID == uuid.Nil {
		return nil, nil, errors.New("quiz id is required")
	}
	if len(input.Responses) == 0 {
		return nil, nil, errors.New("no responses submitted")
	}

	quiz, err := g.quizzes.FindByID(ctx, input.QuizID)
	if err != nil {
		return nil, nil, lookupErr(err, "quiz", input.QuizID)
	}
	set, err := g.sets.FindByID(ctx, quiz.FlashcardSetID)
	if err != nil {
		return nil, nil, lookupErr(err, "flashcard set", quiz.FlashcardSetID)
	}
	if quiz.AuthorID != owner && !set.IsPublic {
		return nil, nil, study.NotFound(study.KindQuiz, input.QuizID)
	}

	fail := func(err error) (*study.GradedQuiz, *study.Quiz, error) {
		return nil, nil, &study.GradingError{QuizID: quiz.ID, Err: err}
	}

	quizOutline, setOutline := quiz.Outline(), set.Outline()
	chunks, err := g.retriever.Retrieve(ctx, retrieval.Request{
		Query:     QueryPrefix + quizOutline + "\n" + setOutline,
		Threshold: g.config.Threshold,
		TopK:      g.config.TopK,
	})
	if err != nil {
		return fail(err)
	}
	documents := "(none)"
	if len(chunks) > 0 {
		documents = retrieval.JoinChunks(chunks)
	}

	system, err := prompt.Render(prompt.GradeSystem, nil)
	if err != nil {
		return fail(err)
	}
	userMsg, err := prompt.Render(prompt.GradeUser, prompt.Vars{
		"quiz":      quizOutline,
		"set":       setOutline,
		"documents": documents,
		"responses": FormatResponses(quiz, input.Responses),
	})
	if err != nil {
		return fail(err)
	}

	resp, err := g.provider.Generate(llm.WithPurpose(ctx, llm.PurposeGrading), llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		Schema:      g.config.Schema,
		Model:       g.config.Model,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		if errors.As(err, &invalid) {
			return fail(&study.SchemaViolationError{Artifact: Artifact, Reason: "response does not match schema", Err: err})
		}
		return fail(err)
	}

	var graded study.GradedQuiz
	if err := json.Unmarshal(resp.Content, &graded); err != nil {
		return fail(&study.SchemaViolationError{Artifact: Artifact, Reason: "malformed JSON", Err: err})
	}
	if reason := validate(&graded); reason != "" {
		return fail(&study.SchemaViolationError{Artifact: Artifact, Reason: reason})
	}

	g.log.Info().
		Str("quiz", quiz.ID.String()).
		Int("submitted", len(input.Responses)).
		Int("graded", len(graded.Questions)).
		Msg("quiz graded")
	return &graded, quiz, nil
}

// FormatResponses renders submitted answers with their question text, in
// submission order. Answers to unknown positions are listed without text.
func FormatResponses(quiz *study.Quiz, responses []study.AnswerInput) string {
	byPos := quiz.QuestionsByPosition()
	lines := make([]string, len(responses))
	for i, r := range responses {
		content := "(unknown question)"
		if q, ok := byPos[r.Position]; ok {
			content = q.Content
		}
		lines[i] = fmt.Sprintf("  Position: %d, Question: %s, Response: %s", r.Position, content, r.Response)
	}
	return strings.Join(lines, "\n")
}

func validate(g *study.GradedQuiz) string {
	if len(g.Questions) == 0 {
		return "no questions graded"
	}
	seen := make(map[int]bool, len(g.Questions))
	for _, q := range g.Questions {
		if q.Position < 1 {
			return fmt.Sprintf("graded question has position %d", q.Position)
		}
		if seen[q.Position] {
			return fmt.Sprintf("position %d graded twice", q.Position)
		}
		seen[q.Position] = true
	}
	return ""
}

func lookupErr(err error, what string, id uuid.UUID) error {
	var nf *study.ReferenceNotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}
