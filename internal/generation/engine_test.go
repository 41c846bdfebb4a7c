package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/document"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/retrieval"
	"github.com/monetadev/moneta/internal/store"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dims = 256

type fixture struct {
	provider *llm.MockProvider
	vectors  *vectorstore.Memory
	embedder *llm.HashEmbedder
	db       *store.Store
	engine   *Engine
	user     uuid.UUID
	ctx      context.Context
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		provider: llm.NewMockProvider(),
		vectors:  vectorstore.NewMemory(),
		embedder: llm.NewHashEmbedder(dims),
		db:       db,
		user:     uuid.New(),
	}
	f.ctx = auth.WithUser(context.Background(), f.user)

	cfg := DefaultConfig()
	cfg.RewriteQuery = false
	if mutate != nil {
		mutate(&cfg)
	}
	reader := ingest.New(f.vectors, f.embedder, ingest.DefaultConfig(), zerolog.Nop())
	f.engine = New(f.provider, retrieval.New(f.vectors, f.embedder, zerolog.Nop()), reader, db.FlashcardSets(), cfg, zerolog.Nop())
	return f
}

func (f *fixture) index(t *testing.T, text string) {
	t.Helper()
	vecs, err := f.embedder.Embed(context.Background(), []string{text})
	require.NoError(t, err)
	require.NoError(t, f.vectors.Upsert(context.Background(), []vectorstore.Chunk{{
		ID:        uuid.NewString(),
		Text:      text,
		Embedding: vecs[0],
		Metadata: map[string]string{
			vectorstore.KeyOwner:     f.user.String(),
			vectorstore.KeySourceDoc: "doc-1",
		},
	}}))
}

func (f *fixture) saveSet(t *testing.T, author uuid.UUID, public bool) *study.FlashcardSet {
	t.Helper()
	set := &study.FlashcardSet{
		Title:       "Cell organelles",
		Description: "Structures inside eukaryotic cells",
		IsPublic:    public,
		AuthorID:    author,
		Flashcards: []study.Flashcard{
			{ID: uuid.New(), Position: 1, Term: "Nucleus", Definition: "Stores genetic material"},
			{ID: uuid.New(), Position: 2, Term: "Ribosome", Definition: "Synthesizes proteins"},
		},
	}
	require.NoError(t, f.db.FlashcardSets().Save(context.Background(), set))
	return set
}

func cards(n int) *study.GeneratedFlashcardSet {
	set := &study.GeneratedFlashcardSet{Title: "Photosynthesis", Description: "How plants make sugar"}
	for i := 1; i <= n; i++ {
		set.Flashcards = append(set.Flashcards, study.GeneratedFlashcard{
			Term:       fmt.Sprintf("Term %d", i),
			Definition: fmt.Sprintf("Definition %d", i),
			Position:   i,
		})
	}
	return set
}

func ptr(b bool) *bool { return &b }

func trueFalse(pos int) study.GeneratedQuestion {
	return study.GeneratedQuestion{
		Content:  fmt.Sprintf("Statement %d is true.", pos),
		Position: pos,
		Type:     study.TrueFalse,
		Options: []study.GeneratedOption{
			{Content: "True", Position: 1, Correct: ptr(true)},
			{Content: "False", Position: 2, Correct: ptr(false)},
		},
	}
}

func TestGenerateFlashcardSet_EmptyContext(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RewriteQuery = true })
	f.provider.AddText("photosynthesis light dependent reactions")
	f.provider.AddJSON(cards(5))

	got, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "photosynthesis", K: 5})
	require.NoError(t, err)
	assert.Len(t, got.Flashcards, 5)
	assert.Equal(t, "Photosynthesis", got.Title)

	require.Equal(t, 2, f.provider.CallCount())
	rewrite := f.provider.Calls[0]
	assert.Nil(t, rewrite.Schema)
	assert.Contains(t, rewrite.Messages[0].Content, "Request: photosynthesis")

	gen := f.provider.Calls[1]
	assert.Contains(t, gen.Messages[0].Content, "No study documents matched")
	assert.Contains(t, gen.Messages[0].Content, "Request: photosynthesis")
	assert.Contains(t, gen.System, "exactly 5 flashcards")
	assert.Contains(t, gen.System, "Definition style: brief")
	assert.Equal(t, 0.4, gen.Temperature)
	assert.Equal(t, 0.8, gen.TopP)
	require.NotNil(t, gen.Schema)
	assert.Equal(t, "flashcard-set", gen.Schema.Name)
}

func TestGenerateFlashcardSet_UsesRetrievedContext(t *testing.T) {
	f := newFixture(t, nil)
	f.index(t, "chlorophyll absorbs red and blue light")
	f.provider.AddJSON(cards(3))

	_, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{
		Query: "chlorophyll absorbs red and blue light",
		K:     3,
		Mode:  Verbose,
	})
	require.NoError(t, err)

	call, ok := f.provider.LastCall()
	require.True(t, ok)
	assert.Contains(t, call.Messages[0].Content, "Context from the learner's documents")
	assert.Contains(t, call.Messages[0].Content, "chlorophyll absorbs red and blue light")
	assert.Contains(t, call.System, "Definition style: verbose")
}

func TestGenerateFlashcardSet_OtherUsersChunksAreInvisible(t *testing.T) {
	f := newFixture(t, nil)
	f.index(t, "secret notes on the calvin cycle")
	f.provider.AddJSON(cards(1))

	other := auth.WithUser(context.Background(), uuid.New())
	_, err := f.engine.GenerateFlashcardSet(other, FlashcardOptions{Query: "secret notes on the calvin cycle", K: 1})
	require.NoError(t, err)

	call, _ := f.provider.LastCall()
	assert.NotContains(t, call.Messages[0].Content, "secret notes")
	assert.Contains(t, call.Messages[0].Content, "No study documents matched")
}

func TestGenerateFlashcardSet_RewriteFailureFallsBack(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RewriteQuery = true })
	f.provider.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	f.provider.AddJSON(cards(2))

	got, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "mitosis", K: 2})
	require.NoError(t, err)
	assert.Len(t, got.Flashcards, 2)
}

func TestGenerateFlashcardSet_SchemaViolation(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.AddJSON(map[string]any{
		"title":               "x",
		"description":         "y",
		"generatedFlashcards": []any{},
		"confidence":          0.9,
	})

	_, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "mitosis", K: 2})
	var sv *study.SchemaViolationError
	require.True(t, errors.As(err, &sv), "got %v", err)
	assert.Equal(t, ArtifactFlashcardSet, sv.Artifact)

	var invalid *llm.ErrInvalidResponse
	assert.True(t, errors.As(err, &invalid))
}

func TestGenerateFlashcardSet_SemanticViolations(t *testing.T) {
	dup := cards(2)
	dup.Flashcards[1].Position = 1
	zero := cards(1)
	zero.Flashcards[0].Position = 0

	tests := []struct {
		name string
		k    int
		out  *study.GeneratedFlashcardSet
	}{
		{"too many", 2, cards(3)},
		{"none", 2, cards(0)},
		{"duplicate position", 2, dup},
		{"position below one", 2, zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tt.out.Flashcards == nil {
				tt.out.Flashcards = []study.GeneratedFlashcard{}
			}
			f.provider.AddJSON(tt.out)

			got, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "mitosis", K: tt.k})
			assert.Nil(t, got)
			var sv *study.SchemaViolationError
			require.True(t, errors.As(err, &sv), "got %v", err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "structural", verr.Validator)
		})
	}
}

func TestGenerateFlashcardSet_ProviderFailureIsNotSchemaViolation(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.AddResponse(llm.MockResponse{Err: &llm.ErrRateLimit{}})

	_, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "mitosis", K: 2})
	require.Error(t, err)
	var sv *study.SchemaViolationError
	assert.False(t, errors.As(err, &sv))
	var rl *llm.ErrRateLimit
	assert.True(t, errors.As(err, &rl))
}

func TestGenerateFlashcardSet_InvalidOptions(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "", K: 5})
	assert.Error(t, err)
	_, err = f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "cells", K: 0})
	assert.Error(t, err)
	_, err = f.engine.GenerateFlashcardSet(context.Background(), FlashcardOptions{Query: "cells", K: 5})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Equal(t, 0, f.provider.CallCount())
}

func TestGenerateFlashcardSet_DocumentBacked(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.AddText("Condensed: the cell membrane regulates transport.")
	f.provider.AddJSON(cards(2))

	doc := ingest.Document{
		ID:               "upload-1",
		OriginalFilename: "membranes.txt",
		Kind:             document.Generic,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("The cell membrane is a lipid bilayer that regulates transport in and out of the cell.")), nil
		},
	}
	opts := FlashcardOptions{Query: "membranes", K: 2, Reference: &doc}
	assert.IsType(t, DocumentBacked{}, opts.Strategy())

	_, err := f.engine.GenerateFlashcardSet(f.ctx, opts)
	require.NoError(t, err)
	require.Equal(t, 2, f.provider.CallCount())

	condense := f.provider.Calls[0]
	assert.Nil(t, condense.Schema)
	assert.Contains(t, condense.Messages[0].Content, `Document "membranes.txt"`)
	assert.Contains(t, condense.Messages[0].Content, "lipid bilayer")
	assert.Contains(t, condense.Messages[0].Content, "request: membranes")

	gen := f.provider.Calls[1]
	assert.Contains(t, gen.Messages[0].Content, "Condensed: the cell membrane regulates transport.")
	assert.Equal(t, 0, f.vectors.Len(), "document strategy does not index")
}

func TestGenerateFlashcardSet_DocumentUnreadable(t *testing.T) {
	f := newFixture(t, nil)
	doc := ingest.Document{ID: "x", OriginalFilename: "clip.mp4", Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("...")), nil
	}}

	_, err := f.engine.GenerateFlashcardSet(f.ctx, FlashcardOptions{Query: "q", K: 1, Reference: &doc})
	var ie *study.IngestionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 0, f.provider.CallCount())
}

func TestGenerateQuiz(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.QuizModel = "gpt-4.1" })
	set := f.saveSet(t, f.user, false)
	f.provider.AddJSON(&study.GeneratedQuiz{
		Title:       "Organelles quiz",
		Description: "Check your knowledge",
		Questions:   []study.GeneratedQuestion{trueFalse(1), trueFalse(2)},
	})

	got, err := f.engine.GenerateQuiz(f.ctx, QuizOptions{SetID: set.ID, K: 2, Types: []study.QuestionType{study.TrueFalse}})
	require.NoError(t, err)
	assert.Len(t, got.Questions, 2)

	call, _ := f.provider.LastCall()
	assert.Equal(t, "gpt-4.1", call.Model)
	assert.Equal(t, 0.3, call.Temperature)
	assert.Equal(t, "generated-quiz", call.Schema.Name)
	assert.Contains(t, call.System, "exactly 2 questions")
	assert.Contains(t, call.System, "Use only these question types: TRUE_FALSE.")
	assert.Contains(t, call.Messages[0].Content, "Position: 1, Term: Nucleus, Definition: Stores genetic material")
	assert.Contains(t, call.Messages[0].Content, noDocuments)
}

func TestGenerateQuiz_AllTypesByDefault(t *testing.T) {
	f := newFixture(t, nil)
	set := f.saveSet(t, uuid.New(), true)
	f.provider.AddJSON(&study.GeneratedQuiz{Title: "Q", Description: "D", Questions: []study.GeneratedQuestion{trueFalse(1)}})

	_, err := f.engine.GenerateQuiz(f.ctx, QuizOptions{SetID: set.ID, K: 1})
	require.NoError(t, err)
	call, _ := f.provider.LastCall()
	assert.Contains(t, call.System, "MULTIPLE_CHOICE_SINGLE, MULTIPLE_CHOICE_MULTI, TRUE_FALSE, SHORT_ANSWER")
}

func TestGenerateQuiz_MissingOrHiddenSet(t *testing.T) {
	f := newFixture(t, nil)
	hidden := f.saveSet(t, uuid.New(), false)

	for _, id := range []uuid.UUID{uuid.New(), hidden.ID} {
		_, err := f.engine.GenerateQuiz(f.ctx, QuizOptions{SetID: id, K: 3})
		var nf *study.ReferenceNotFoundError
		require.True(t, errors.As(err, &nf), "got %v", err)
		assert.Equal(t, study.KindFlashcardSet, nf.Kind)
		assert.Equal(t, id, nf.ID)
	}
	assert.Equal(t, 0, f.provider.CallCount())
}

func TestGenerateQuiz_DisallowedType(t *testing.T) {
	f := newFixture(t, nil)
	set := f.saveSet(t, f.user, false)
	f.provider.AddJSON(&study.GeneratedQuiz{Title: "Q", Description: "D", Questions: []study.GeneratedQuestion{trueFalse(1)}})

	_, err := f.engine.GenerateQuiz(f.ctx, QuizOptions{SetID: set.ID, K: 1, Types: []study.QuestionType{study.ShortAnswer}})
	var sv *study.SchemaViolationError
	require.True(t, errors.As(err, &sv))
	assert.Equal(t, ArtifactQuiz, sv.Artifact)
	assert.Contains(t, sv.Reason, "TRUE_FALSE")
}

func TestGenerateQuiz_UnknownTypeRejectedBeforeCall(t *testing.T) {
	f := newFixture(t, nil)
	set := f.saveSet(t, f.user, false)

	_, err := f.engine.GenerateQuiz(f.ctx, QuizOptions{SetID: set.ID, K: 1, Types: []study.QuestionType{"ESSAY"}})
	assert.Error(t, err)
	assert.Equal(t, 0, f.provider.CallCount())
}

func TestGenerateQuiz_UsesSupplementaryDocuments(t *testing.T) {
	f := newFixture(t, nil)
	set := f.saveSet(t, f.user, false)
	f.index(t, QuizQueryPrefix+set.Outline())
	f.provider.AddJSON(&study.GeneratedQuiz{Title: "Q", Description: "D", Questions: []study.GeneratedQuestion{trueFalse(1)}})

	_, err := f.engine.GenerateQuiz(f.ctx, QuizOptions{SetID: set.ID, K: 1})
	require.NoError(t, err)
	call, _ := f.provider.LastCall()
	assert.NotContains(t, call.Messages[0].Content, noDocuments)
}

func TestConfigForProvider(t *testing.T) {
	cfg := DefaultConfig().ForProvider("openai")
	assert.Equal(t, "gpt-4.1", cfg.QuizModel)
	assert.Equal(t, "gpt-4o-mini", cfg.RewriteModel)

	cfg = DefaultConfig().ForProvider("local")
	assert.Empty(t, cfg.QuizModel)

	custom := DefaultConfig()
	custom.QuizModel = "my-model"
	assert.Equal(t, "my-model", custom.ForProvider("openai").QuizModel)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("VERBOSE")
	require.NoError(t, err)
	assert.Equal(t, Verbose, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Brief, m)
	_, err = ParseMode("long")
	assert.Error(t, err)
}
