package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{tableSets, tableCards, tableQuizzes, tableQuestions, tableOptions, tableAttempts, tableResponses, tableLLMEvents, tableVectors} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func sampleSet(author uuid.UUID) *study.FlashcardSet {
	return &study.FlashcardSet{
		Title:       "Cells",
		Description: "Organelles",
		AuthorID:    author,
		Flashcards: []study.Flashcard{
			{Position: 2, Term: "Ribosome", Definition: "Protein factory"},
			{Position: 1, Term: "Mitochondria", Definition: "Powerhouse"},
		},
	}
}

func TestFlashcardSet_SaveFindDelete(t *testing.T) {
	s := openTestStore(t)
	repo := s.FlashcardSets()
	ctx := context.Background()
	author := uuid.New()

	set := sampleSet(author)
	require.NoError(t, repo.Save(ctx, set))
	require.NotEqual(t, uuid.Nil, set.ID)

	got, err := repo.FindByID(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cells", got.Title)
	assert.Equal(t, author, got.AuthorID)
	require.Len(t, got.Flashcards, 2)
	assert.Equal(t, 1, got.Flashcards[0].Position, "flashcards are ordered by position")
	assert.Equal(t, "Mitochondria", got.Flashcards[0].Term)

	list, err := repo.ListByAuthor(ctx, author)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, set.ID))
	_, err = repo.FindByID(ctx, set.ID)
	var nf *study.ReferenceNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, study.KindFlashcardSet, nf.Kind)
}

func TestFlashcardSet_SaveReplacesFlashcards(t *testing.T) {
	s := openTestStore(t)
	repo := s.FlashcardSets()
	ctx := context.Background()

	set := sampleSet(uuid.New())
	require.NoError(t, repo.Save(ctx, set))

	set.Flashcards = []study.Flashcard{{Position: 1, Term: "Nucleus", Definition: "Holds DNA"}}
	require.NoError(t, repo.Save(ctx, set))

	got, err := repo.FindByID(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, got.Flashcards, 1)
	assert.Equal(t, "Nucleus", got.Flashcards[0].Term)
}

func sampleQuiz(author, setID uuid.UUID) *study.Quiz {
	return &study.Quiz{
		Title:          "Cells quiz",
		AuthorID:       author,
		FlashcardSetID: setID,
		Questions: []study.Question{
			{Position: 1, Content: "Powerhouse?", Type: study.MultipleChoiceSingle, Options: []study.Option{
				{Position: 1, Content: "Mitochondria", IsCorrect: true},
				{Position: 2, Content: "Nucleus"},
			}},
			{Position: 2, Content: "Cells divide.", Type: study.TrueFalse, Options: []study.Option{
				{Position: 1, Content: "True", IsCorrect: true},
				{Position: 2, Content: "False"},
			}},
			{Position: 3, Content: "Capital of France?", Type: study.ShortAnswer, Options: []study.Option{
				{Position: 1, Content: "Paris", IsCorrect: true},
			}},
		},
	}
}

func TestQuiz_SaveFind(t *testing.T) {
	s := openTestStore(t)
	repo := s.Quizzes()
	ctx := context.Background()

	quiz := sampleQuiz(uuid.New(), uuid.New())
	require.NoError(t, repo.Save(ctx, quiz))

	got, err := repo.FindByID(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 3)
	assert.Equal(t, study.TrueFalse, got.Questions[1].Type)
	require.Len(t, got.Questions[0].Options, 2)
	assert.True(t, got.Questions[0].Options[0].IsCorrect)
	assert.False(t, got.Questions[0].Options[1].IsCorrect)
	assert.Equal(t, quiz.Questions[2].ID, got.Questions[2].ID)
}

func TestQuiz_FindMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Quizzes().FindByID(context.Background(), uuid.New())
	var nf *study.ReferenceNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, study.KindQuiz, nf.Kind)
}

func TestAttempts_SaveListAverage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	quiz := sampleQuiz(uuid.New(), uuid.New())
	require.NoError(t, s.Quizzes().Save(ctx, quiz))

	userA, userB := uuid.New(), uuid.New()
	repo := s.Attempts()
	base := time.Now().UTC()
	for i, a := range []study.QuizAttempt{
		{QuizID: quiz.ID, UserID: userA, Score: 50, AttemptDate: base},
		{QuizID: quiz.ID, UserID: userA, Score: 100, AttemptDate: base.Add(time.Minute)},
		{QuizID: quiz.ID, UserID: userB, Score: 0, AttemptDate: base.Add(2 * time.Minute), Responses: []study.QuizAttemptResponse{
			{QuestionID: quiz.Questions[0].ID, ResponseText: "Nucleus", Feedback: "No"},
		}},
	} {
		a := a
		require.NoError(t, repo.Save(ctx, &a), "attempt %d", i)
	}

	page, err := repo.List(ctx, study.AttemptFilter{UserID: userA}, study.Page{Number: 0, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 100, page.Items[0].Score, "newest first")

	avg, ok, err := repo.AverageScore(ctx, study.AttemptFilter{UserID: userA, QuizID: quiz.ID})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 75.0, avg, 0.001)

	avg, ok, err = repo.AverageScore(ctx, study.AttemptFilter{QuizID: quiz.ID})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 50.0, avg, 0.001)

	_, ok, err = repo.AverageScore(ctx, study.AttemptFilter{UserID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := repo.List(ctx, study.AttemptFilter{UserID: userB}, study.Page{})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	got, err := repo.FindByID(ctx, all.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, got.Responses, 1)
	assert.Equal(t, "Nucleus", got.Responses[0].ResponseText)
	assert.False(t, got.Responses[0].IsCorrect)
}

func TestAttempts_DeleteMissing(t *testing.T) {
	s := openTestStore(t)
	err := s.Attempts().Delete(context.Background(), uuid.New())
	var nf *study.ReferenceNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestLLMEvents_AppendQueryStats(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for _, d := range []LLMRequestEventData{
		{Provider: "mock", Model: "gpt-4o-mini", Purpose: "flashcard-generation", InputTokens: 100, OutputTokens: 50, LatencyMs: 10, Success: true},
		{Provider: "mock", Model: "gpt-4.1", Purpose: "quiz-generation", InputTokens: 200, OutputTokens: 80, LatencyMs: 30, Success: true},
		{Provider: "mock", Model: "gpt-4o-mini", Purpose: "flashcard-generation", InputTokens: 10, LatencyMs: 20, ErrorMessage: "boom", RequestBody: "[user]\nhi"},
	} {
		require.NoError(t, repo.AppendLLMRequest(ctx, d))
	}

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].Sequence, "newest first")
	assert.False(t, events[0].Success)

	filtered, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "quiz-generation"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	e, err := repo.GetLLMEvent(ctx, events[0].ID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "[user]\nhi", e.RequestBody)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, "flashcard-generation", byPurpose[0].Purpose)
	assert.Equal(t, 2, byPurpose[0].Calls)
	assert.Equal(t, 110, byPurpose[0].InputTokens)
	assert.Equal(t, int64(15), byPurpose[0].AvgLatencyMs)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 2)
	assert.Equal(t, "gpt-4.1", byModel[0].Model)
}

func TestVectors_QueryFilterDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	v := s.Vectors()

	chunk := func(id, owner, doc string, emb ...float32) vectorstore.Chunk {
		return vectorstore.Chunk{
			ID:        id,
			Text:      "text " + id,
			Embedding: emb,
			Metadata:  map[string]string{vectorstore.KeyOwner: owner, vectorstore.KeySourceDoc: doc},
		}
	}
	require.NoError(t, v.Upsert(ctx, []vectorstore.Chunk{
		chunk("a", "u1", "d1", 1, 0),
		chunk("b", "u1", "d2", 0.6, 0.8),
		chunk("c", "u2", "d1", 1, 0),
	}))
	require.NoError(t, v.Upsert(ctx, []vectorstore.Chunk{chunk("b", "u1", "d2", 0.8, 0.6)}))

	got, err := v.Query(ctx, vectorstore.Query{
		Embedding: []float32{1, 0},
		Threshold: 0.5,
		TopK:      5,
		Filter:    vectorstore.Eq(vectorstore.KeyOwner, "u1"),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.InDelta(t, 0.8, got[1].Score, 1e-6)
	assert.Equal(t, "d2", got[1].Metadata[vectorstore.KeySourceDoc])

	conflicting := vectorstore.And(
		vectorstore.Eq(vectorstore.KeyOwner, "u1"),
		vectorstore.Eq(vectorstore.KeyOwner, "u2"),
	)
	got, err = v.Query(ctx, vectorstore.Query{Embedding: []float32{1, 0}, Threshold: -1, Filter: conflicting})
	require.NoError(t, err)
	assert.Empty(t, got)
	n, err := v.Delete(ctx, conflicting)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = v.Delete(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrNoFilter)

	n, err = v.Delete(ctx, vectorstore.And(
		vectorstore.Eq(vectorstore.KeyOwner, "u1"),
		vectorstore.Eq(vectorstore.KeySourceDoc, "d1"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = v.Query(ctx, vectorstore.Query{Embedding: []float32{1, 0}, Threshold: -1})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
