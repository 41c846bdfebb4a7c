package pipeline

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
	"github.com/monetadev/moneta/internal/generation"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/store"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSets struct {
	study.FlashcardSetRepository
}

func (failingSets) Save(context.Context, *study.FlashcardSet) error {
	return errors.New("disk full")
}

type fixture struct {
	svc      *Service
	provider *llm.MockProvider
	vectors  *vectorstore.Memory
	db       *store.Store
	ctx      context.Context
}

func newFixture(t *testing.T, wrapSets func(study.FlashcardSetRepository) study.FlashcardSetRepository) *fixture {
	t.Helper()
	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var sets study.FlashcardSetRepository = db.FlashcardSets()
	if wrapSets != nil {
		sets = wrapSets(sets)
	}
	f := &fixture{
		provider: llm.NewMockProvider(),
		vectors:  vectorstore.NewMemory(),
		db:       db,
		ctx:      auth.WithUser(context.Background(), uuid.New()),
	}
	genCfg := generation.DefaultConfig()
	genCfg.RewriteQuery = false
	f.svc = New(Deps{
		Provider:   f.provider,
		Embedder:   llm.NewHashEmbedder(64),
		Vectors:    f.vectors,
		Sets:       sets,
		Quizzes:    db.Quizzes(),
		Attempts:   db.Attempts(),
		Generation: &genCfg,
		Log:        zerolog.Nop(),
	})
	return f
}

func textDoc(id, body string) ingest.Document {
	return ingest.Document{
		ID:               id,
		OriginalFilename: id + ".txt",
		Kind:             document.Generic,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

const notes = "Mitochondria produce ATP through cellular respiration. " +
	"The inner membrane folds into cristae which increase the surface area available for the electron transport chain."

func generated() *study.GeneratedFlashcardSet {
	return &study.GeneratedFlashcardSet{
		Title:       "Mitochondria",
		Description: "Energy in the cell",
		Flashcards: []study.GeneratedFlashcard{
			{Term: "ATP", Definition: "Energy currency of the cell", Position: 1},
			{Term: "Cristae", Definition: "Folds of the inner membrane", Position: 2},
		},
	}
}

func ptr(b bool) *bool { return &b }

func TestSaveFlashcardSet_AttachesDocuments(t *testing.T) {
	f := newFixture(t, nil)

	set, err := f.svc.SaveFlashcardSet(f.ctx, generated(), SaveOptions{
		Public: true,
		Attach: []ingest.Document{textDoc("notes", notes)},
	})
	require.NoError(t, err)
	assert.True(t, set.IsPublic)
	assert.Len(t, set.Flashcards, 2)
	require.Positive(t, f.vectors.Len())

	got, err := f.svc.FlashcardSet(f.ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mitochondria", got.Title)

	listed, err := f.svc.FlashcardSets(f.ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestSaveFlashcardSet_RollsBackChunks(t *testing.T) {
	f := newFixture(t, func(r study.FlashcardSetRepository) study.FlashcardSetRepository {
		return failingSets{r}
	})

	_, err := f.svc.SaveFlashcardSet(f.ctx, generated(), SaveOptions{
		Attach: []ingest.Document{textDoc("notes", notes)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, f.vectors.Len())
}

func TestSaveFlashcardSet_RequiresUser(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.SaveFlashcardSet(context.Background(), generated(), SaveOptions{})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestGenerateSaveGrade(t *testing.T) {
	f := newFixture(t, nil)

	f.provider.AddJSON(generated())
	g, err := f.svc.GenerateFlashcardSet(f.ctx, generation.FlashcardOptions{Query: "mitochondria", K: 2})
	require.NoError(t, err)
	set, err := f.svc.SaveFlashcardSet(f.ctx, g, SaveOptions{})
	require.NoError(t, err)

	f.provider.AddJSON(&study.GeneratedQuiz{
		Title: "Mitochondria quiz",
		Questions: []study.GeneratedQuestion{{
			Content:  "Mitochondria produce ATP.",
			Position: 1,
			Type:     study.TrueFalse,
			Options: []study.GeneratedOption{
				{Content: "True", Position: 1, Correct: ptr(true)},
				{Content: "False", Position: 2, Correct: ptr(false)},
			},
		}},
	})
	gq, err := f.svc.GenerateQuiz(f.ctx, generation.QuizOptions{SetID: set.ID, K: 1})
	require.NoError(t, err)
	quiz, err := f.svc.SaveQuiz(f.ctx, gq, set.ID)
	require.NoError(t, err)
	assert.Equal(t, set.ID, quiz.FlashcardSetID)

	f.provider.AddJSON(&study.GradedQuiz{
		Title: "Mitochondria quiz",
		Questions: []study.GradedQuestion{
			{Content: "Mitochondria produce ATP.", Position: 1, UserResponse: "True", IsCorrectAnswer: true, Feedback: "Right.", Options: []study.GradedOption{}},
			{Content: "Invented", Position: 7, UserResponse: "?", IsCorrectAnswer: true, Feedback: "", Options: []study.GradedOption{}},
		},
	})
	res, err := f.svc.GradeQuiz(f.ctx, study.AttemptInput{
		QuizID:    quiz.ID,
		Responses: []study.AnswerInput{{Position: 1, Response: "True"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Attempt.Score)
	assert.Equal(t, []int{7}, res.Dropped)

	checked, err := f.svc.CheckQuiz(f.ctx, study.AttemptInput{
		QuizID:    quiz.ID,
		Responses: []study.AnswerInput{{Position: 1, Response: "False"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, checked.Attempt.Score)

	avg, err := f.svc.Attempts().AverageScore(f.ctx, quiz.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, avg, 0.001)
}

func TestSaveQuiz_HiddenSet(t *testing.T) {
	f := newFixture(t, nil)
	set, err := f.svc.SaveFlashcardSet(f.ctx, generated(), SaveOptions{})
	require.NoError(t, err)

	other := auth.WithUser(context.Background(), uuid.New())
	_, err = f.svc.SaveQuiz(other, &study.GeneratedQuiz{Title: "x"}, set.ID)
	var nf *study.ReferenceNotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = f.svc.FlashcardSet(other, set.ID)
	assert.True(t, errors.As(err, &nf))
}

func TestCheckQuiz_PrivateQuizHidden(t *testing.T) {
	f := newFixture(t, nil)
	set, err := f.svc.SaveFlashcardSet(f.ctx, generated(), SaveOptions{})
	require.NoError(t, err)
	quiz, err := f.svc.SaveQuiz(f.ctx, &study.GeneratedQuiz{
		Title: "Quiz",
		Questions: []study.GeneratedQuestion{{
			Content: "Name the energy currency.", Position: 1, Type: study.ShortAnswer,
			Options: []study.GeneratedOption{{Content: "ATP", Position: 1, Correct: ptr(true)}},
		}},
	}, set.ID)
	require.NoError(t, err)

	other := auth.WithUser(context.Background(), uuid.New())
	res, err := f.svc.CheckQuiz(other, study.AttemptInput{
		QuizID:    quiz.ID,
		Responses: []study.AnswerInput{{Position: 1, Response: "glucose"}},
	})
	assert.Nil(t, res)
	var nf *study.ReferenceNotFoundError
	require.True(t, errors.As(err, &nf))

	page, err := f.svc.Attempts().ListByQuiz(f.ctx, quiz.ID, study.Page{Size: 10})
	require.NoError(t, err)
	assert.Zero(t, page.TotalElements)
}

func TestQuiz_PublicSetVisible(t *testing.T) {
	f := newFixture(t, nil)
	set, err := f.svc.SaveFlashcardSet(f.ctx, generated(), SaveOptions{Public: true})
	require.NoError(t, err)
	quiz, err := f.svc.SaveQuiz(f.ctx, &study.GeneratedQuiz{
		Title: "Quiz",
		Questions: []study.GeneratedQuestion{{
			Content: "Name the energy currency.", Position: 1, Type: study.ShortAnswer,
			Options: []study.GeneratedOption{{Content: "ATP", Position: 1, Correct: ptr(true)}},
		}},
	}, set.ID)
	require.NoError(t, err)

	other := auth.WithUser(context.Background(), uuid.New())
	got, err := f.svc.Quiz(other, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, got.ID)

	mine, err := f.svc.Quizzes(other)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestDeleteDocumentEmbedding(t *testing.T) {
	f := newFixture(t, nil)
	name, err := f.svc.EmbedDocument(f.ctx, textDoc("lecture", notes))
	require.NoError(t, err)
	assert.Equal(t, "lecture.txt", name)
	n, err := f.svc.DeleteDocumentEmbedding(f.ctx, "lecture")
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, 0, f.vectors.Len())
}
