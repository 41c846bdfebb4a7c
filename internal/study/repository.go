package study

import (
	"context"

	"github.com/google/uuid"
)

// Entity kinds used in ReferenceNotFoundError.
const (
	KindFlashcardSet = "flashcard-set"
	KindQuiz         = "quiz"
	KindQuizAttempt  = "quiz-attempt"
)

// Page selects a window of a listing. Number is 0-based.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	if p.Number < 0 || p.Size <= 0 {
		return 0
	}
	return p.Number * p.Size
}

// AttemptPage is a page of quiz attempts with totals.
type AttemptPage struct {
	Items         []QuizAttempt
	CurrentPage   int
	TotalPages    int
	TotalElements int
}

// AttemptFilter narrows attempt listings and score averages. Zero UUIDs
// are unconstrained.
type AttemptFilter struct {
	UserID uuid.UUID
	QuizID uuid.UUID
}

// FlashcardSetRepository persists flashcard sets. The set owns its
// flashcards: Save replaces them wholesale.
// FindByID returns *ReferenceNotFoundError when the set does not exist.
type FlashcardSetRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*FlashcardSet, error)
	Save(ctx context.Context, set *FlashcardSet) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]FlashcardSet, error)
}

// QuizRepository persists quizzes with their questions and options.
type QuizRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Quiz, error)
	Save(ctx context.Context, quiz *Quiz) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]Quiz, error)
}

// QuizAttemptRepository persists attempts. Save writes the attempt and its
// responses atomically.
type QuizAttemptRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*QuizAttempt, error)
	Save(ctx context.Context, attempt *QuizAttempt) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter AttemptFilter, page Page) (*AttemptPage, error)

	// AverageScore returns the mean score over matching attempts and whether
	// any attempt matched.
	AverageScore(ctx context.Context, filter AttemptFilter) (float64, bool, error)
}
