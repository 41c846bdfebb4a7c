// Package study holds the entities the content pipeline reads and writes:
// flashcard sets, quizzes and quiz attempts, plus the repository contracts
// and error types shared by every pipeline stage.
package study

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported quiz question kinds.
type QuestionType string

const (
	MultipleChoiceSingle QuestionType = "MULTIPLE_CHOICE_SINGLE"
	MultipleChoiceMulti  QuestionType = "MULTIPLE_CHOICE_MULTI"
	TrueFalse            QuestionType = "TRUE_FALSE"
	ShortAnswer          QuestionType = "SHORT_ANSWER"
)

// AllQuestionTypes lists every QuestionType in display order.
var AllQuestionTypes = []QuestionType{MultipleChoiceSingle, MultipleChoiceMulti, TrueFalse, ShortAnswer}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoiceSingle, MultipleChoiceMulti, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// ParseQuestionType accepts the canonical names, the long "_ANSWER" spellings
// and lowercase variants.
func ParseQuestionType(s string) (QuestionType, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch norm {
	case "MULTIPLE_CHOICE_SINGLE", "MULTIPLE_CHOICE_SINGLE_ANSWER", "MC_SINGLE":
		return MultipleChoiceSingle, true
	case "MULTIPLE_CHOICE_MULTI", "MULTIPLE_CHOICE_MULTIPLE_ANSWER", "MC_MULTI":
		return MultipleChoiceMulti, true
	case "TRUE_FALSE", "TF":
		return TrueFalse, true
	case "SHORT_ANSWER", "SA":
		return ShortAnswer, true
	}
	return "", false
}

// FlashcardSet is a titled collection of flashcards owned by its author.
type FlashcardSet struct {
	ID          uuid.UUID
	Title       string
	Description string
	IsPublic    bool
	AuthorID    uuid.UUID
	Flashcards  []Flashcard
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Flashcard is a term/definition pair. Position is 1-based and unique
// within its set.
type Flashcard struct {
	ID         uuid.UUID
	Position   int
	Term       string
	Definition string
}

// Quiz is a set of questions derived from a flashcard set.
type Quiz struct {
	ID             uuid.UUID
	Title          string
	Description    string
	AuthorID       uuid.UUID
	FlashcardSetID uuid.UUID
	Questions      []Question
	CreatedAt      time.Time
}

// Question is a single quiz question. Position is unique within its quiz.
type Question struct {
	ID       uuid.UUID
	Position int
	Content  string
	Type     QuestionType
	Options  []Option
}

// Option is a selectable or reference answer of a question.
type Option struct {
	ID        uuid.UUID
	Position  int
	Content   string
	IsCorrect bool
}

// QuizAttempt is one graded submission of a quiz by a user.
type QuizAttempt struct {
	ID          uuid.UUID
	QuizID      uuid.UUID
	UserID      uuid.UUID
	AttemptDate time.Time
	Responses   []QuizAttemptResponse
	Score       int
}

// QuizAttemptResponse is the graded answer to one question.
type QuizAttemptResponse struct {
	ID           uuid.UUID
	QuestionID   uuid.UUID
	ResponseText string
	IsCorrect    bool
	Feedback     string
}

// QuestionsByPosition indexes the quiz's questions by position. When two
// questions share a position the first one wins.
func (q *Quiz) QuestionsByPosition() map[int]*Question {
	m := make(map[int]*Question, len(q.Questions))
	for i := range q.Questions {
		pos := q.Questions[i].Position
		if _, dup := m[pos]; !dup {
			m[pos] = &q.Questions[i]
		}
	}
	return m
}

// CorrectOptions returns the options flagged correct, in stored order.
func (q *Question) CorrectOptions() []Option {
	var out []Option
	for _, o := range q.Options {
		if o.IsCorrect {
			out = append(out, o)
		}
	}
	return out
}
