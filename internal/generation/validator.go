package generation

import (
	"fmt"
	"strings"

	"github.com/monetadev/moneta/internal/study"
)

// FlashcardValidator checks a generated flashcard set.
type FlashcardValidator interface {
	Name() string
	ValidateFlashcards(set *study.GeneratedFlashcardSet, opts FlashcardOptions) *ValidationError
}

// QuizValidator checks a generated quiz.
type QuizValidator interface {
	Name() string
	ValidateQuiz(quiz *study.GeneratedQuiz, opts QuizOptions) *ValidationError
}

// ValidationError describes why generated output was rejected.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator checks item counts, positions and required text.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) fail(format string, args ...any) *ValidationError {
	return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf(format, args...)}
}

func (v *StructuralValidator) ValidateFlashcards(set *study.GeneratedFlashcardSet, opts FlashcardOptions) *ValidationError {
	if strings.TrimSpace(set.Title) == "" {
		return v.fail("title is empty")
	}
	if len(set.Flashcards) == 0 {
		return v.fail("no flashcards generated")
	}
	if len(set.Flashcards) > opts.K {
		return v.fail("%d flashcards generated, at most %d requested", len(set.Flashcards), opts.K)
	}
	seen := make(map[int]bool, len(set.Flashcards))
	for i, c := range set.Flashcards {
		if c.Position < 1 {
			return v.fail("flashcard %d has position %d", i+1, c.Position)
		}
		if seen[c.Position] {
			return v.fail("position %d is used twice", c.Position)
		}
		seen[c.Position] = true
		if strings.TrimSpace(c.Term) == "" || strings.TrimSpace(c.Definition) == "" {
			return v.fail("flashcard at position %d has an empty term or definition", c.Position)
		}
	}
	return nil
}

func (v *StructuralValidator) ValidateQuiz(quiz *study.GeneratedQuiz, opts QuizOptions) *ValidationError {
	if strings.TrimSpace(quiz.Title) == "" {
		return v.fail("title is empty")
	}
	if len(quiz.Questions) == 0 {
		return v.fail("no questions generated")
	}
	if len(quiz.Questions) > opts.K {
		return v.fail("%d questions generated, at most %d requested", len(quiz.Questions), opts.K)
	}
	seen := make(map[int]bool, len(quiz.Questions))
	for i, q := range quiz.Questions {
		if q.Position < 1 {
			return v.fail("question %d has position %d", i+1, q.Position)
		}
		if seen[q.Position] {
			return v.fail("position %d is used twice", q.Position)
		}
		seen[q.Position] = true
		if strings.TrimSpace(q.Content) == "" {
			return v.fail("question at position %d is empty", q.Position)
		}
		if len(q.Options) == 0 {
			return v.fail("question at position %d has no options", q.Position)
		}
		optSeen := make(map[int]bool, len(q.Options))
		for _, o := range q.Options {
			if o.Position < 1 || optSeen[o.Position] {
				return v.fail("question at position %d has invalid option position %d", q.Position, o.Position)
			}
			optSeen[o.Position] = true
		}
	}
	return nil
}

// QuestionTypeValidator rejects question types outside the requested set.
type QuestionTypeValidator struct{}

func (v *QuestionTypeValidator) Name() string { return "question-type" }

func (v *QuestionTypeValidator) ValidateQuiz(quiz *study.GeneratedQuiz, opts QuizOptions) *ValidationError {
	allowed := make(map[study.QuestionType]bool)
	for _, t := range opts.AllowedTypes() {
		allowed[t] = true
	}
	for _, q := range quiz.Questions {
		if !allowed[q.Type] {
			return &ValidationError{
				Validator: v.Name(),
				Message:   fmt.Sprintf("question at position %d has type %q, not requested", q.Position, q.Type),
			}
		}
	}
	return nil
}

// AnswerKeyValidator checks the correct-option count per question type when
// the schema in use marks options. Quizzes from schemas without answer keys
// pass unchecked.
type AnswerKeyValidator struct{}

func (v *AnswerKeyValidator) Name() string { return "answer-key" }

func (v *AnswerKeyValidator) ValidateQuiz(quiz *study.GeneratedQuiz, _ QuizOptions) *ValidationError {
	for _, q := range quiz.Questions {
		marked, correct := 0, 0
		for _, o := range q.Options {
			if o.Correct != nil {
				marked++
				if *o.Correct {
					correct++
				}
			}
		}
		if marked == 0 {
			continue
		}

		var msg string
		switch q.Type {
		case study.MultipleChoiceSingle:
			if correct != 1 {
				msg = fmt.Sprintf("needs exactly one correct option, has %d", correct)
			}
		case study.TrueFalse:
			if len(q.Options) != 2 || correct != 1 {
				msg = fmt.Sprintf("needs two options with one correct, has %d with %d correct", len(q.Options), correct)
			}
		default:
			if correct == 0 {
				msg = "has no correct option"
			}
		}
		if msg != "" {
			return &ValidationError{
				Validator: v.Name(),
				Message:   fmt.Sprintf("%s question at position %d %s", q.Type, q.Position, msg),
			}
		}
	}
	return nil
}
