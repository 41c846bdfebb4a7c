// Package attempt turns graded submissions into persisted quiz attempts and
// answers questions about attempt history.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/study"
	"github.com/rs/zerolog"
)

// Result is a saved attempt plus the graded positions that matched no
// question of the quiz.
type Result struct {
	Attempt *study.QuizAttempt
	Dropped []int
}

// Reconciler creates and queries quiz attempts of the current user.
type Reconciler struct {
	attempts study.QuizAttemptRepository
	quizzes  study.QuizRepository
	sets     study.FlashcardSetRepository
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Reconciler.
func New(attempts study.QuizAttemptRepository, quizzes study.QuizRepository, sets study.FlashcardSetRepository, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		attempts: attempts,
		quizzes:  quizzes,
		sets:     sets,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// verdict is one graded answer before it is matched to a question.
type verdict struct {
	position int
	response string
	correct  bool
	feedback string
}

// FromGraded saves the model's verdict as an attempt of quizID. Both
// FromGraded and FromInput accept only quizzes the current user wrote or
// whose flashcard set is public; any other quiz is reported as not found.
// Verdicts for
// positions the quiz does not have are dropped and logged; each question
// receives at most one response.
func (r *Reconciler) FromGraded(ctx context.Context, graded *study.GradedQuiz, quizID uuid.UUID) (*Result, error) {
	if graded == nil {
		return nil, errors.New("graded quiz is nil")
	}
	verdicts := make([]verdict, len(graded.Questions))
	for i, q := range graded.Questions {
		verdicts[i] = verdict{
			position: q.Position,
			response: q.UserResponse,
			correct:  q.IsCorrectAnswer,
			feedback: q.Feedback,
		}
	}
	return r.record(ctx, quizID, func(*study.Quiz) []verdict { return verdicts })
}

// FromInput grades input without a model and saves the attempt. Matching
// rules per question type are in Correct.
func (r *Reconciler) FromInput(ctx context.Context, input study.AttemptInput) (*Result, error) {
	return r.record(ctx, input.QuizID, func(quiz *study.Quiz) []verdict {
		byPos := quiz.QuestionsByPosition()
		verdicts := make([]verdict, len(input.Responses))
		for i, a := range input.Responses {
			v := verdict{position: a.Position, response: a.Response}
			if q, ok := byPos[a.Position]; ok {
				v.correct = Correct(q, a.Response)
				v.feedback = Feedback(q, v.correct)
			}
			verdicts[i] = v
		}
		return verdicts
	})
}

func (r *Reconciler) record(ctx context.Context, quizID uuid.UUID, grade func(*study.Quiz) []verdict) (*Result, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	quiz, err := r.visibleQuiz(ctx, owner, quizID)
	if err != nil {
		return nil, err
	}

	byPos := quiz.QuestionsByPosition()
	answered := make(map[int]bool, len(byPos))
	res := &Result{Attempt: &study.QuizAttempt{
		ID:          uuid.New(),
		QuizID:      quiz.ID,
		UserID:      owner,
		AttemptDate: r.now(),
	}}

	correct := 0
	for _, v := range grade(quiz) {
		q, ok := byPos[v.position]
		if !ok || answered[v.position] {
			res.Dropped = append(res.Dropped, v.position)
			r.log.Warn().
				Str("quiz", quiz.ID.String()).
				Int("position", v.position).
				Bool("duplicate", ok).
				Msg("dropping response with no matching question")
			continue
		}
		answered[v.position] = true
		if v.correct {
			correct++
		}
		res.Attempt.Responses = append(res.Attempt.Responses, study.QuizAttemptResponse{
			ID:           uuid.New(),
			QuestionID:   q.ID,
			ResponseText: v.response,
			IsCorrect:    v.correct,
			Feedback:     v.feedback,
		})
	}
	res.Attempt.Score = Score(correct, len(res.Attempt.Responses))

	if err := r.attempts.Save(ctx, res.Attempt); err != nil {
		return nil, fmt.Errorf("save quiz attempt: %w", err)
	}

	r.log.Info().
		Str("attempt", res.Attempt.ID.String()).
		Str("quiz", quiz.ID.String()).
		Int("responses", len(res.Attempt.Responses)).
		Int("dropped", len(res.Dropped)).
		Int("score", res.Attempt.Score).
		Msg("quiz attempt recorded")
	return res, nil
}

func (r *Reconciler) visibleQuiz(ctx context.Context, owner, quizID uuid.UUID) (*study.Quiz, error) {
	quiz, err := r.quizzes.FindByID(ctx, quizID)
	if err != nil {
		return nil, lookupErr(err, "quiz", quizID)
	}
	if quiz.AuthorID == owner {
		return quiz, nil
	}
	set, err := r.sets.FindByID(ctx, quiz.FlashcardSetID)
	if err != nil {
		return nil, lookupErr(err, "flashcard set", quiz.FlashcardSetID)
	}
	if !set.IsPublic {
		return nil, study.NotFound(study.KindQuiz, quizID)
	}
	return quiz, nil
}

func lookupErr(err error, what string, id uuid.UUID) error {
	var nf *study.ReferenceNotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

// Score is round(100*correct/total) with halves rounded up, and 0 when
// total is 0.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
