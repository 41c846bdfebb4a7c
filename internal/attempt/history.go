package attempt

import (
	"context"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/study"
)

// Get returns one of the current user's attempts with its responses.
// Attempts of other users are reported as not found.
func (r *Reconciler) Get(ctx context.Context, id uuid.UUID) (*study.QuizAttempt, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	a, err := r.attempts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != owner {
		return nil, study.NotFound(study.KindQuizAttempt, id)
	}
	return a, nil
}

// Delete removes one of the current user's attempts.
func (r *Reconciler) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return r.attempts.Delete(ctx, id)
}

// ListByUser pages through the current user's attempts, newest first.
func (r *Reconciler) ListByUser(ctx context.Context, page study.Page) (*study.AttemptPage, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return r.attempts.List(ctx, study.AttemptFilter{UserID: owner}, page)
}

// ListByQuiz pages through attempts of a quiz. The quiz author sees every
// learner's attempts; anyone else sees only their own.
func (r *Reconciler) ListByQuiz(ctx context.Context, quizID uuid.UUID, page study.Page) (*study.AttemptPage, error) {
	filter, err := r.quizFilter(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return r.attempts.List(ctx, filter, page)
}

// AverageScore is the mean score of the current user's attempts, limited to
// quizID unless it is uuid.Nil. It is 0 when there are no attempts.
func (r *Reconciler) AverageScore(ctx context.Context, quizID uuid.UUID) (float64, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return 0, err
	}
	return r.average(ctx, study.AttemptFilter{UserID: owner, QuizID: quizID})
}

// QuizAverageScore is the mean score over the attempts of quizID visible to
// the current user, as in ListByQuiz.
func (r *Reconciler) QuizAverageScore(ctx context.Context, quizID uuid.UUID) (float64, error) {
	filter, err := r.quizFilter(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return r.average(ctx, filter)
}

func (r *Reconciler) average(ctx context.Context, filter study.AttemptFilter) (float64, error) {
	avg, ok, err := r.attempts.AverageScore(ctx, filter)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return avg, nil
}

func (r *Reconciler) quizFilter(ctx context.Context, quizID uuid.UUID) (study.AttemptFilter, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return study.AttemptFilter{}, err
	}
	quiz, err := r.quizzes.FindByID(ctx, quizID)
	if err != nil {
		return study.AttemptFilter{}, lookupErr(err, "quiz", quizID)
	}
	filter := study.AttemptFilter{QuizID: quizID}
	if quiz.AuthorID != owner {
		filter.UserID = owner
	}
	return filter, nil
}
