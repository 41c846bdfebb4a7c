package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/study"
)

var attemptColumns = []string{"id", "quiz_id", "user_id", "attempt_date", "score"}

// AttemptRepo implements study.QuizAttemptRepository.
type AttemptRepo struct {
	db *sql.DB
}

var _ study.QuizAttemptRepository = (*AttemptRepo)(nil)

func (r *AttemptRepo) FindByID(ctx context.Context, id uuid.UUID) (*study.QuizAttempt, error) {
	sel := sqlite.Select(attemptColumns...).
		From(entsql.Table(tableAttempts)).
		Where(entsql.EQ("id", id.String()))

	a, err := scanAttempt(queryRowB(ctx, r.db, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, study.NotFound(study.KindQuizAttempt, id)
	}
	if err != nil {
		return nil, err
	}

	responses, err := r.responses(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Responses = responses
	return a, nil
}

// Save writes the attempt and all of its responses in one transaction.
func (r *AttemptRepo) Save(ctx context.Context, a *study.QuizAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AttemptDate.IsZero() {
		a.AttemptDate = time.Now().UTC()
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		ins := sqlite.Insert(tableAttempts).
			Columns(attemptColumns...).
			Values(a.ID.String(), a.QuizID.String(), a.UserID.String(), a.AttemptDate.UnixNano(), a.Score)
		if _, err := execB(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert quiz attempt: %w", err)
		}

		if len(a.Responses) == 0 {
			return nil
		}
		rins := sqlite.Insert(tableResponses).
			Columns("id", "attempt_id", "question_id", "response_text", "is_correct", "feedback")
		for i := range a.Responses {
			resp := &a.Responses[i]
			if resp.ID == uuid.Nil {
				resp.ID = uuid.New()
			}
			rins.Values(resp.ID.String(), a.ID.String(), resp.QuestionID.String(),
				resp.ResponseText, resp.IsCorrect, resp.Feedback)
		}
		if _, err := execB(ctx, tx, rins); err != nil {
			return fmt.Errorf("insert quiz attempt responses: %w", err)
		}
		return nil
	})
}

func (r *AttemptRepo) Delete(ctx context.Context, id uuid.UUID) error {
	del := sqlite.Delete(tableAttempts).Where(entsql.EQ("id", id.String()))
	res, err := execB(ctx, r.db, del)
	if err != nil {
		return fmt.Errorf("delete quiz attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.NotFound(study.KindQuizAttempt, id)
	}
	return nil
}

// List returns a page of attempts, newest first. Responses are not loaded.
func (r *AttemptRepo) List(ctx context.Context, filter study.AttemptFilter, page study.Page) (*study.AttemptPage, error) {
	pred := attemptPredicate(filter)

	count := sqlite.Select(entsql.Count("*")).From(entsql.Table(tableAttempts))
	if pred != nil {
		count.Where(pred)
	}
	var total int
	if err := queryRowB(ctx, r.db, count).Scan(&total); err != nil {
		return nil, fmt.Errorf("count quiz attempts: %w", err)
	}

	sel := sqlite.Select(attemptColumns...).From(entsql.Table(tableAttempts))
	if pred != nil {
		sel.Where(attemptPredicate(filter))
	}
	sel.OrderBy(entsql.Desc("attempt_date"))
	if page.Size > 0 {
		sel.Limit(page.Size).Offset(page.Offset())
	}

	rows, err := queryB(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}
	defer rows.Close()

	out := &study.AttemptPage{CurrentPage: page.Number, TotalElements: total}
	if page.Size > 0 {
		out.TotalPages = (total + page.Size - 1) / page.Size
	} else if total > 0 {
		out.TotalPages = 1
	}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *a)
	}
	return out, rows.Err()
}

func (r *AttemptRepo) AverageScore(ctx context.Context, filter study.AttemptFilter) (float64, bool, error) {
	sel := sqlite.Select(entsql.Avg("score")).From(entsql.Table(tableAttempts))
	if pred := attemptPredicate(filter); pred != nil {
		sel.Where(pred)
	}

	var avg sql.NullFloat64
	if err := queryRowB(ctx, r.db, sel).Scan(&avg); err != nil {
		return 0, false, fmt.Errorf("average score: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

func (r *AttemptRepo) responses(ctx context.Context, attemptID uuid.UUID) ([]study.QuizAttemptResponse, error) {
	sel := sqlite.Select("id", "question_id", "response_text", "is_correct", "feedback").
		From(entsql.Table(tableResponses)).
		Where(entsql.EQ("attempt_id", attemptID.String())).
		OrderBy("rowid")

	rows, err := queryB(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query quiz attempt responses: %w", err)
	}
	defer rows.Close()

	var out []study.QuizAttemptResponse
	for rows.Next() {
		var resp study.QuizAttemptResponse
		if err := rows.Scan(&resp.ID, &resp.QuestionID, &resp.ResponseText, &resp.IsCorrect, &resp.Feedback); err != nil {
			return nil, fmt.Errorf("scan quiz attempt response: %w", err)
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func attemptPredicate(f study.AttemptFilter) *entsql.Predicate {
	var preds []*entsql.Predicate
	if f.UserID != uuid.Nil {
		preds = append(preds, entsql.EQ("user_id", f.UserID.String()))
	}
	if f.QuizID != uuid.Nil {
		preds = append(preds, entsql.EQ("quiz_id", f.QuizID.String()))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return entsql.And(preds...)
}

func scanAttempt(row rowScanner) (*study.QuizAttempt, error) {
	var (
		a    study.QuizAttempt
		date int64
	)
	err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &date, &a.Score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan quiz attempt: %w", err)
	}
	a.AttemptDate = time.Unix(0, date).UTC()
	return &a, nil
}
