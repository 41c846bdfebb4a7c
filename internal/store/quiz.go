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

var quizColumns = []string{"id", "title", "description", "author_id", "flashcard_set_id", "created_at"}

// QuizRepo implements study.QuizRepository.
type QuizRepo struct {
	db *sql.DB
}

var _ study.QuizRepository = (*QuizRepo)(nil)

func (r *QuizRepo) FindByID(ctx context.Context, id uuid.UUID) (*study.Quiz, error) {
	sel := sqlite.Select(quizColumns...).
		From(entsql.Table(tableQuizzes)).
		Where(entsql.EQ("id", id.String()))

	quiz, err := scanQuiz(queryRowB(ctx, r.db, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, study.NotFound(study.KindQuiz, id)
	}
	if err != nil {
		return nil, err
	}

	questions, err := r.questions(ctx, id)
	if err != nil {
		return nil, err
	}
	quiz.Questions = questions
	return quiz, nil
}

// Save inserts or replaces the quiz with its questions and options in one
// transaction. Attempts of a replaced quiz are removed with it.
func (r *QuizRepo) Save(ctx context.Context, quiz *study.Quiz) error {
	if quiz.ID == uuid.Nil {
		quiz.ID = uuid.New()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		del := sqlite.Delete(tableQuizzes).Where(entsql.EQ("id", quiz.ID.String()))
		if _, err := execB(ctx, tx, del); err != nil {
			return fmt.Errorf("replace quiz: %w", err)
		}

		ins := sqlite.Insert(tableQuizzes).
			Columns(quizColumns...).
			Values(quiz.ID.String(), quiz.Title, quiz.Description, quiz.AuthorID.String(),
				quiz.FlashcardSetID.String(), quiz.CreatedAt.UnixNano())
		if _, err := execB(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}

		for i := range quiz.Questions {
			q := &quiz.Questions[i]
			if q.ID == uuid.Nil {
				q.ID = uuid.New()
			}
			qins := sqlite.Insert(tableQuestions).
				Columns("id", "quiz_id", "position", "content", "type").
				Values(q.ID.String(), quiz.ID.String(), q.Position, q.Content, string(q.Type))
			if _, err := execB(ctx, tx, qins); err != nil {
				return fmt.Errorf("insert question %d: %w", q.Position, err)
			}

			if len(q.Options) == 0 {
				continue
			}
			oins := sqlite.Insert(tableOptions).Columns("id", "question_id", "position", "content", "is_correct")
			for j := range q.Options {
				o := &q.Options[j]
				if o.ID == uuid.Nil {
					o.ID = uuid.New()
				}
				oins.Values(o.ID.String(), q.ID.String(), o.Position, o.Content, o.IsCorrect)
			}
			if _, err := execB(ctx, tx, oins); err != nil {
				return fmt.Errorf("insert options of question %d: %w", q.Position, err)
			}
		}
		return nil
	})
}

func (r *QuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	del := sqlite.Delete(tableQuizzes).Where(entsql.EQ("id", id.String()))
	res, err := execB(ctx, r.db, del)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.NotFound(study.KindQuiz, id)
	}
	return nil
}

// ListByAuthor returns the author's quizzes without questions, newest first.
func (r *QuizRepo) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]study.Quiz, error) {
	sel := sqlite.Select(quizColumns...).
		From(entsql.Table(tableQuizzes)).
		Where(entsql.EQ("author_id", authorID.String())).
		OrderBy(entsql.Desc("created_at"))

	rows, err := queryB(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []study.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *QuizRepo) questions(ctx context.Context, quizID uuid.UUID) ([]study.Question, error) {
	sel := sqlite.Select("id", "position", "content", "type").
		From(entsql.Table(tableQuestions)).
		Where(entsql.EQ("quiz_id", quizID.String())).
		OrderBy("position")

	rows, err := queryB(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	var (
		out []study.Question
		ids []any
	)
	for rows.Next() {
		var (
			q     study.Question
			qtype string
		)
		if err := rows.Scan(&q.ID, &q.Position, &q.Content, &qtype); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = study.QuestionType(qtype)
		out = append(out, q)
		ids = append(ids, q.ID.String())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	osel := sqlite.Select("id", "question_id", "position", "content", "is_correct").
		From(entsql.Table(tableOptions)).
		Where(entsql.In("question_id", ids...)).
		OrderBy("question_id", "position")

	orows, err := queryB(ctx, r.db, osel)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer orows.Close()

	byQuestion := make(map[uuid.UUID][]study.Option, len(out))
	for orows.Next() {
		var (
			o   study.Option
			qid uuid.UUID
		)
		if err := orows.Scan(&o.ID, &qid, &o.Position, &o.Content, &o.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		byQuestion[qid] = append(byQuestion[qid], o)
	}
	if err := orows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Options = byQuestion[out[i].ID]
	}
	return out, nil
}

func scanQuiz(row rowScanner) (*study.Quiz, error) {
	var (
		q       study.Quiz
		created int64
	)
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.AuthorID, &q.FlashcardSetID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan quiz: %w", err)
	}
	q.CreatedAt = time.Unix(0, created).UTC()
	return &q, nil
}
