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

var setColumns = []string{"id", "title", "description", "is_public", "author_id", "created_at", "updated_at"}

// FlashcardSetRepo implements study.FlashcardSetRepository.
type FlashcardSetRepo struct {
	db *sql.DB
}

var _ study.FlashcardSetRepository = (*FlashcardSetRepo)(nil)

func (r *FlashcardSetRepo) FindByID(ctx context.Context, id uuid.UUID) (*study.FlashcardSet, error) {
	sel := sqlite.Select(setColumns...).
		From(entsql.Table(tableSets)).
		Where(entsql.EQ("id", id.String()))

	set, err := scanSet(queryRowB(ctx, r.db, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, study.NotFound(study.KindFlashcardSet, id)
	}
	if err != nil {
		return nil, err
	}

	cards, err := r.flashcards(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	set.Flashcards = cards
	return set, nil
}

// Save inserts or replaces the set and all of its flashcards.
func (r *FlashcardSetRepo) Save(ctx context.Context, set *study.FlashcardSet) error {
	if set.ID == uuid.Nil {
		set.ID = uuid.New()
	}
	now := time.Now().UTC()
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}
	set.UpdatedAt = now

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		// Flashcards cascade with the set row.
		del := sqlite.Delete(tableSets).Where(entsql.EQ("id", set.ID.String()))
		if _, err := execB(ctx, tx, del); err != nil {
			return fmt.Errorf("replace flashcard set: %w", err)
		}

		ins := sqlite.Insert(tableSets).
			Columns(setColumns...).
			Values(set.ID.String(), set.Title, set.Description, set.IsPublic,
				set.AuthorID.String(), set.CreatedAt.UnixNano(), set.UpdatedAt.UnixNano())
		if _, err := execB(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert flashcard set: %w", err)
		}

		if len(set.Flashcards) == 0 {
			return nil
		}
		cards := sqlite.Insert(tableCards).Columns("id", "set_id", "position", "term", "definition")
		for i := range set.Flashcards {
			c := &set.Flashcards[i]
			if c.ID == uuid.Nil {
				c.ID = uuid.New()
			}
			cards.Values(c.ID.String(), set.ID.String(), c.Position, c.Term, c.Definition)
		}
		if _, err := execB(ctx, tx, cards); err != nil {
			return fmt.Errorf("insert flashcards: %w", err)
		}
		return nil
	})
}

func (r *FlashcardSetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	del := sqlite.Delete(tableSets).Where(entsql.EQ("id", id.String()))
	res, err := execB(ctx, r.db, del)
	if err != nil {
		return fmt.Errorf("delete flashcard set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.NotFound(study.KindFlashcardSet, id)
	}
	return nil
}

// ListByAuthor returns the author's sets without their flashcards, newest
// first.
func (r *FlashcardSetRepo) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]study.FlashcardSet, error) {
	sel := sqlite.Select(setColumns...).
		From(entsql.Table(tableSets)).
		Where(entsql.EQ("author_id", authorID.String())).
		OrderBy(entsql.Desc("created_at"))

	rows, err := queryB(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("list flashcard sets: %w", err)
	}
	defer rows.Close()

	var out []study.FlashcardSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *set)
	}
	return out, rows.Err()
}

func (r *FlashcardSetRepo) flashcards(ctx context.Context, q querier, setID uuid.UUID) ([]study.Flashcard, error) {
	sel := sqlite.Select("id", "position", "term", "definition").
		From(entsql.Table(tableCards)).
		Where(entsql.EQ("set_id", setID.String())).
		OrderBy("position")

	rows, err := queryB(ctx, q, sel)
	if err != nil {
		return nil, fmt.Errorf("query flashcards: %w", err)
	}
	defer rows.Close()

	var out []study.Flashcard
	for rows.Next() {
		var c study.Flashcard
		if err := rows.Scan(&c.ID, &c.Position, &c.Term, &c.Definition); err != nil {
			return nil, fmt.Errorf("scan flashcard: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanSet(row rowScanner) (*study.FlashcardSet, error) {
	var (
		s                study.FlashcardSet
		created, updated int64
	)
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.IsPublic, &s.AuthorID, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan flashcard set: %w", err)
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	s.UpdatedAt = time.Unix(0, updated).UTC()
	return &s, nil
}
