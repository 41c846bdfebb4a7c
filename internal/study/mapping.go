package study

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// NewFlashcardSetFromGenerated maps a generated set onto a new entity owned
// by authorID. Fresh IDs are assigned to the set and every flashcard.
func NewFlashcardSetFromGenerated(g *GeneratedFlashcardSet, authorID uuid.UUID) (*FlashcardSet, error) {
	var set FlashcardSet
	if err := copier.Copy(&set, g); err != nil {
		return nil, fmt.Errorf("map generated flashcard set: %w", err)
	}
	if err := copier.Copy(&set.Flashcards, &g.Flashcards); err != nil {
		return nil, fmt.Errorf("map generated flashcards: %w", err)
	}

	now := time.Now().UTC()
	set.ID = uuid.New()
	set.AuthorID = authorID
	set.CreatedAt = now
	set.UpdatedAt = now
	for i := range set.Flashcards {
		set.Flashcards[i].ID = uuid.New()
	}
	return &set, nil
}

// NewQuizFromGenerated maps a generated quiz onto a new entity owned by
// authorID and linked to its source set. Options the model did not mark
// are stored as incorrect.
func NewQuizFromGenerated(g *GeneratedQuiz, authorID, setID uuid.UUID) (*Quiz, error) {
	var quiz Quiz
	if err := copier.Copy(&quiz, g); err != nil {
		return nil, fmt.Errorf("map generated quiz: %w", err)
	}
	if err := copier.Copy(&quiz.Questions, &g.Questions); err != nil {
		return nil, fmt.Errorf("map generated questions: %w", err)
	}

	quiz.ID = uuid.New()
	quiz.AuthorID = authorID
	quiz.FlashcardSetID = setID
	quiz.CreatedAt = time.Now().UTC()

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		q.ID = uuid.New()
		src := g.Questions[i].Options
		q.Options = make([]Option, len(src))
		for j, o := range src {
			q.Options[j] = Option{
				ID:        uuid.New(),
				Position:  o.Position,
				Content:   o.Content,
				IsCorrect: o.Correct != nil && *o.Correct,
			}
		}
	}
	return &quiz, nil
}
