package study

import (
	"fmt"
	"sort"
	"strings"
)

// FlashcardLines renders the set's flashcards one per line, in position
// order.
func (s *FlashcardSet) FlashcardLines() string {
	cards := make([]Flashcard, len(s.Flashcards))
	copy(cards, s.Flashcards)
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].Position < cards[j].Position })

	lines := make([]string, len(cards))
	for i, c := range cards {
		lines[i] = fmt.Sprintf("  Position: %d, Term: %s, Definition: %s", c.Position, c.Term, c.Definition)
	}
	return strings.Join(lines, "\n")
}

// Outline renders the set as the plain-text block embedded in prompts and
// retrieval queries.
func (s *FlashcardSet) Outline() string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nFlashcards:\n%s", s.Title, s.Description, s.FlashcardLines())
}

// Outline renders the quiz with its options and answer key.
func (q *Quiz) Outline() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nDescription: %s\nQuestions:", q.Title, q.Description)

	questions := make([]Question, len(q.Questions))
	copy(questions, q.Questions)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })

	for _, qu := range questions {
		fmt.Fprintf(&b, "\n  Position: %d, Type: %s, Question: %s", qu.Position, qu.Type, qu.Content)
		for _, o := range qu.Options {
			mark := ""
			if o.IsCorrect {
				mark = " (correct)"
			}
			fmt.Fprintf(&b, "\n    Option %d: %s%s", o.Position, o.Content, mark)
		}
	}
	return b.String()
}
