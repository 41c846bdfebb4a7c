package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/ui/theme"
)

func renderFlashcardSet(w io.Writer, set *study.FlashcardSet) {
	lipgloss.Fprintln(w, theme.Title.Render(set.Title))
	if set.Description != "" {
		lipgloss.Fprintln(w, theme.Subtitle.Render(set.Description))
	}
	if set.ID != uuid.Nil {
		visibility := "private"
		if set.IsPublic {
			visibility = "public"
		}
		lipgloss.Fprintln(w, theme.Hint.Render(fmt.Sprintf("%s · %s", set.ID, visibility)))
	}
	lipgloss.Fprintln(w)

	cards := slices.Clone(set.Flashcards)
	slices.SortStableFunc(cards, func(a, b study.Flashcard) int { return a.Position - b.Position })
	for _, c := range cards {
		body := theme.Label.Render(fmt.Sprintf("%d. %s", c.Position, c.Term)) + "\n" + theme.Body.Render(c.Definition)
		lipgloss.Fprintln(w, theme.Card.Width(72).Render(body))
	}
}

func renderQuiz(w io.Writer, quiz *study.Quiz, answers bool) {
	lipgloss.Fprintln(w, theme.Title.Render(quiz.Title))
	if quiz.Description != "" {
		lipgloss.Fprintln(w, theme.Subtitle.Render(quiz.Description))
	}
	if quiz.ID != uuid.Nil {
		lipgloss.Fprintln(w, theme.Hint.Render(quiz.ID.String()))
	}
	lipgloss.Fprintln(w)

	questions := slices.Clone(quiz.Questions)
	slices.SortStableFunc(questions, func(a, b study.Question) int { return a.Position - b.Position })
	for _, q := range questions {
		lipgloss.Fprintln(w, renderQuestion(q, answers))
	}
}

func renderQuestion(q study.Question, answers bool) string {
	var b strings.Builder
	b.WriteString(theme.Label.Render(fmt.Sprintf("%d.", q.Position)))
	b.WriteString(" " + q.Content + " ")
	b.WriteString(theme.Hint.Render("(" + typeHint(q.Type) + ")"))
	if q.Type == study.ShortAnswer {
		if answers {
			for _, o := range q.CorrectOptions() {
				b.WriteString("\n   " + theme.Correct.Render("→ "+o.Content))
			}
		}
		return b.String()
	}

	opts := slices.Clone(q.Options)
	slices.SortStableFunc(opts, func(a, b study.Option) int { return a.Position - b.Position })
	for _, o := range opts {
		line := fmt.Sprintf("   %d) %s", o.Position, o.Content)
		if answers && o.IsCorrect {
			line = theme.Correct.Render(line + " ✓")
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

func typeHint(t study.QuestionType) string {
	switch t {
	case study.MultipleChoiceSingle:
		return "choose one"
	case study.MultipleChoiceMulti:
		return "choose all that apply, comma separated"
	case study.TrueFalse:
		return "true or false"
	default:
		return "short answer"
	}
}

func renderAttempt(w io.Writer, quiz *study.Quiz, attempt *study.QuizAttempt) {
	byID := make(map[string]study.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		byID[q.ID.String()] = q
	}
	lipgloss.Fprintln(w, theme.Field("Score", theme.Score(attempt.Score)))
	lipgloss.Fprintln(w, theme.Hint.Render(fmt.Sprintf("%s · %s", attempt.ID, attempt.AttemptDate.Local().Format("2006-01-02 15:04"))))
	lipgloss.Fprintln(w)
	for _, r := range attempt.Responses {
		q := byID[r.QuestionID.String()]
		lipgloss.Fprintf(w, "%s %d. %s\n", theme.Mark(r.IsCorrect), q.Position, q.Content)
		lipgloss.Fprintf(w, "   %s\n", theme.Field("Your answer", r.ResponseText))
		if r.Feedback != "" {
			lipgloss.Fprintf(w, "   %s\n", theme.Hint.Render(r.Feedback))
		}
	}
}
