package theme

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Label = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// States
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Warning = lipgloss.NewStyle().
		Foreground(Accent)
)

// Separator returns a horizontal rule of width cells.
func Separator(width int) string {
	return Rule.Render(strings.Repeat("─", width))
}

// Mark renders a check or cross.
func Mark(correct bool) string {
	if correct {
		return Correct.Render("✓")
	}
	return Incorrect.Render("✗")
}

// Score renders a 0-100 score colored by band.
func Score(score int) string {
	s := fmt.Sprintf("%d%%", score)
	switch {
	case score >= 80:
		return Correct.Render(s)
	case score >= 50:
		return Warning.Render(s)
	default:
		return Incorrect.Render(s)
	}
}

// Field renders "label: value" with a styled label.
func Field(label, value string) string {
	return Label.Render(label+":") + " " + value
}
