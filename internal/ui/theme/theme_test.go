package theme

import (
	"testing"

	"charm.land/lipgloss/v2"
	"github.com/stretchr/testify/assert"
)

func TestScoreBands(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, Correct.Render("100%")},
		{80, Correct.Render("80%")},
		{67, Warning.Render("67%")},
		{49, Incorrect.Render("49%")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.score))
	}
}

func TestSeparatorWidth(t *testing.T) {
	assert.Equal(t, 12, lipgloss.Width(Separator(12)))
}

func TestMark(t *testing.T) {
	assert.Contains(t, Mark(true), "✓")
	assert.Contains(t, Mark(false), "✗")
}
