package cmd

import (
	"testing"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/study"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceQuestion() study.Question {
	return study.Question{
		ID:       uuid.New(),
		Position: 1,
		Type:     study.MultipleChoiceMulti,
		Content:  "Which are organelles?",
		Options: []study.Option{
			{Position: 1, Content: "Nucleus", IsCorrect: true},
			{Position: 2, Content: "Cytosol"},
			{Position: 3, Content: "Ribosome", IsCorrect: true},
		},
	}
}

func TestExpandResponse(t *testing.T) {
	q := choiceQuestion()
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"single number", "2", "Cytosol"},
		{"list", "1, 3", "Nucleus, Ribosome"},
		{"text kept", "nucleus", "nucleus"},
		{"unknown number kept", "7", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandResponse(q, tt.answer))
		})
	}

	short := study.Question{Type: study.ShortAnswer}
	assert.Equal(t, "3", expandResponse(short, "3"))
}

func TestParseAnswers(t *testing.T) {
	quiz := &study.Quiz{Questions: []study.Question{choiceQuestion()}}

	got, err := parseAnswers(quiz, []string{"1=1,3", "9=anything"})
	require.NoError(t, err)
	assert.Equal(t, []study.AnswerInput{
		{Position: 1, Response: "Nucleus, Ribosome"},
		{Position: 9, Response: "anything"},
	}, got)

	_, err = parseAnswers(quiz, []string{"nope"})
	assert.Error(t, err)
	_, err = parseAnswers(quiz, []string{"x=1"})
	assert.Error(t, err)
}
