package study

import "github.com/google/uuid"

// The Generated* and Graded* types are the JSON shapes the model returns.
// They carry no persisted identity; positions are the only join key back to
// stored entities.

// GeneratedFlashcardSet is a model-produced flashcard set.
type GeneratedFlashcardSet struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Flashcards  []GeneratedFlashcard `json:"generatedFlashcards"`
}

// GeneratedFlashcard is a single generated term/definition pair.
type GeneratedFlashcard struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Position   int    `json:"position"`
}

// GeneratedQuiz is a model-produced quiz.
type GeneratedQuiz struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Questions   []GeneratedQuestion `json:"questions"`
}

// GeneratedQuestion is a single generated question.
type GeneratedQuestion struct {
	Content  string            `json:"content"`
	Position int               `json:"position"`
	Type     QuestionType      `json:"type"`
	Options  []GeneratedOption `json:"options"`
}

// GeneratedOption is a generated answer option. Correct is absent when the
// schema version in use does not ask the model to mark answers.
type GeneratedOption struct {
	Content  string `json:"content"`
	Position int    `json:"position"`
	Correct  *bool  `json:"isCorrect,omitempty"`
}

// GradedQuiz is the model's per-question verdict on a submission.
type GradedQuiz struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []GradedQuestion `json:"questions"`
}

// GradedQuestion is the verdict for one submitted answer.
type GradedQuestion struct {
	Content         string         `json:"content"`
	Position        int            `json:"position"`
	UserResponse    string         `json:"userResponse"`
	IsCorrectAnswer bool           `json:"isCorrectAnswer"`
	Feedback        string         `json:"feedback"`
	Options         []GradedOption `json:"options"`
}

// GradedOption echoes an option with its correctness.
type GradedOption struct {
	Content   string `json:"content"`
	Position  int    `json:"position"`
	IsCorrect bool   `json:"isCorrect"`
}

// AttemptInput is a learner's raw submission.
type AttemptInput struct {
	QuizID    uuid.UUID     `json:"quizId"`
	Responses []AnswerInput `json:"responses"`
}

// AnswerInput is the learner's answer to the question at Position.
type AnswerInput struct {
	Position int    `json:"position"`
	Response string `json:"response"`
}
