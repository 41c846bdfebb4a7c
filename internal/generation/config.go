package generation

import (
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/schemas"
)

// QuizQueryPrefix precedes the serialized set in the supplementary-document
// retrieval query of quiz generation.
const QuizQueryPrefix = "Educational content for quiz generation related to the following set and its details:\n"

// RetrievalConfig bounds one context lookup.
type RetrievalConfig struct {
	Threshold float64
	TopK      int
}

// Config controls the behavior of the Engine.
type Config struct {
	// FlashcardSchema and QuizSchema constrain the model output.
	FlashcardSchema *llm.Schema
	QuizSchema      *llm.Schema

	// RewriteQuery sends the request through a cheap rewrite call before
	// vector retrieval. RewriteModel overrides the model for that call.
	RewriteQuery bool
	RewriteModel string

	FlashcardRetrieval   RetrievalConfig
	FlashcardTemperature float64
	FlashcardTopP        float64

	QuizRetrieval   RetrievalConfig
	QuizModel       string
	QuizTemperature float64

	// MaxTokens is the token budget of a generation response.
	MaxTokens int

	// CondenseMaxChunks caps how much of a reference document is sent to
	// the condense call.
	CondenseMaxChunks int
	CondenseMaxTokens int

	// Validators run in order after schema validation; the first failure
	// rejects the whole result.
	FlashcardValidators []FlashcardValidator
	QuizValidators      []QuizValidator
}

// DefaultConfig returns a Config with the standard validator chains and the
// latest schema versions.
func DefaultConfig() Config {
	return Config{
		FlashcardSchema: schemas.MustLatest(schemas.FlashcardSet),
		QuizSchema:      schemas.MustLatest(schemas.GeneratedQuiz),

		RewriteQuery: true,

		FlashcardRetrieval:   RetrievalConfig{Threshold: 0.6, TopK: 10},
		FlashcardTemperature: 0.4,
		FlashcardTopP:        0.8,

		QuizRetrieval:   RetrievalConfig{Threshold: 0.75, TopK: 5},
		QuizTemperature: 0.3,

		MaxTokens:         4096,
		CondenseMaxChunks: 40,
		CondenseMaxTokens: 2048,

		FlashcardValidators: []FlashcardValidator{
			&StructuralValidator{},
		},
		QuizValidators: []QuizValidator{
			&StructuralValidator{},
			&QuestionTypeValidator{},
			&AnswerKeyValidator{},
		},
	}
}

// ForProvider fills the per-call model overrides for a provider name using
// its fast and strong tiers. Unknown providers keep their configured model.
func (c Config) ForProvider(name string) Config {
	if c.RewriteModel == "" {
		c.RewriteModel = llm.TierModel(name, llm.TierFast)
	}
	if c.QuizModel == "" {
		c.QuizModel = llm.TierModel(name, llm.TierStrong)
	}
	return c
}
