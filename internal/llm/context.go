package llm

import "context"

type contextKey string

const purposeKey contextKey = "llm_purpose"

// Purposes label recorded model calls so usage can be grouped per pipeline
// stage.
const (
	PurposeFlashcards = "flashcard-generation"
	PurposeRewrite    = "query-rewrite"
	PurposeCondense   = "document-condense"
	PurposeQuiz       = "quiz-generation"
	PurposeGrading    = "quiz-grading"
	PurposeChat       = "study-chat"

	// PurposeUnknown is reported for calls made without a purpose.
	PurposeUnknown = "unknown"
)

// WithPurpose tags ctx with the pipeline stage making the call.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the stage ctx was tagged with, or PurposeUnknown.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok && v != "" {
		return v
	}
	return PurposeUnknown
}
