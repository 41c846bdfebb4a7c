package study

import (
	"fmt"

	"github.com/google/uuid"
)

// IngestionError indicates a document could not be read, extracted or
// indexed.
type IngestionError struct {
	Filename string
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %q: %v", e.Filename, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// RetrievalError indicates the vector store could not serve a query.
// An empty result is not an error.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve context: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// SchemaViolationError indicates model output that is not JSON, does not
// validate against the artifact schema, or breaks a semantic rule such as
// item count or position range. The whole call fails; nothing is kept.
type SchemaViolationError struct {
	Artifact string // "flashcard-set", "quiz", "graded-quiz"
	Reason   string
	Err      error
}

func (e *SchemaViolationError) Error() string {
	if e.Err != nil && e.Reason == "" {
		return fmt.Sprintf("%s: schema violation: %v", e.Artifact, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: schema violation: %s: %v", e.Artifact, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: schema violation: %s", e.Artifact, e.Reason)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// ReferenceNotFoundError indicates a referenced entity does not exist.
type ReferenceNotFoundError struct {
	Kind string // "quiz", "flashcard-set", "quiz-attempt"
	ID   uuid.UUID
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// GradingError indicates the grading call failed or produced an unusable
// verdict. Err keeps the cause so schema violations stay detectable.
type GradingError struct {
	QuizID uuid.UUID
	Err    error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("grade quiz %s: %v", e.QuizID, e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

// NotFound builds a ReferenceNotFoundError.
func NotFound(kind string, id uuid.UUID) error {
	return &ReferenceNotFoundError{Kind: kind, ID: id}
}
