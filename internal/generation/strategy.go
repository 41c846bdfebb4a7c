package generation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/study"
)

// Mode selects how much a flashcard definition says.
type Mode int

const (
	Brief Mode = iota
	Verbose
)

func (m Mode) String() string {
	if m == Verbose {
		return "verbose"
	}
	return "brief"
}

// ParseMode accepts "brief" or "verbose" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brief", "":
		return Brief, nil
	case "verbose":
		return Verbose, nil
	}
	return Brief, fmt.Errorf("unknown mode %q (want brief or verbose)", s)
}

// Strategy is where flashcard context comes from. The set of strategies is
// closed: VectorBacked or DocumentBacked.
type Strategy interface {
	query() string
	sealed()
}

// VectorBacked grounds generation in the user's indexed documents.
type VectorBacked struct {
	Query string
}

// DocumentBacked grounds generation in one uploaded document, read directly
// rather than through the vector store.
type DocumentBacked struct {
	Query    string
	Document ingest.Document
}

func (s VectorBacked) query() string   { return s.Query }
func (s DocumentBacked) query() string { return s.Query }
func (VectorBacked) sealed()           {}
func (DocumentBacked) sealed()         {}

// FlashcardOptions is a flashcard generation request. Reference, when set,
// selects the document-backed strategy.
type FlashcardOptions struct {
	Query     string
	K         int
	Mode      Mode
	Reference *ingest.Document
}

// Strategy returns the strategy implied by the options.
func (o FlashcardOptions) Strategy() Strategy {
	if o.Reference != nil {
		return DocumentBacked{Query: o.Query, Document: *o.Reference}
	}
	return VectorBacked{Query: o.Query}
}

func (o FlashcardOptions) validate() error {
	if strings.TrimSpace(o.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if o.K <= 0 {
		return fmt.Errorf("flashcard count must be positive, got %d", o.K)
	}
	return nil
}

// QuizOptions is a quiz generation request. Empty Types allows every
// question type.
type QuizOptions struct {
	SetID uuid.UUID
	K     int
	Types []study.QuestionType
}

// AllowedTypes returns the requested types, or all types when none were
// named. Duplicates are removed and order is kept.
func (o QuizOptions) AllowedTypes() []study.QuestionType {
	if len(o.Types) == 0 {
		return study.AllQuestionTypes
	}
	seen := make(map[study.QuestionType]bool, len(o.Types))
	out := make([]study.QuestionType, 0, len(o.Types))
	for _, t := range o.Types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (o QuizOptions) validate() error {
	if o.SetID == uuid.Nil {
		return fmt.Errorf("flashcard set id is required")
	}
	if o.K <= 0 {
		return fmt.Errorf("question count must be positive, got %d", o.K)
	}
	for _, t := range o.Types {
		if !t.Valid() {
			return fmt.Errorf("unknown question type %q", t)
		}
	}
	return nil
}
