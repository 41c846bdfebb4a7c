// Package vectorstore stores embedded chunks and answers similarity queries
// narrowed by metadata filters.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoFilter is returned by Delete when called without a filter.
var ErrNoFilter = errors.New("delete requires a filter")

// Metadata keys attached to every ingested chunk.
const (
	KeyOwner            = "ownerUserId"
	KeySourceDoc        = "sourceDocId"
	KeyFilename         = "filename"
	KeyOriginalFilename = "originalFilename"
	KeyFlashcardSet     = "flashcardSetId"
	KeyPage             = "page"
)

// Chunk is a span of document text with its embedding. Score is set on
// query results only: the cosine similarity to the query vector.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
	Score     float64
}

// Query describes a similarity search. Results have Score strictly greater
// than Threshold, sorted by descending Score, at most TopK of them.
type Query struct {
	Embedding []float32
	TopK      int
	Threshold float64
	Filter    Filter
}

// Store is a vector index.
type Store interface {
	// Upsert inserts chunks, replacing any with the same ID.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Query returns the chunks most similar to q.Embedding that match
	// q.Filter.
	Query(ctx context.Context, q Query) ([]Chunk, error)

	// Delete removes every chunk matching f and reports how many went.
	// Matching nothing is not an error; a nil filter is ErrNoFilter.
	Delete(ctx context.Context, f Filter) (int, error)
}

// Filter is a metadata predicate. The only forms are Eq and And, so every
// backend can translate any filter.
type Filter interface {
	Match(md map[string]string) bool
	String() string
	terms() []eqFilter
}

type eqFilter struct {
	key, value string
}

// Eq matches chunks whose metadata key equals value.
func Eq(key, value string) Filter {
	return eqFilter{key: key, value: value}
}

func (f eqFilter) Match(md map[string]string) bool {
	v, ok := md[f.key]
	return ok && v == f.value
}

func (f eqFilter) String() string   { return fmt.Sprintf("%s == %q", f.key, f.value) }
func (f eqFilter) terms() []eqFilter { return []eqFilter{f} }

type andFilter []eqFilter

// And matches chunks that satisfy every filter. Nil filters are skipped.
func And(filters ...Filter) Filter {
	var out andFilter
	for _, f := range filters {
		if f == nil {
			continue
		}
		out = append(out, f.terms()...)
	}
	return out
}

func (a andFilter) Match(md map[string]string) bool {
	for _, f := range a {
		if !f.Match(md) {
			return false
		}
	}
	return true
}

func (a andFilter) String() string {
	parts := make([]string, len(a))
	for i, f := range a {
		parts[i] = f.String()
	}
	return strings.Join(parts, " && ")
}

func (a andFilter) terms() []eqFilter { return a }

// Term is one key == value condition of a filter.
type Term struct {
	Key   string
	Value string
}

// Terms flattens f into its equality conditions in order. A key may appear
// more than once; every term must hold.
func Terms(f Filter) []Term {
	if f == nil {
		return nil
	}
	ts := f.terms()
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = Term{Key: t.key, Value: t.value}
	}
	return out
}
