// Package retrieval fetches the learner's own document chunks most relevant
// to a query.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
)

// Separator sits between chunk texts when they are joined into one context
// block.
const Separator = "\n---\n"

// Request describes one retrieval. Scope narrows results further; it is
// always combined with the current user's ownership filter, never
// substituted for it.
type Request struct {
	Query     string
	Threshold float64
	TopK      int
	Scope     vectorstore.Filter
}

// Retriever embeds queries and searches the vector store.
type Retriever struct {
	store    vectorstore.Store
	embedder llm.Embedder
	log      zerolog.Logger
}

// New creates a Retriever.
func New(store vectorstore.Store, embedder llm.Embedder, log zerolog.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, log: log}
}

// Retrieve returns chunks owned by the current user, each scoring above
// req.Threshold, most similar first. No matches is an empty result, not an
// error. Embedding or store failures are *study.RetrievalError.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]vectorstore.Chunk, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}

	vecs, err := r.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, &study.RetrievalError{Query: req.Query, Err: fmt.Errorf("embed query: %w", err)}
	}
	if len(vecs) != 1 {
		return nil, &study.RetrievalError{Query: req.Query, Err: fmt.Errorf("embed query: got %d vectors", len(vecs))}
	}

	filter := OwnerScope(owner, req.Scope)
	chunks, err := r.store.Query(ctx, vectorstore.Query{
		Embedding: vecs[0],
		TopK:      req.TopK,
		Threshold: req.Threshold,
		Filter:    filter,
	})
	if err != nil {
		return nil, &study.RetrievalError{Query: req.Query, Err: err}
	}

	// Results stay inside the owner scope and above the threshold whatever
	// the backend returns.
	out := chunks[:0]
	for _, c := range chunks {
		if c.Score > req.Threshold && filter.Match(c.Metadata) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if req.TopK > 0 && len(out) > req.TopK {
		out = out[:req.TopK]
	}

	r.log.Debug().
		Str("filter", filter.String()).
		Float64("threshold", req.Threshold).
		Int("top_k", req.TopK).
		Int("hits", len(out)).
		Msg("retrieved context")
	return out, nil
}

// OwnerScope ANDs the owner filter with an optional extra scope.
func OwnerScope(owner uuid.UUID, scope vectorstore.Filter) vectorstore.Filter {
	return vectorstore.And(vectorstore.Eq(vectorstore.KeyOwner, owner.String()), scope)
}

// DocumentScope narrows retrieval to one source document.
func DocumentScope(docID string) vectorstore.Filter {
	return vectorstore.Eq(vectorstore.KeySourceDoc, docID)
}

// FlashcardSetScope narrows retrieval to documents attached to a set.
func FlashcardSetScope(setID uuid.UUID) vectorstore.Filter {
	return vectorstore.Eq(vectorstore.KeyFlashcardSet, setID.String())
}

// JoinChunks concatenates chunk texts with Separator.
func JoinChunks(chunks []vectorstore.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, Separator)
}
