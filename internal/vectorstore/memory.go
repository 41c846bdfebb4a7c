package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Store using brute-force cosine similarity.
type Memory struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
	order  []string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{chunks: make(map[string]Chunk)}
}

func (m *Memory) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("upsert chunk: empty id")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if _, ok := m.chunks[c.ID]; !ok {
			m.order = append(m.order, c.ID)
		}
		c.Metadata = maps.Clone(c.Metadata)
		c.Embedding = append([]float32(nil), c.Embedding...)
		c.Score = 0
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Chunk
	for _, id := range m.order {
		c := m.chunks[id]
		if q.Filter != nil && !q.Filter.Match(c.Metadata) {
			continue
		}
		score := Cosine(q.Embedding, c.Embedding)
		if score <= q.Threshold {
			continue
		}
		c.Score = score
		c.Metadata = maps.Clone(c.Metadata)
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if q.TopK > 0 && len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, f Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f == nil || len(f.terms()) == 0 {
		return 0, ErrNoFilter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		if f.Match(m.chunks[id].Metadata) {
			delete(m.chunks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}

// Len reports the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Cosine returns the cosine similarity of a and b, 0 when either is a zero
// vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
