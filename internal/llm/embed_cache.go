package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// KV is the minimal byte store the embedding cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// MapKV is an in-process KV. TTLs are ignored.
type MapKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMapKV() *MapKV {
	return &MapKV{m: make(map[string][]byte)}
}

func (m *MapKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.m[key]
	return b, ok, nil
}

func (m *MapKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
	return nil
}

// CachedEmbedder is a decorator that memoizes embeddings by model and text.
// Only misses reach the inner embedder, in a single batch.
type CachedEmbedder struct {
	inner Embedder
	kv    KV
	model string
	ttl   time.Duration
	log   zerolog.Logger
}

// WithEmbeddingCache wraps an Embedder. model namespaces the keys so a model
// switch never serves stale vectors.
func WithEmbeddingCache(e Embedder, kv KV, model string, ttl time.Duration, log zerolog.Logger) Embedder {
	return &CachedEmbedder{inner: e, kv: kv, model: model, ttl: ttl, log: log}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		b, ok, err := c.kv.Get(ctx, c.key(t))
		if err != nil {
			// A broken cache degrades to a pass-through.
			c.log.Warn().Err(err).Msg("embedding cache read failed")
		}
		if ok {
			if vec, derr := decodeVector(b); derr == nil {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.kv.Set(ctx, c.key(missTexts[j]), encodeVector(vecs[j]), c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("embedding cache write failed")
		}
	}
	return out, nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "moneta:emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
