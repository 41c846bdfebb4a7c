package llm

import (
	"context"
	"errors"
	"time"
)

// RetryEmbedder bounds every Embed attempt with its own deadline and retries
// transient failures with backoff.
type RetryEmbedder struct {
	inner   Embedder
	config  RetryConfig
	timeout time.Duration
}

// WithEmbedderRetry wraps e. A zero timeout leaves attempts bounded only by
// the caller's context.
func WithEmbedderRetry(e Embedder, cfg RetryConfig, timeout time.Duration) Embedder {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryEmbedder{inner: e, config: cfg, timeout: timeout}
}

func (r *RetryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := range r.config.MaxAttempts {
		out, err := r.attempt(ctx, texts)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return nil, err
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryWait(r.config, attempt, err)):
		}
	}
	return nil, lastErr
}

func (r *RetryEmbedder) attempt(ctx context.Context, texts []string) ([][]float32, error) {
	if r.timeout <= 0 {
		return r.inner.Embed(ctx, texts)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.inner.Embed(attemptCtx, texts)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, &ErrTimeout{After: r.timeout, Err: err}
	}
	return out, err
}

func (r *RetryEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}
