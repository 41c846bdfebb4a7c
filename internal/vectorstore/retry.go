package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig bounds every store call with a per-attempt timeout and retries
// failed attempts.
type RetryConfig struct {
	MaxAttempts int
	Timeout     time.Duration
	Wait        time.Duration
}

// DefaultRetryConfig allows one retry and 15 seconds per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		Timeout:     15 * time.Second,
		Wait:        250 * time.Millisecond,
	}
}

// ErrTimeout marks an attempt that ran out of its own time budget, as
// opposed to the caller's context ending.
type ErrTimeout struct {
	Op    string
	After time.Duration
	Err   error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("vector store %s timed out after %s: %v", e.Op, e.After, e.Err)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

// RetryStore is a decorator adding timeouts and retries to a Store.
type RetryStore struct {
	inner  Store
	config RetryConfig
	log    zerolog.Logger
}

// WithRetry wraps s. Caller cancellation and ErrNoFilter are never retried.
func WithRetry(s Store, cfg RetryConfig, log zerolog.Logger) Store {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryStore{inner: s, config: cfg, log: log}
}

func (r *RetryStore) Upsert(ctx context.Context, chunks []Chunk) error {
	return r.do(ctx, "upsert", func(ctx context.Context) error {
		return r.inner.Upsert(ctx, chunks)
	})
}

func (r *RetryStore) Query(ctx context.Context, q Query) ([]Chunk, error) {
	var out []Chunk
	err := r.do(ctx, "query", func(ctx context.Context) error {
		var err error
		out, err = r.inner.Query(ctx, q)
		return err
	})
	return out, err
}

func (r *RetryStore) Delete(ctx context.Context, f Filter) (int, error) {
	var n int
	err := r.do(ctx, "delete", func(ctx context.Context) error {
		var err error
		n, err = r.inner.Delete(ctx, f)
		return err
	})
	return n, err
}

func (r *RetryStore) do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := range r.config.MaxAttempts {
		err := r.attempt(ctx, op, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == r.config.MaxAttempts-1 {
			break
		}
		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("vector store call failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.Wait):
		}
	}
	return lastErr
}

func (r *RetryStore) attempt(ctx context.Context, op string, fn func(context.Context) error) error {
	if r.config.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &ErrTimeout{Op: op, After: r.config.Timeout, Err: err}
	}
	return err
}

func retryable(err error) bool {
	var timeout *ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	if errors.Is(err, ErrNoFilter) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
