// Package auth carries the authenticated user through a context. It is the
// single place that decides whose data a pipeline call may touch.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

const userKey contextKey = "moneta_user"

// ErrUnauthenticated is returned when no user is attached to the context.
var ErrUnauthenticated = errors.New("no authenticated user in context")

// WithUser attaches the authenticated user's ID to ctx.
func WithUser(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userKey, id)
}

// UserID returns the authenticated user. There is no default: a missing or
// nil ID is ErrUnauthenticated.
func UserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(userKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}
