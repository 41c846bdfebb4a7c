package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID_RoundTrip(t *testing.T) {
	id := uuid.New()
	got, err := UserID(WithUser(context.Background(), id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestUserID_Missing(t *testing.T) {
	_, err := UserID(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUserID_NilIsUnauthenticated(t *testing.T) {
	_, err := UserID(WithUser(context.Background(), uuid.Nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
