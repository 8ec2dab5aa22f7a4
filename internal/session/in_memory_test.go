package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CreateGetDelete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	id, err := NewID()
	require.NoError(t, err)

	sess := &Session{
		ID:        id,
		UserID:    "687072",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "687072", got.UserID)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_ExpiredSessionIsGone(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{
		ID:        "stale",
		UserID:    "1",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.Create(ctx, sess))

	_, err := store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewID_Unique(t *testing.T) {
	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 43)
}
