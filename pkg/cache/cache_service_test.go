package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	ok, err := c.SetNX(ctx, "k", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)

	ok, err = c.SetNX(ctx, "k", "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(NewMemoryCache(), time.Hour)

	orderID, acquired, err := store.Begin(ctx, "user-1", "req-1")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Empty(t, orderID)

	_, acquired, err = store.Begin(ctx, "user-1", "req-1")
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.False(t, acquired)

	// 不同用户的同名键互不影响
	_, acquired, err = store.Begin(ctx, "user-2", "req-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, store.Complete(ctx, "user-1", "req-1", "order-9"))
	orderID, acquired, err = store.Begin(ctx, "user-1", "req-1")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, "order-9", orderID)

	require.NoError(t, store.Abort(ctx, "user-2", "req-1"))
	_, acquired, err = store.Begin(ctx, "user-2", "req-1")
	require.NoError(t, err)
	assert.True(t, acquired)
}
