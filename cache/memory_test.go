package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_SetNX(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	ok, err := c.SetNX(ctx, "k", "first", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", "second", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", val)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "session:u1:a", "1", time.Hour))
	require.NoError(t, c.Set(ctx, "session:u1:b", "1", time.Hour))
	require.NoError(t, c.Set(ctx, "session:u2:c", "1", time.Hour))

	n, err := c.DeleteByPattern(ctx, "session:u1:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	exists, err := c.Exists(ctx, "session:u2:c")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHashKey_Deterministic(t *testing.T) {
	assert.Equal(t, HashKey("payload"), HashKey("payload"))
	assert.NotEqual(t, HashKey("payload"), HashKey("payload2"))
	assert.Len(t, HashKey("payload"), 64)
}
