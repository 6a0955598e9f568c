package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetClear(t *testing.T) {
	cache := New(10, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)

	cache.Set(ctx, "k", "v")
	value, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Clear(ctx))
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestEntriesExpire(t *testing.T) {
	cache := New(10, 30*time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, "k", "v")
	_, ok := cache.Get(ctx, "k")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := cache.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestCapacityEviction(t *testing.T) {
	cache := New(2, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "a", 1)
	cache.Set(ctx, "b", 2)
	cache.Set(ctx, "c", 3)

	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get(ctx, "a")
	assert.False(t, ok, "oldest entry must be evicted")
}
