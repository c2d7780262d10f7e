package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := base
	cache := NewCache()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "doctor:d1", []byte("v"), 30))
	got, err := cache.Get(ctx, "doctor:d1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(31 * time.Second)
	_, err = cache.Get(ctx, "doctor:d1")
	assert.True(t, errors.Is(err, providers.ErrCacheMiss))

	exists, err := cache.Exists(ctx, "doctor:d1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()

	require.NoError(t, cache.Set(ctx, "slots:d1:2024-06-10:30:30", []byte("a"), 0))
	require.NoError(t, cache.Set(ctx, "slots:d1:2024-06-11:30:30", []byte("b"), 0))
	require.NoError(t, cache.Set(ctx, "slots:d2:2024-06-10:30:30", []byte("c"), 0))

	require.NoError(t, cache.DeletePattern(ctx, "slots:d1:*"))

	for key, want := range map[string]bool{
		"slots:d1:2024-06-10:30:30": false,
		"slots:d1:2024-06-11:30:30": false,
		"slots:d2:2024-06-10:30:30": true,
	} {
		exists, err := cache.Exists(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, exists, key)
	}

	assert.Error(t, cache.DeletePattern(ctx, "slots:["))
}

func TestCache_ExpiredEntriesAreSweptWithoutReads(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()

	for i := 0; i < 50; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("slots:d1:2024-06-10:%d:30", i), []byte("v"), 1))
	}
	require.NoError(t, cache.Set(ctx, "doctor:d1", []byte("v"), 0))
	assert.Equal(t, 51, cache.Len())

	assert.Eventually(t, func() bool { return cache.Len() == 1 }, 5*time.Second, 50*time.Millisecond)

	exists, err := cache.Exists(ctx, "doctor:d1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCache_BoundedSize(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheWithSize(3)

	for i := 0; i < 10; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("slots:d1:2024-06-10:%d:30", i), []byte("v"), 30))
	}
	assert.Equal(t, 3, cache.Len())

	// Least recently used keys go first.
	_, err := cache.Get(ctx, "slots:d1:2024-06-10:0:30")
	assert.True(t, errors.Is(err, providers.ErrCacheMiss))
	got, err := cache.Get(ctx, "slots:d1:2024-06-10:9:30")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestCache_SetMovesKeyBetweenExpiries(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()

	require.NoError(t, cache.Set(ctx, "doctor:d1", []byte("old"), 300))
	require.NoError(t, cache.Set(ctx, "doctor:d1", []byte("new"), 30))
	assert.Equal(t, 1, cache.Len())

	got, err := cache.Get(ctx, "doctor:d1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}
