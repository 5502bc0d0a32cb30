package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_TTLAndPrefix(t *testing.T) {
	c := NewCacheService()
	defer c.Close()
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "facilities:a", []byte("1"), time.Minute)
	c.Set(ctx, "facilities:b", []byte("2"), time.Minute)
	c.Set(ctx, "other", []byte("3"), time.Minute)

	v, ok := c.Get(ctx, "facilities:a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	c.InvalidateByPrefix(ctx, "facilities:")
	_, ok = c.Get(ctx, "facilities:b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "other")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "other")
	assert.False(t, ok)
}

func TestCachedJSON(t *testing.T) {
	c := NewCacheService()
	defer c.Close()
	ctx := context.Background()

	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := cachedJSON(ctx, c, "k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, v)
	}
	assert.Equal(t, 1, calls)

	// ошибки не кэшируются
	failing := func() ([]string, error) { return nil, errors.New("db down") }
	_, err := cachedJSON(ctx, c, "bad", time.Minute, failing)
	require.Error(t, err)
	_, ok := c.Get(ctx, "bad")
	assert.False(t, ok)

	// без кэша значение вычисляется каждый раз
	_, err = cachedJSON(ctx, nil, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
