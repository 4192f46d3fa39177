package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/infrastructure/config"
)

func TestInMemoryTokenCache(t *testing.T) {
	c := NewInMemoryTokenCache()
	ctx := context.Background()

	t.Run("miss on empty cache", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "company-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stores and returns token", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "company-1", "abc", time.Hour))

		token, ok, err := c.Get(ctx, "company-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", token)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "short", "xyz", 10*time.Millisecond))
		time.Sleep(20 * time.Millisecond)

		_, ok, err := c.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok, "expired token should be a miss")
	})

	t.Run("non-positive ttl is ignored", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "stale", "old", 0))
		_, ok, _ := c.Get(ctx, "stale")
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "gone", "v", time.Hour))
		require.NoError(t, c.Delete(ctx, "gone"))
		_, ok, _ := c.Get(ctx, "gone")
		assert.False(t, ok)
	})
}

func TestTokenCacheFactory(t *testing.T) {
	unreachable := config.TokenCacheConfig{
		Backend:   "redis",
		RedisHost: "127.0.0.1",
		RedisPort: 1,
	}

	t.Run("memory backend", func(t *testing.T) {
		f := NewTokenCacheFactory(config.TokenCacheConfig{Backend: "memory"})
		c, err := f.CreateCache()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryTokenCache{}, c)
	})

	t.Run("falls back to memory when redis is unreachable", func(t *testing.T) {
		f := NewTokenCacheFactory(unreachable, WithLogger(zap.NewNop()))
		c, err := f.CreateCache()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryTokenCache{}, c)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewTokenCacheFactory(unreachable, WithInMemoryFallback(false))
		_, err := f.CreateCache()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})
}
