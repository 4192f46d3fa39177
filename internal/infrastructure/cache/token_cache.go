package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Constants for in-memory token cache configuration
const (
	defaultCleanupInterval = 30 * time.Minute
)

// TokenCache stores upstream access tokens until shortly before they expire.
// Get reports a miss with ok=false and a nil error.
type TokenCache interface {
	Get(ctx context.Context, key string) (token string, ok bool, err error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryTokenCache implements TokenCache with an in-process expiring map.
// It is suitable for the CLI and single-instance deployments.
type InMemoryTokenCache struct {
	items *gocache.Cache
}

// NewInMemoryTokenCache creates a new in-memory token cache
func NewInMemoryTokenCache() *InMemoryTokenCache {
	return &InMemoryTokenCache{
		items: gocache.New(gocache.NoExpiration, defaultCleanupInterval),
	}
}

// Get returns a cached token
func (c *InMemoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	v, found := c.items.Get(key)
	if !found {
		return "", false, nil
	}
	token, ok := v.(string)
	return token, ok, nil
}

// Set caches a token. A non-positive ttl is ignored since the token is
// already considered expired.
func (c *InMemoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.items.Set(key, token, ttl)
	return nil
}

// Delete removes a cached token
func (c *InMemoryTokenCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Size returns the number of cached tokens, including expired ones not yet
// cleaned up
func (c *InMemoryTokenCache) Size() int {
	return c.items.ItemCount()
}
