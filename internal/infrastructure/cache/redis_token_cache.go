package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTokenKeyPrefix = "ledgersync:token:"

// RedisTokenCache implements TokenCache using Redis.
// This lets several sync workers share one upstream token.
type RedisTokenCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisTokenCache creates a new Redis-based token cache
func NewRedisTokenCache(cfg RedisConfig) (*RedisTokenCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTokenCacheWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisTokenCacheWithClient creates a cache with an existing Redis client
func NewRedisTokenCacheWithClient(client *redis.Client, keyPrefix string) *RedisTokenCache {
	if keyPrefix == "" {
		keyPrefix = defaultTokenKeyPrefix
	}
	return &RedisTokenCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns a cached token
func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	token, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	return token, true, nil
}

// Set caches a token with a TTL
func (c *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Delete removes a cached token
func (c *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}
