package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/infrastructure/config"
)

// TokenCacheFactory creates token caches based on configuration
type TokenCacheFactory struct {
	cfg                   config.TokenCacheConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// TokenCacheFactoryOption is a functional option for configuring the factory
type TokenCacheFactoryOption func(*TokenCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) TokenCacheFactoryOption {
	return func(f *TokenCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory cache when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) TokenCacheFactoryOption {
	return func(f *TokenCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewTokenCacheFactory creates a new factory
func NewTokenCacheFactory(cfg config.TokenCacheConfig, opts ...TokenCacheFactoryOption) *TokenCacheFactory {
	f := &TokenCacheFactory{
		cfg:                   cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-based token cache
func (f *TokenCacheFactory) CreateRedisCache() (TokenCache, error) {
	c, err := NewRedisTokenCache(RedisConfig{
		Addr:      f.cfg.RedisAddr(),
		Password:  f.cfg.RedisPassword,
		DB:        f.cfg.RedisDB,
		KeyPrefix: f.cfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis token cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates an in-memory token cache
func (f *TokenCacheFactory) CreateInMemoryCache() TokenCache {
	return NewInMemoryTokenCache()
}

// CreateCache creates the configured cache. An unreachable redis backend
// falls back to memory when fallback is allowed.
func (f *TokenCacheFactory) CreateCache() (TokenCache, error) {
	if f.cfg.Backend != "redis" {
		return f.CreateInMemoryCache(), nil
	}

	c, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis token cache", zap.String("addr", f.cfg.RedisAddr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for token cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory token cache",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
