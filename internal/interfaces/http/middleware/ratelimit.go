package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/erp/ledgersync/internal/interfaces/http/dto"
)

// RateLimiter keeps one token bucket per client key. Idle buckets expire
// after a few windows.
type RateLimiter struct {
	mu      sync.Mutex
	clients *gocache.Cache
	limit   int
	window  time.Duration
}

// NewRateLimiter allows limit requests per window and per key, with bursts
// up to limit
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{
		clients: gocache.New(window*3, window*2),
		limit:   limit,
		window:  window,
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.clients.Get(key); ok {
		// Touch so active clients keep their bucket
		rl.clients.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit)
	rl.clients.SetDefault(key, l)
	return l
}

// Allow checks if a request from the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// Remaining returns the whole tokens left for the given key
func (rl *RateLimiter) Remaining(key string) int {
	v, ok := rl.clients.Get(key)
	if !ok {
		return rl.limit
	}
	tokens := int(v.(*rate.Limiter).Tokens())
	if tokens < 0 {
		return 0
	}
	return tokens
}

// RateLimit limits requests per client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RateLimitByKey returns a rate limiting middleware with custom key extractor
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		if !limiter.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				GetRequestID(c),
			))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))

		c.Next()
	}
}
