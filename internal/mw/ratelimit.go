package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByClientIP buckets requests per client address.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyedRateLimiter stores one token bucket per key.
type KeyedRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	r        rate.Limit
	b        int
}

// NewKeyedRateLimiter creates a KeyedRateLimiter.
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

// Limiter returns the bucket for key, creating it on first use.
func (k *KeyedRateLimiter) Limiter(key string) *rate.Limiter {
	k.mu.RLock()
	limiter, exists := k.limiters[key]
	k.mu.RUnlock()
	if exists {
		return limiter
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if limiter, exists = k.limiters[key]; !exists {
		limiter = rate.NewLimiter(k.r, k.b)
		k.limiters[key] = limiter
	}
	return limiter
}

// RateLimiter rejects requests over the per-key rate with 429.
func RateLimiter(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ByClientIP
	}
	limiter := NewKeyedRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.Limiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
