// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file defines the Limiter abstraction, the RateLimit middleware that
// enforces it and an in-memory, per-key token bucket implementation with
// opportunistic garbage collection of idle buckets.
//
// The token bucket is process-local. RedisLimiter (redis_ratelimit.go)
// enforces a shared per-minute window across replicas.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key may proceed. When it may
// not, retryAfter is the suggested wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration)
}

// KeyFunc selects the identity used to key a rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the authenticated user (Gin key "userID") and falls
// back to the client IP. Keys are namespaced ("user:abc", "ip:203.0.113.7").
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(userIDKey); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByClientIP keys anonymous public traffic such as widget visitors.
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// RateLimit returns a middleware that asks l about every request and answers
// 429 with a Retry-After header (whole seconds, at least 1) when denied.
// name labels the botbuilder_rate_limited_total counter.
func RateLimit(name string, l Limiter, keyFn KeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return func(c *gin.Context) {
		ok, wait := l.Allow(c.Request.Context(), keyFn(c))
		if ok {
			c.Next()
			return
		}
		rateLimited.WithLabelValues(name).Inc()
		secs := int(math.Ceil(wait.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		abortJSON(c, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
	}
}

// visitor holds a single bucket and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucket is a per-key token-bucket Limiter. Buckets are created on
// demand and evicted after ttl of inactivity. Safe for concurrent use.
type TokenBucket struct {
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewTokenBucket refills rps tokens per second up to burst. A burst <= 0 is
// coerced to 1.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// Allow implements Limiter.
func (tb *TokenBucket) Allow(_ context.Context, key string) (bool, time.Duration) {
	lim := tb.getVisitor(key)
	r := lim.Reserve()
	if !r.OK() {
		return false, time.Second
	}
	if d := r.Delay(); d > 0 {
		// Give the token back; the caller is rejected, not delayed.
		r.Cancel()
		return false, d
	}
	return true, 0
}

// getVisitor returns the bucket for key, creating it if absent. Every ~5000
// lookups idle buckets are evicted before the requested one is touched, so a
// stale bucket is dropped even when it is the one being fetched.
func (tb *TokenBucket) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.cleanupN++
	if tb.cleanupN >= 5000 {
		for k, vv := range tb.visitors {
			if now.Sub(vv.lastSeen) >= tb.ttl {
				delete(tb.visitors, k)
			}
		}
		tb.cleanupN = 0
	}

	if v, ok := tb.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(tb.rps, tb.burst)
	tb.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
