package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/models"
)

// callerIdleTTL is how long an unused caller's bucket is kept.
const callerIdleTTL = time.Hour

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiters holds one token bucket per caller (API key, else client IP).
type limiters struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

func (l *limiters) get(caller string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[caller]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[caller] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (l *limiters) evictIdle(now time.Time) {
	cutoff := now.Add(-callerIdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// RateLimit returns per-caller token-bucket rate limiting middleware. Every
// extraction holds a browser for seconds, so the limit protects the pool
// more than the HTTP server. A non-positive rate disables limiting.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	ls := &limiters{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   max(cfg.Burst, 1),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			ls.evictIdle(now)
		}
	}()

	return func(c *gin.Context) {
		caller := c.GetString(APIKeyContextKey)
		if caller == "" {
			caller = c.ClientIP()
		}

		if !ls.get(caller, time.Now()).Allow() {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
