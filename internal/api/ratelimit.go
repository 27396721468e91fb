package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func newClientLimiter(rps, burst int) *clientLimiter {
	return &clientLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (cl *clientLimiter) allow(client string) bool {
	now := cl.now()

	cl.mu.Lock()
	b, ok := cl.buckets[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.buckets[client] = b
	}
	b.lastSeen = now
	cl.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle for longer than ttl and returns how many remain.
func (cl *clientLimiter) sweep(ttl time.Duration) int {
	cutoff := cl.now().Add(-ttl)

	cl.mu.Lock()
	defer cl.mu.Unlock()
	for client, b := range cl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(cl.buckets, client)
		}
	}
	return len(cl.buckets)
}

func (cl *clientLimiter) sweepUntilDone(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cl.sweep(limiterIdleTTL)
		}
	}
}

// RateLimiter throttles registry clients by address. Registrations and
// lookups share one budget of rps requests per second with the given burst.
func RateLimiter(ctx context.Context, rps, burst int) gin.HandlerFunc {
	cl := newClientLimiter(rps, burst)
	go cl.sweepUntilDone(ctx)

	return func(c *gin.Context) {
		if !cl.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests to the land registry, retry shortly",
			})
			return
		}
		c.Next()
	}
}
