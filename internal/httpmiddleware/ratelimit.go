package httpmiddleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a per-IP request budget. Counting happens in Redis
// (fixed one-minute windows shared across replicas); when Redis is not
// reachable it degrades to an in-process token bucket.
type RateLimiter struct {
	rdb    *redis.Client
	perMin int

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client IP.
// rdb may be nil to force the in-memory fallback.
func NewRateLimiter(rdb *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	return &RateLimiter{
		rdb:    rdb,
		perMin: perMinute,
		state:  make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing the limit.
func (l *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(c.Request.Context(), ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(ctx context.Context, key string) bool {
	if l.rdb != nil {
		if ok, err := l.allowRedis(ctx, key); err == nil {
			return ok
		}
	}
	return l.allowLocal(key)
}

func (l *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	window := time.Now().Unix() / 60
	rkey := fmt.Sprintf("ratelimit:%s:%d", key, window)

	count, err := l.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		l.rdb.Expire(ctx, rkey, 2*time.Minute)
	}
	return count <= int64(l.perMin), nil
}

func (l *RateLimiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: l.perMin - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.perMin))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.perMin {
			b.tokens = l.perMin
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
