package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Fixed-window limits applied per client IP per route group.
const (
	rateLimitWindow   = time.Minute
	rateLimitRequests = 60
)

// rateLimiter enforces a fixed request window. When Redis is available the
// window is shared across instances via INCR/EXPIRE; otherwise it falls
// back to an in-process map.
type rateLimiter struct {
	rdb    *redis.Client
	window time.Duration
	limit  int

	mu    sync.Mutex
	local map[string]*windowCounter
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(rdb *redis.Client) *rateLimiter {
	return &rateLimiter{
		rdb:    rdb,
		window: rateLimitWindow,
		limit:  rateLimitRequests,
		local:  make(map[string]*windowCounter),
	}
}

// allow reports whether another request fits in the current window.
func (l *rateLimiter) allow(ctx context.Context, key string) bool {
	if l.rdb != nil {
		count, err := l.rdb.Incr(ctx, "ratelimit:"+key).Result()
		if err == nil {
			if count == 1 {
				l.rdb.Expire(ctx, "ratelimit:"+key, l.window)
			}
			return count <= int64(l.limit)
		}
		// Redis down mid-flight: fall through to the local window.
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.local[key]
	if !ok || now.After(entry.resetAt) {
		l.local[key] = &windowCounter{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	entry.count++
	return entry.count <= l.limit
}

// middleware keys the window by route group and client IP.
func (l *rateLimiter) middleware(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", group, c.ClientIP())
		if !l.allow(c.Request.Context(), key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
