package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// initRedis connects to Redis. A nil client means caching and the shared
// rate-limit window are disabled; the service still works without it.
func initRedis() (*redis.Client, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis:6379"
	}

	opt, err := redis.ParseURL(fmt.Sprintf("redis://%s", redisURL))
	if err != nil {
		// Fallback to simple connection
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// cacheGet loads a JSON value from Redis into v. Returns false on a miss,
// a decode failure, or when caching is disabled.
func cacheGet(ctx context.Context, rdb *redis.Client, key string, v any) bool {
	if rdb == nil {
		return false
	}
	cached, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(cached), v) == nil
}

// cacheSet stores v as JSON with a TTL. Failures are ignored; the cache is
// best effort.
func cacheSet(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) {
	if rdb == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		rdb.SetEx(ctx, key, data, ttl)
	}
}

// cacheDel drops keys, typically after a write invalidates them.
func cacheDel(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	rdb.Del(ctx, keys...)
}
