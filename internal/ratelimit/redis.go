package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a sliding window limit shared by every replica
// pointing at the same Redis.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
}

// NewRedisClient connects to redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// NewRedisLimiter creates a limiter allowing requests per window per key.
func NewRedisLimiter(client *redis.Client, requests int, window time.Duration) *RedisLimiter {
	if requests < 1 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RedisLimiter{
		client:   client,
		requests: requests,
		window:   window,
		prefix:   "sparkbot:ratelimit:",
	}
}

// Allow records the request and reports whether key is still within its limit.
// Redis errors fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string) Result {
	now := time.Now()
	windowStart := now.Add(-l.window)
	windowKey := l.prefix + key

	pipe := l.client.Pipeline()

	// Remove old entries outside window
	pipe.ZRemRangeByScore(ctx, windowKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli()))

	countCmd := pipe.ZCard(ctx, windowKey)

	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})

	pipe.Expire(ctx, windowKey, l.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true, Limit: l.requests, Remaining: l.requests, ResetAt: now}
	}

	count := countCmd.Val()
	remaining := l.requests - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count < int64(l.requests),
		Limit:     l.requests,
		Remaining: remaining,
		ResetAt:   now.Add(l.window),
	}
}
