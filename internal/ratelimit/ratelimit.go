// Package ratelimit provides per-key request limiting backends.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result describes the outcome of a single limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) Result
}

// MemoryLimiter is a token bucket limiter keyed in process memory.
// It suits a single replica; use RedisLimiter when replicas share a quota.
type MemoryLimiter struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	sweepAt time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates a limiter allowing rps requests per second per key
// with bursts up to burst.
func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     10 * time.Minute,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) Result {
	now := time.Now()

	l.mu.Lock()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	l.mu.Unlock()

	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	// Time until one full token is available again.
	resetAt := now
	if tokens < 1 && l.rps > 0 {
		wait := time.Duration((1 - tokens) / float64(l.rps) * float64(time.Second))
		resetAt = now.Add(wait)
	}

	return Result{
		Allowed:   allowed,
		Limit:     l.burst,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// sweep drops buckets idle for longer than the ttl. Caller holds l.mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.sweepAt = now.Add(l.ttl)
}
