package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Limiter is a sliding window rate limiter backed by a Redis sorted set per
// key. Events older than the window are pruned on every check.
type Limiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewLimiter constructs a Limiter. A nil client disables limiting.
func NewLimiter(client *redis.Client, prefix string) *Limiter {
	return &Limiter{client: client, prefix: prefix, now: time.Now}
}

// WithNow allows tests to override the time provider.
func (l *Limiter) WithNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Result reports the outcome of a limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow registers an event under key and reports whether it stays within max
// events per window.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) (Result, error) {
	now := l.now()
	reset := now.Add(window)
	if l.client == nil || max <= 0 || window <= 0 {
		return Result{Allowed: true, Remaining: max, ResetAt: reset}, nil
	}

	redisKey := l.prefix + key
	cutoff := float64(now.Add(-window).UnixNano())

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	current := int(countCmd.Val())
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: current <= max, Remaining: remaining, ResetAt: reset}, nil
}
