// Package ratelimit implements sliding-window request limits keyed by caller.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// slidingWindow trims the sorted set to the window, then records the hit
// only when the caller is still under the limit.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local current = redis.call('ZCARD', key)

if current < limit then
	local counter = redis.call('INCR', key .. ':seq')
	redis.call('ZADD', key, now, now .. ':' .. counter)
	local ttl = math.ceil(window_ms / 1000)
	redis.call('EXPIRE', key, ttl)
	redis.call('EXPIRE', key .. ':seq', ttl)
	return {1, limit - current - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset_at = 0
if oldest and #oldest >= 2 then
	reset_at = tonumber(oldest[2]) + window_ms
end
return {0, 0, reset_at}
`)

type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

func NewRedisLimiter(client *redis.Client, keyPrefix string) *RedisLimiter {
	return &RedisLimiter{client: client, keyPrefix: keyPrefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now()
	windowStart := now.Add(-window)

	res, err := slidingWindow.Run(ctx, l.client, []string{l.keyPrefix + key},
		now.UnixMilli(), windowStart.UnixMilli(), limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(res))
	}

	resetAt := now.Add(window)
	if res[2] > 0 {
		resetAt = time.UnixMilli(res[2])
	}
	return Result{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		Limit:     limit,
		ResetAt:   resetAt,
	}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	k := l.keyPrefix + key
	return l.client.Del(ctx, k, k+":seq").Err()
}

// memorySweepInterval bounds how often idle keys are dropped.
const memorySweepInterval = time.Minute

type memoryBucket struct {
	hits   []time.Time
	window time.Duration
}

// MemoryLimiter is the single-process fallback used when Redis is not
// configured. Keys whose window has emptied are dropped on a periodic sweep.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*memoryBucket
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*memoryBucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &memoryBucket{}
		l.buckets[key] = b
	}
	b.window = window
	b.hits = pruneBefore(b.hits, now.Add(-window))

	if len(b.hits) >= limit {
		resetAt := now.Add(window)
		if len(b.hits) > 0 {
			resetAt = b.hits[0].Add(window)
		} else {
			delete(l.buckets, key)
		}
		return Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}

	b.hits = append(b.hits, now)
	return Result{
		Allowed:   true,
		Remaining: limit - len(b.hits),
		Limit:     limit,
		ResetAt:   now.Add(window),
	}, nil
}

// Len reports how many keys are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < memorySweepInterval {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		b.hits = pruneBefore(b.hits, now.Add(-b.window))
		if len(b.hits) == 0 {
			delete(l.buckets, key)
		}
	}
}

func pruneBefore(hits []time.Time, windowStart time.Time) []time.Time {
	kept := hits[:0]
	for _, at := range hits {
		if at.After(windowStart) {
			kept = append(kept, at)
		}
	}
	return kept
}
