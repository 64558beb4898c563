// ratelimit.go -- Redis-backed fixed-window rate limiter.
//
// One counter per (key, window start). The first hit in a window creates the
// counter with a TTL of one window, so stale windows clean themselves up.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and arms its expiry on first use.
// KEYS[1] = counter key, ARGV[1] = window length in ms. Returns the new count.
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisRateLimiter counts requests in Redis so every process behind the same
// Redis shares one budget per key.
type RedisRateLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisRateLimiter wraps rdb. The caller owns rdb and closes it.
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, now: time.Now}
}

// windowBounds returns the clock-aligned window containing now.
func windowBounds(now time.Time, window time.Duration) (start, reset time.Time) {
	start = now.Truncate(window)
	return start, start.Add(window)
}

// buildResult turns a post-increment count into a result for policy.
func buildResult(count int, policy RateLimit, reset time.Time) RateLimitResult {
	return RateLimitResult{
		Allowed:   count <= policy.Max,
		Limit:     policy.Max,
		Remaining: max(0, policy.Max-count),
		ResetAt:   reset,
	}
}

// Check records one request for key and reports whether it fits policy.
// Rejected requests still count, so hammering a closed window doesn't reopen it early.
func (l *RedisRateLimiter) Check(ctx context.Context, key string, policy RateLimit) (RateLimitResult, error) {
	start, reset := windowBounds(l.now(), policy.Window)
	counterKey := "ratelimit:" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	count, err := fixedWindowScript.Run(ctx, l.rdb, []string{counterKey}, policy.Window.Milliseconds()).Int()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("incrementing rate limit %s: %w", key, err)
	}

	return buildResult(count, policy, reset), nil
}
