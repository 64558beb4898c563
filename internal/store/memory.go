// memory.go -- In-process cache and rate limiter.
//
// Used when REDIS_URL is unset (single-node deployments, local dev) and by tests.
// Same semantics as the Redis versions; nothing is shared across processes.
package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryCache is a mutex-guarded TTL map. Safe for concurrent use.
// Expired entries and dangling group members are swept on write, at most once per minute.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	groups    map[string]map[string]struct{}
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryCache returns an empty cache using the wall clock.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock lets tests control expiry.
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		groups:  make(map[string]map[string]struct{}),
		now:     now,
	}
}

// Get returns a copy of the cached bytes, or ErrCacheMiss if absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

// Set stores a copy of val under key for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, val, ttl)
	return nil
}

func (c *MemoryCache) set(key string, val []byte, ttl time.Duration) {
	now := c.now()
	if now.After(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(time.Minute)
	}

	stored := make([]byte, len(val))
	copy(stored, val)
	c.entries[key] = memoryEntry{val: stored, expiresAt: now.Add(ttl)}
}

// sweep drops expired entries, then group members whose entry is gone.
// Caller holds mu.
func (c *MemoryCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	for g, members := range c.groups {
		for k := range members {
			if _, ok := c.entries[k]; !ok {
				delete(members, k)
			}
		}
		if len(members) == 0 {
			delete(c.groups, g)
		}
	}
}

// SetTracked stores val under key and records key in group.
func (c *MemoryCache) SetTracked(_ context.Context, group, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(key, val, ttl)
	members, ok := c.groups[group]
	if !ok {
		members = make(map[string]struct{})
		c.groups[group] = members
	}
	members[key] = struct{}{}
	return nil
}

// Delete removes keys.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// DeleteGroup removes every key tracked in group and forgets the group.
func (c *MemoryCache) DeleteGroup(_ context.Context, group string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.groups[group] {
		delete(c.entries, k)
	}
	delete(c.groups, group)
	return nil
}

// CheckHealth always reports ErrCacheDisabled: there is no remote backend to ping.
func (c *MemoryCache) CheckHealth(context.Context) error {
	return ErrCacheDisabled
}

// Has reports whether key holds an unexpired entry.
func (c *MemoryCache) Has(key string) bool {
	_, err := c.Get(context.Background(), key)
	return err == nil
}

type memoryCounter struct {
	windowStart time.Time
	resetAt     time.Time
	count       int
}

// MemoryRateLimiter is a fixed-window limiter over a mutex-guarded map.
// Counters whose window has closed are swept at most once per minute.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	counters  map[string]*memoryCounter
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryRateLimiter returns a limiter using the wall clock.
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return NewMemoryRateLimiterWithClock(time.Now)
}

// NewMemoryRateLimiterWithClock lets tests move time across window boundaries.
func NewMemoryRateLimiterWithClock(now func() time.Time) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		counters: make(map[string]*memoryCounter),
		now:      now,
	}
}

// Check records one request for key and reports whether it fits policy.
func (l *MemoryRateLimiter) Check(_ context.Context, key string, policy RateLimit) (RateLimitResult, error) {
	now := l.now()
	start, reset := windowBounds(now, policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for k, c := range l.counters {
			if !now.Before(c.resetAt) {
				delete(l.counters, k)
			}
		}
		l.nextSweep = now.Add(time.Minute)
	}

	c, ok := l.counters[key]
	if !ok || !c.windowStart.Equal(start) {
		c = &memoryCounter{windowStart: start, resetAt: reset}
		l.counters[key] = c
	}
	c.count++

	return buildResult(c.count, policy, reset), nil
}
