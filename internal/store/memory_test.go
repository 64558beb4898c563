package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source shared by the memory cache/limiter tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// --- MemoryCache ---

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored value until ttl passes", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		c := NewMemoryCacheWithClock(clock.Now)

		c.Set(ctx, "todo_1", []byte("v"), 10*time.Second)
		if got, err := c.Get(ctx, "todo_1"); err != nil || string(got) != "v" {
			t.Fatalf("Get: got %q, %v", got, err)
		}

		clock.Advance(10 * time.Second)
		if _, err := c.Get(ctx, "todo_1"); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss at ttl, got %v", err)
		}
	})

	t.Run("stored bytes are isolated from caller", func(t *testing.T) {
		c := NewMemoryCache()
		val := []byte("abc")
		c.Set(ctx, "k", val, time.Minute)
		val[0] = 'z'

		got, _ := c.Get(ctx, "k")
		if string(got) != "abc" {
			t.Errorf("expected abc, got %q", got)
		}
		got[0] = 'y'
		again, _ := c.Get(ctx, "k")
		if string(again) != "abc" {
			t.Errorf("expected abc after mutating returned slice, got %q", again)
		}
	})

	t.Run("Delete and Has", func(t *testing.T) {
		c := NewMemoryCache()
		c.Set(ctx, "todo_9", []byte("v"), time.Minute)
		if !c.Has("todo_9") {
			t.Fatal("Has: expected true after Set")
		}
		c.Delete(ctx, "todo_9")
		if c.Has("todo_9") {
			t.Error("Has: expected false after Delete")
		}
	})

	t.Run("DeleteGroup drops tracked keys only", func(t *testing.T) {
		c := NewMemoryCache()
		c.SetTracked(ctx, "owner:1", "list_a", []byte("a"), time.Minute)
		c.SetTracked(ctx, "owner:1", "list_b", []byte("b"), time.Minute)
		c.SetTracked(ctx, "owner:2", "list_c", []byte("c"), time.Minute)
		c.Set(ctx, "todo_1", []byte("t"), time.Minute)

		c.DeleteGroup(ctx, "owner:1")

		if c.Has("list_a") || c.Has("list_b") {
			t.Error("owner:1 pages should be gone")
		}
		if !c.Has("list_c") {
			t.Error("owner:2 page should survive")
		}
		if !c.Has("todo_1") {
			t.Error("untracked key should survive")
		}
	})

	t.Run("reports disabled health", func(t *testing.T) {
		if err := NewMemoryCache().CheckHealth(ctx); !errors.Is(err, ErrCacheDisabled) {
			t.Errorf("expected ErrCacheDisabled, got %v", err)
		}
	})

	t.Run("sweeps expired entries and their group members on write", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		c := NewMemoryCacheWithClock(clock.Now)

		c.SetTracked(ctx, "todos:lists:2", "live", []byte("l"), 2*time.Hour)
		for i := 0; i < 10000; i++ {
			c.SetTracked(ctx, "todos:lists:1", fmt.Sprintf("page_%d", i), []byte("p"), time.Second)
		}

		clock.Advance(time.Hour)
		c.Set(ctx, "todo_1", []byte("t"), time.Minute)

		c.mu.Lock()
		entries, groups := len(c.entries), len(c.groups)
		live := len(c.groups["todos:lists:2"])
		c.mu.Unlock()
		if entries != 2 {
			t.Errorf("entries: expected 2 after sweep, got %d", entries)
		}
		if groups != 1 || live != 1 {
			t.Errorf("groups: expected only the live group with 1 member, got %d groups, %d members", groups, live)
		}
	})

	t.Run("sweep runs at most once per minute", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		c := NewMemoryCacheWithClock(clock.Now)

		c.Set(ctx, "short", []byte("s"), time.Second)
		clock.Advance(30 * time.Second)
		c.Set(ctx, "other", []byte("o"), time.Hour)

		c.mu.Lock()
		_, kept := c.entries["short"]
		c.mu.Unlock()
		if !kept {
			t.Fatal("expired entry swept before the next sweep was due")
		}

		clock.Advance(31 * time.Second)
		c.Set(ctx, "other", []byte("o"), time.Hour)

		c.mu.Lock()
		_, kept = c.entries["short"]
		c.mu.Unlock()
		if kept {
			t.Error("expired entry should be swept once a minute has passed")
		}
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		c := NewMemoryCache()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c.SetTracked(ctx, "g", "k", []byte{byte(i)}, time.Minute)
				c.Get(ctx, "k")
				if i%10 == 0 {
					c.DeleteGroup(ctx, "g")
				}
			}(i)
		}
		wg.Wait()
	})
}

// --- MemoryRateLimiter ---

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	policy := RateLimit{Max: 5, Window: time.Minute}

	t.Run("fifth request allowed, sixth rejected with retry hint", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 15, 0, time.UTC)}
		l := NewMemoryRateLimiterWithClock(clock.Now)

		for i := 1; i <= 5; i++ {
			res, err := l.Check(ctx, "user:1", policy)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if !res.Allowed {
				t.Fatalf("request %d should be allowed", i)
			}
			if res.Limit != 5 {
				t.Errorf("limit: expected 5, got %d", res.Limit)
			}
		}

		res, _ := l.Check(ctx, "user:1", policy)
		if res.Allowed {
			t.Fatal("6th request should be rejected")
		}
		if res.Remaining != 0 {
			t.Errorf("remaining: expected 0, got %d", res.Remaining)
		}
		wantReset := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)
		if !res.ResetAt.Equal(wantReset) {
			t.Errorf("reset: expected %v, got %v", wantReset, res.ResetAt)
		}
		if got := res.RetryAfter(clock.Now()); got != 45 {
			t.Errorf("retry after: expected 45, got %d", got)
		}
	})

	t.Run("counter resets at the window boundary", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 59, 0, time.UTC)}
		l := NewMemoryRateLimiterWithClock(clock.Now)
		tight := RateLimit{Max: 1, Window: time.Minute}

		l.Check(ctx, "ip:1.2.3.4", tight)
		if res, _ := l.Check(ctx, "ip:1.2.3.4", tight); res.Allowed {
			t.Fatal("second request should be rejected")
		}

		clock.Advance(time.Second)
		res, _ := l.Check(ctx, "ip:1.2.3.4", tight)
		if !res.Allowed {
			t.Error("first request after boundary should be allowed")
		}
		if res.Remaining != 0 {
			t.Errorf("remaining: expected 0, got %d", res.Remaining)
		}
	})

	t.Run("actors do not share a budget", func(t *testing.T) {
		l := NewMemoryRateLimiter()
		tight := RateLimit{Max: 1, Window: time.Minute}

		l.Check(ctx, "user:1", tight)
		if res, _ := l.Check(ctx, "user:2", tight); !res.Allowed {
			t.Error("user:2 should have its own counter")
		}
	})

	t.Run("concurrent checks count every request", func(t *testing.T) {
		l := NewMemoryRateLimiter()
		big := RateLimit{Max: 1000, Window: time.Hour}

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Check(ctx, "user:1", big)
			}()
		}
		wg.Wait()

		res, _ := l.Check(ctx, "user:1", big)
		if res.Remaining != 1000-101 {
			t.Errorf("remaining: expected %d, got %d", 1000-101, res.Remaining)
		}
	})

	t.Run("sweeps closed windows", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
		l := NewMemoryRateLimiterWithClock(clock.Now)

		l.Check(ctx, "user:old", policy)
		clock.Advance(2 * time.Minute)
		l.Check(ctx, "user:new", policy)

		l.mu.Lock()
		_, stale := l.counters["user:old"]
		l.mu.Unlock()
		if stale {
			t.Error("counter from a closed window should have been swept")
		}
	})
}
