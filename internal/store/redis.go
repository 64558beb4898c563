// redis.go -- go-redis client and response cache.
//
// Caches serialized todo records and list pages with a TTL.
// List pages are tracked in a per-owner Set so one write can drop all of them.
// Handlers treat any error from here as a miss and fall back to Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL, connects, and pings.
// All Redis-backed structs share the returned client's connection pool.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// RedisCache implements the response cache on top of a shared Redis client.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps rdb. The caller owns rdb and closes it.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// groupKey names the Set holding every tracked key of a group.
func groupKey(group string) string {
	return "cache_group:" + group
}

// Get returns the cached bytes for key, or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	return raw, nil
}

// Set stores val under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("caching %s: %w", key, err)
	}
	return nil
}

// SetTracked stores val under key and records key in group's Set.
// The Set's own TTL is pushed out to ttl so it never outlives its members by much.
func (c *RedisCache) SetTracked(ctx context.Context, group, key string, val []byte, ttl time.Duration) error {
	gk := groupKey(group)

	// Pipeline so value and membership land together
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, val, ttl)
	pipe.SAdd(ctx, gk, key)
	pipe.Expire(ctx, gk, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("caching %s in group %s: %w", key, group, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting keys: %w", err)
	}
	return nil
}

// DeleteGroup removes every key tracked in group, then the group Set itself.
// A page cached between SMembers and the pipeline survives until its own TTL.
func (c *RedisCache) DeleteGroup(ctx context.Context, group string) error {
	gk := groupKey(group)

	keys, err := c.rdb.SMembers(ctx, gk).Result()
	if err != nil {
		return fmt.Errorf("fetching group %s: %w", group, err)
	}

	// Delete all member keys + the set itself in one atomic pipeline
	pipe := c.rdb.TxPipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	pipe.Del(ctx, gk)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting group %s: %w", group, err)
	}
	return nil
}

// CheckHealth pings Redis.
func (c *RedisCache) CheckHealth(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
