package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/StricklySoft/stricklysoft-authkit/pkg/clients/redis"
)

// redisKeyPrefix namespaces validation cache entries in a shared Redis
// instance. Only hashed tokens appear after the prefix.
const redisKeyPrefix = "authkit:token:"

// RedisValidationCache is a [ValidationCache] backed by the platform Redis
// client, for deployments where multiple replicas should share one
// validation cache. Entries expire server-side via SET expiry, so TTL
// handling needs no sweep.
//
// Read and write failures degrade rather than fail validation: Get logs at
// Warn and reports a miss, Put logs and drops the write. Invalidate,
// Clear, and Stats return the client's classified errors, since their
// callers are administrative and want to know the operation did not take
// effect.
//
// RedisValidationCache is safe for concurrent use by multiple goroutines.
type RedisValidationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Compile-time assertion that RedisValidationCache implements
// ValidationCache.
var _ ValidationCache = (*RedisValidationCache)(nil)

// NewRedisValidationCache creates a Redis-backed validation cache with the
// given entry TTL. If logger is nil, [slog.Default] is used.
func NewRedisValidationCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisValidationCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisValidationCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached validity for the token. A missing key or any
// backend failure reports a miss; failures are logged at Warn so an
// unreachable backend never fails validation.
func (c *RedisValidationCache) Get(ctx context.Context, token string) (bool, bool) {
	val, err := c.client.Get(ctx, redisKeyPrefix+cacheKey(token))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.WarnContext(ctx, "auth: validation cache read failed, treating as miss",
				"error", err,
			)
		}
		c.misses.Add(1)
		return false, false
	}
	c.hits.Add(1)
	return val == "1", true
}

// Put inserts or overwrites the entry for the token with a fresh TTL.
// Backend failures are logged at Warn and dropped.
func (c *RedisValidationCache) Put(ctx context.Context, token string, valid bool) {
	value := "0"
	if valid {
		value = "1"
	}
	if err := c.client.Set(ctx, redisKeyPrefix+cacheKey(token), value, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "auth: validation cache write failed, dropping entry",
			"error", err,
		)
	}
}

// Invalidate removes the entry for the token. Removing an absent key is
// not an error.
func (c *RedisValidationCache) Invalidate(ctx context.Context, token string) error {
	_, err := c.client.Del(ctx, redisKeyPrefix+cacheKey(token))
	return err
}

// Clear removes every validation cache entry by walking the key prefix
// with SCAN and deleting in batches.
func (c *RedisValidationCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if _, err := c.client.Del(ctx, keys...); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Stats reports the number of live entries under the key prefix
// (counted with SCAN) and this replica's hit/miss counters. Counters are
// per-process; replicas sharing the backend each report their own.
func (c *RedisValidationCache) Stats(ctx context.Context) (CacheStats, error) {
	var size int
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100)
		if err != nil {
			return CacheStats{}, err
		}
		size += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}

	return CacheStats{
		Size:   size,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}, nil
}
