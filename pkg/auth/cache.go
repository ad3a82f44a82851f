package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// ValidationCache stores the boolean validation outcome for recently seen
// tokens so the hybrid validator can skip redundant decode and
// introspection work. Keys are derived from the raw token by SHA-256; the
// raw token is never stored. Values are booleans only — no principal
// material is ever cached, which bounds staleness risk to "was this exact
// token string seen as valid".
//
// Implementations must be safe for concurrent use by multiple goroutines.
type ValidationCache interface {
	// Get returns the cached validity for the token and whether a live
	// (non-expired) entry was present. A backend failure reports a miss
	// rather than an error: the hybrid flow degrades to a full check.
	Get(ctx context.Context, token string) (valid, ok bool)

	// Put inserts or overwrites the entry for the token, resetting its
	// age to zero. Backend failures are dropped silently; eviction never
	// fails.
	Put(ctx context.Context, token string, valid bool)

	// Invalidate removes the entry for the token. Removing an absent
	// entry is not an error (Invalidate is idempotent).
	Invalidate(ctx context.Context, token string) error

	// Clear empties the cache.
	Clear(ctx context.Context) error

	// Stats reports the cache's current size and hit/miss counters.
	Stats(ctx context.Context) (CacheStats, error)
}

// CacheStats is a point-in-time snapshot of validation cache activity.
type CacheStats struct {
	// Size is the number of live entries.
	Size int `json:"size"`

	// Hits counts Get calls answered from a live entry.
	Hits uint64 `json:"hits"`

	// Misses counts Get calls that found no live entry.
	Misses uint64 `json:"misses"`
}

// HitRate returns the fraction of Get calls answered from the cache,
// or 0 when no calls have been made.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// cacheKey computes the SHA-256 hash of a token string and returns it as
// a hex-encoded string. Hashing keeps raw tokens out of cache memory and
// out of any external cache backend.
func cacheKey(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// memoryCacheEntry stores a cached validity and its expiration time.
type memoryCacheEntry struct {
	valid     bool
	expiresAt time.Time
}

// MemoryValidationCache is the default in-process [ValidationCache]: a
// mutex-guarded map with per-entry TTL expiry and a maximum size. Expired
// entries read as absent immediately; they are physically removed by the
// opportunistic sweep that runs on Put.
//
// MemoryValidationCache is safe for concurrent use by multiple goroutines.
type MemoryValidationCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryCacheEntry
	ttl     time.Duration
	maxSize int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Compile-time assertion that MemoryValidationCache implements
// ValidationCache.
var _ ValidationCache = (*MemoryValidationCache)(nil)

// NewMemoryValidationCache creates an in-memory validation cache with the
// given entry TTL and maximum number of entries.
func NewMemoryValidationCache(ttl time.Duration, maxSize int) *MemoryValidationCache {
	return &MemoryValidationCache{
		entries: make(map[string]*memoryCacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached validity for the token. An entry past its TTL
// reads as absent even if not yet swept.
func (c *MemoryValidationCache) Get(_ context.Context, token string) (bool, bool) {
	key := cacheKey(token)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		c.misses.Add(1)
		return false, false
	}
	c.hits.Add(1)
	return entry.valid, true
}

// Put inserts or overwrites the entry for the token with a fresh TTL.
// When at capacity it sweeps expired entries first and, if still full,
// evicts the entry closest to expiry.
func (c *MemoryValidationCache) Put(_ context.Context, token string, valid bool) {
	key := cacheKey(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
	}
	if len(c.entries) >= c.maxSize {
		if _, exists := c.entries[key]; !exists {
			c.evictSoonestLocked()
		}
	}

	c.entries[key] = &memoryCacheEntry{
		valid:     valid,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate removes the entry for the token. Always returns nil.
func (c *MemoryValidationCache) Invalidate(_ context.Context, token string) error {
	key := cacheKey(token)

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Clear empties the cache. Hit and miss counters are preserved; they
// describe cache activity, not contents. Always returns nil.
func (c *MemoryValidationCache) Clear(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*memoryCacheEntry)
	c.mu.Unlock()
	return nil
}

// Stats reports the live entry count (expired-but-unswept entries are
// excluded) and the hit/miss counters.
func (c *MemoryValidationCache) Stats(context.Context) (CacheStats, error) {
	now := time.Now()

	c.mu.RLock()
	size := 0
	for _, entry := range c.entries {
		if !now.After(entry.expiresAt) {
			size++
		}
	}
	c.mu.RUnlock()

	return CacheStats{
		Size:   size,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}, nil
}

// evictExpiredLocked removes all expired entries. Caller must hold the
// write lock.
func (c *MemoryValidationCache) evictExpiredLocked() {
	now := time.Now()
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// evictSoonestLocked removes the entry closest to expiry. Caller must
// hold the write lock.
func (c *MemoryValidationCache) evictSoonestLocked() {
	var soonestKey string
	var soonestTime time.Time
	first := true
	for k, v := range c.entries {
		if first || v.expiresAt.Before(soonestTime) {
			soonestKey = k
			soonestTime = v.expiresAt
			first = false
		}
	}
	if soonestKey != "" {
		delete(c.entries, soonestKey)
	}
}
