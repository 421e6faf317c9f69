// Package cache provides the per-day precompute store (C12) and an optional
// in-memory or Redis-backed hot cache (C16). Store reads and writes the disk
// files directly; it does not consult a hot cache.
package cache

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HotCache is a small TTL key/value cache sitting in front of disk reads.
type HotCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

type memoryHotCache struct {
	mu sync.Mutex
	m  map[string]memEntry
}

type memEntry struct {
	b   []byte
	exp time.Time
}

// NewMemoryHotCache creates a process-local hot cache.
func NewMemoryHotCache() HotCache {
	return &memoryHotCache{m: make(map[string]memEntry)}
}

func (c *memoryHotCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memoryHotCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

type redisHotCache struct{ client *redis.Client }

// NewRedisHotCache creates a Redis-backed hot cache against addr.
func NewRedisHotCache(addr string) HotCache {
	return &redisHotCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *redisHotCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisHotCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = r.client.Set(ctx, key, val, ttl).Err()
}

// NewAutoHotCache returns a Redis-backed cache if redisAddr is set (falling
// back to the REDIS_ADDR environment variable), or an in-memory cache
// otherwise.
func NewAutoHotCache(redisAddr string) HotCache {
	addr := redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		return NewRedisHotCache(addr)
	}
	return NewMemoryHotCache()
}
