package marketplace

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mandubian/ccos-sub020/internal/capability"
	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// Cache stores discovery results (candidate manifests for a capability id)
// with a per-entry TTL. Get returns nil, nil on a miss or expiry so callers
// fall through to a live discovery call.
type Cache interface {
	Get(ctx context.Context, key string) ([]capability.Manifest, error)
	Set(ctx context.Context, key string, manifests []capability.Manifest, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cacheEntry struct {
	manifests []capability.Manifest
	expiresAt time.Time
}

// MemoryCache is the default in-process discovery cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]*cacheEntry{}}
}

// Get retrieves a cached manifest list, returning nil, nil on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]capability.Manifest, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	return entry.manifests, nil
}

// Set stores manifests under key with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, manifests []capability.Manifest, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{manifests: manifests, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len reports the number of cached entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisCache is a durable discovery cache backed by go-redis, for
// deployments that share a discovery cache across multiple marketplace
// instances.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache wraps client with the given key prefix.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "ccos:marketplace:discovery:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

// Get retrieves a cached manifest list from Redis, returning nil, nil on miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]capability.Manifest, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "redis discovery cache get failed", err)
	}
	var manifests []capability.Manifest
	if err := json.Unmarshal(data, &manifests); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "redis discovery cache entry corrupt", err)
	}
	return manifests, nil
}

// Set stores manifests in Redis under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, manifests []capability.Manifest, ttl time.Duration) error {
	data, err := json.Marshal(manifests)
	if err != nil {
		return ccoserr.NewWithCause(ccoserr.KindInternal, "marshal discovery cache entry failed", err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return ccoserr.NewWithCause(ccoserr.KindProvider, "redis discovery cache set failed", err)
	}
	return nil
}

// Delete removes key from Redis.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return ccoserr.NewWithCause(ccoserr.KindProvider, "redis discovery cache delete failed", err)
	}
	return nil
}
