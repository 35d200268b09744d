package cache

import (
	"context"
	"time"
)

// ScopedCache prefixes every key before delegating to the inner cache, so
// several applications (or several repositories of one application) can
// share a backend without colliding.
//
//	snapshots := cache.Scoped(redisCache, "shelfmark:snapshot:")
//	snapshots.Get(ctx, "books.parquet") // reads "shelfmark:snapshot:books.parquet"
type ScopedCache struct {
	inner  Cache
	prefix string
}

// Scoped wraps inner with a key prefix. A nil inner behaves like [NullCache].
func Scoped(inner Cache, prefix string) *ScopedCache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &ScopedCache{inner: inner, prefix: prefix}
}

// Key returns the fully-qualified key stored in the inner cache.
func (c *ScopedCache) Key(key string) string { return c.prefix + key }

func (c *ScopedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.inner.Get(ctx, c.Key(key))
}

func (c *ScopedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, c.Key(key), data, ttl)
}

func (c *ScopedCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, c.Key(key))
}

func (c *ScopedCache) Has(ctx context.Context, key string) (bool, error) {
	return Has(ctx, c.inner, c.Key(key))
}

// Close closes the inner cache.
func (c *ScopedCache) Close() error { return c.inner.Close() }

var (
	_ Cache   = (*ScopedCache)(nil)
	_ Checker = (*ScopedCache)(nil)
)
