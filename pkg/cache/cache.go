// Package cache provides byte-oriented key/value stores used as shared
// snapshot backends.
//
// # Backends
//
//   - [FileCache]: a directory of expiring entries (local or network mount)
//   - [RedisCache]: Redis / Valkey via go-redis
//   - [MongoCache]: one document per key in a MongoDB collection
//   - [NullCache]: never stores anything
//
// All backends satisfy [Cache]. [Scoped] namespaces the keys of any backend
// with a fixed prefix.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero means the entry never expires.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Checker is implemented by backends that can test for a key without
// transferring its value.
type Checker interface {
	Has(ctx context.Context, key string) (bool, error)
}

// Has reports whether c holds a live entry for key, using [Checker] when c
// implements it and a full Get otherwise.
func Has(ctx context.Context, c Cache, key string) (bool, error) {
	if ck, ok := c.(Checker); ok {
		return ck.Has(ctx, key)
	}
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NullCache misses every lookup and drops every write.
type NullCache struct{}

func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
func (NullCache) Has(context.Context, string) (bool, error)                { return false, nil }
