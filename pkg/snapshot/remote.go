package snapshot

import (
	"context"

	"github.com/matzehuels/shelfmark/pkg/cache"
)

// KeyPrefix namespaces snapshot keys in key/value backends.
const KeyPrefix = "shelfmark:snapshot:"

// Remote is a shared snapshot store addressed by filename.
//
// Exists reports presence only; callers treat an Exists error as a miss.
// Download of a missing snapshot returns an error wrapping NOT_FOUND.
type Remote interface {
	Exists(ctx context.Context, filename string) (bool, error)
	Download(ctx context.Context, filename string) ([]byte, error)
	Upload(ctx context.Context, filename string, data []byte) error
}

// FromCache adapts a key/value cache into a [Remote]. Keys are prefixed
// with [KeyPrefix]; entries never expire.
func FromCache(c cache.Cache) Remote {
	return &cacheRemote{c: cache.Scoped(c, KeyPrefix)}
}

// None returns a Remote that never has a snapshot and discards uploads.
func None() Remote {
	return FromCache(cache.NewNullCache())
}

type cacheRemote struct {
	c *cache.ScopedCache
}

func (r *cacheRemote) Exists(ctx context.Context, filename string) (bool, error) {
	return r.c.Has(ctx, filename)
}

func (r *cacheRemote) Download(ctx context.Context, filename string) ([]byte, error) {
	data, ok, err := r.c.Get(ctx, filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(filename)
	}
	return data, nil
}

func (r *cacheRemote) Upload(ctx context.Context, filename string, data []byte) error {
	return r.c.Set(ctx, filename, data, 0)
}
