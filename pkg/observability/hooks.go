// Package observability lets the binary observe the dataset layer without
// the libraries depending on any logging or metrics backend.
//
// Libraries emit events through the package-level accessors:
//
//	observability.Dataset().OnTierMiss(ctx, "books", observability.TierLocal)
//	observability.Dataset().OnTierHit(ctx, "books", observability.TierShared)
//
// Only main (here, the CLI's root command) installs hooks. Until it does,
// every event goes to a no-op.
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// Tier names a layer in the dataset lookup chain.
type Tier string

const (
	TierLocal  Tier = "local"
	TierShared Tier = "shared"
	TierOrigin Tier = "origin"
)

// DatasetHooks receives events from the tiered dataset store.
type DatasetHooks interface {
	// OnTierHit records that tier satisfied the lookup for kind.
	OnTierHit(ctx context.Context, kind string, tier Tier)
	// OnTierMiss records that tier had no usable snapshot for kind.
	OnTierMiss(ctx context.Context, kind string, tier Tier)
	OnFetch(ctx context.Context, kind string, rows int, duration time.Duration, err error)
	OnPublish(ctx context.Context, kind, filename string, size int, err error)
}

// CacheHooks receives events from the key/value backends that can serve as
// the shared store.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, backend string)
	OnCacheMiss(ctx context.Context, backend string)
	OnCacheSet(ctx context.Context, backend string, size int)
}

// HTTPHooks receives events from outgoing HTTP requests.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError records a request that got no response at all.
	OnError(ctx context.Context, method, host, path string, err error)
}

type NoopDatasetHooks struct{}

func (NoopDatasetHooks) OnTierHit(context.Context, string, Tier)                    {}
func (NoopDatasetHooks) OnTierMiss(context.Context, string, Tier)                   {}
func (NoopDatasetHooks) OnFetch(context.Context, string, int, time.Duration, error) {}
func (NoopDatasetHooks) OnPublish(context.Context, string, string, int, error)      {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// registry is replaced wholesale on every Set call, so readers never lock.
type registry struct {
	dataset DatasetHooks
	cache   CacheHooks
	http    HTTPHooks
}

var current atomic.Pointer[registry]

func init() { Reset() }

func update(fn func(r *registry)) {
	for {
		old := current.Load()
		next := *old
		fn(&next)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetDatasetHooks installs h. A nil h is ignored.
func SetDatasetHooks(h DatasetHooks) {
	if h != nil {
		update(func(r *registry) { r.dataset = h })
	}
}

// SetCacheHooks installs h. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(r *registry) { r.cache = h })
	}
}

// SetHTTPHooks installs h. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(r *registry) { r.http = h })
	}
}

func Dataset() DatasetHooks { return current.Load().dataset }

func Cache() CacheHooks { return current.Load().cache }

func HTTP() HTTPHooks { return current.Load().http }

// Reset restores the no-op hooks. Tests that install hooks call it on
// cleanup.
func Reset() {
	current.Store(&registry{
		dataset: NoopDatasetHooks{},
		cache:   NoopCacheHooks{},
		http:    NoopHTTPHooks{},
	})
}
