package cli

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/shelfmark/pkg/dataset"
	"github.com/matzehuels/shelfmark/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Loaded 12034 books (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, p.elapsed())
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// ctxKey is the type for context keys used in this package.
type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// logHooks traces dataset, cache and HTTP events at debug level and remembers
// which tier served each dataset kind, for the fetch summary.
type logHooks struct {
	logger *log.Logger

	mu    sync.Mutex
	tiers map[string]observability.Tier
}

func newLogHooks(l *log.Logger) *logHooks {
	return &logHooks{logger: l, tiers: make(map[string]observability.Tier)}
}

// tierFor returns the tier that served kind in this process, or "".
func (c *CLI) tierFor(kind dataset.Kind) observability.Tier {
	if c.hooks == nil {
		return ""
	}
	return c.hooks.servedBy(string(kind))
}

// servedBy returns the tier that last satisfied kind, or "".
func (h *logHooks) servedBy(kind string) observability.Tier {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tiers[kind]
}

func (h *logHooks) OnTierHit(_ context.Context, kind string, tier observability.Tier) {
	h.mu.Lock()
	h.tiers[kind] = tier
	h.mu.Unlock()
	h.logger.Debug("tier hit", "kind", kind, "tier", tier)
}

func (h *logHooks) OnTierMiss(_ context.Context, kind string, tier observability.Tier) {
	h.logger.Debug("tier miss", "kind", kind, "tier", tier)
}

func (h *logHooks) OnFetch(_ context.Context, kind string, rows int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("origin fetch failed", "kind", kind, "duration", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("origin fetch", "kind", kind, "rows", rows, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnPublish(_ context.Context, kind, filename string, size int, err error) {
	if err != nil {
		h.logger.Debug("publish failed", "kind", kind, "file", filename, "err", err)
		return
	}
	h.logger.Debug("published", "kind", kind, "file", filename, "bytes", size)
}

func (h *logHooks) OnCacheHit(_ context.Context, backend string) {
	h.logger.Debug("cache hit", "backend", backend)
}

func (h *logHooks) OnCacheMiss(_ context.Context, backend string) {
	h.logger.Debug("cache miss", "backend", backend)
}

func (h *logHooks) OnCacheSet(_ context.Context, backend string, size int) {
	h.logger.Debug("cache set", "backend", backend, "bytes", size)
}

func (h *logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("request", "method", method, "host", host, "path", path)
}

func (h *logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("request error", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ observability.DatasetHooks = (*logHooks)(nil)
	_ observability.CacheHooks   = (*logHooks)(nil)
	_ observability.HTTPHooks    = (*logHooks)(nil)
)
