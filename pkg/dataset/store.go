package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
	"github.com/matzehuels/shelfmark/pkg/observability"
	"github.com/matzehuels/shelfmark/pkg/snapshot"
)

// PublishPolicy decides what a failed publish to the shared store means for
// the origin fetch that produced the table.
type PublishPolicy int

const (
	// PublishBestEffort logs the failure and returns the fetched table.
	PublishBestEffort PublishPolicy = iota

	// PublishStrict fails the load. The local snapshot is kept.
	PublishStrict
)

func (p PublishPolicy) String() string {
	if p == PublishStrict {
		return "strict"
	}
	return "best-effort"
}

// ParsePublishPolicy parses "best-effort" (or "") and "strict".
func ParsePublishPolicy(s string) (PublishPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best-effort", "besteffort":
		return PublishBestEffort, nil
	case "strict":
		return PublishStrict, nil
	}
	return 0, apperrors.New(apperrors.ErrCodeInvalidConfig, "unknown publish policy %q (want best-effort or strict)", s)
}

// Store is the tiered snapshot store: a local directory in front of a shared
// remote store in front of the origin.
type Store struct {
	Dir     *snapshot.Dir
	Remote  snapshot.Remote
	Publish PublishPolicy
	Logger  *log.Logger
}

// NewStore creates a tiered store.
// If dir is nil, the default local directory is used.
// If remote is nil, the shared tier always misses and publishing is a no-op.
func NewStore(dir *snapshot.Dir, remote snapshot.Remote, policy PublishPolicy, logger *log.Logger) *Store {
	if dir == nil {
		dir = snapshot.NewDir("")
	}
	if remote == nil {
		remote = snapshot.None()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{Dir: dir, Remote: remote, Publish: policy, Logger: logger}
}

// Invalidate removes the local snapshot for kind so the next load falls
// through to the shared store.
func (s *Store) Invalidate(kind Kind) error {
	filename := kind.Filename()
	if filename == "" {
		return apperrors.New(apperrors.ErrCodeInvalidKind, "unknown dataset %q", kind)
	}
	return s.Dir.Remove(filename)
}

// Load resolves spec through the tiers. See the package documentation for
// the lookup order.
//
// A failing shared-store existence check, download, or decode is a soft
// miss. An unreadable local snapshot is removed and treated as a miss.
// Only an origin failure (or, under PublishStrict, a publish failure) fails
// the load.
func Load[T any](ctx context.Context, s *Store, spec Spec[T]) ([]T, error) {
	kind := string(spec.Kind)
	hooks := observability.Dataset()
	logger := s.Logger.With("kind", kind)

	if rows, ok := loadLocal[T](s, spec.Filename, logger); ok {
		hooks.OnTierHit(ctx, kind, observability.TierLocal)
		logger.Debug("loaded snapshot", "tier", observability.TierLocal, "rows", len(rows))
		return rows, nil
	}
	hooks.OnTierMiss(ctx, kind, observability.TierLocal)

	if rows, ok := loadShared[T](ctx, s, spec.Filename, logger); ok {
		hooks.OnTierHit(ctx, kind, observability.TierShared)
		logger.Info("loaded snapshot", "tier", observability.TierShared, "rows", len(rows))
		return rows, nil
	}
	hooks.OnTierMiss(ctx, kind, observability.TierShared)

	start := time.Now()
	rows, err := spec.Fetch(ctx)
	hooks.OnFetch(ctx, kind, len(rows), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	hooks.OnTierHit(ctx, kind, observability.TierOrigin)
	logger.Info("fetched from origin", "rows", len(rows), "duration", time.Since(start).Round(time.Millisecond))

	data, err := snapshot.Encode(rows)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", kind, err)
	}
	if err := s.Dir.Write(spec.Filename, data); err != nil {
		logger.Warn("could not write local snapshot", "file", spec.Filename, "err", err)
	}

	err = s.Remote.Upload(ctx, spec.Filename, data)
	hooks.OnPublish(ctx, kind, spec.Filename, len(data), err)
	if err != nil {
		if s.Publish == PublishStrict {
			return nil, apperrors.Wrap(apperrors.ErrCodePublishFailed, err, "publish %s", spec.Filename)
		}
		logger.Warn("publish failed, continuing with fetched data", "file", spec.Filename, "err", err)
	} else {
		logger.Debug("published snapshot", "file", spec.Filename, "size", len(data))
	}
	return rows, nil
}

func loadLocal[T any](s *Store, filename string, logger *log.Logger) ([]T, bool) {
	data, ok, err := s.Dir.Read(filename)
	if err != nil {
		logger.Warn("could not read local snapshot", "file", filename, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	rows, err := snapshot.Decode[T](data)
	if err != nil {
		logger.Warn("discarding unreadable local snapshot", "file", filename, "err", err)
		if err := s.Dir.Remove(filename); err != nil {
			logger.Warn("could not remove local snapshot", "file", filename, "err", err)
		}
		return nil, false
	}
	return rows, true
}

func loadShared[T any](ctx context.Context, s *Store, filename string, logger *log.Logger) ([]T, bool) {
	exists, err := s.Remote.Exists(ctx, filename)
	if err != nil {
		logger.Debug("shared store check failed", "file", filename, "err", err)
		return nil, false
	}
	if !exists {
		return nil, false
	}
	data, err := s.Remote.Download(ctx, filename)
	if err != nil {
		logger.Warn("shared snapshot download failed", "file", filename, "err", err)
		return nil, false
	}
	rows, err := snapshot.Decode[T](data)
	if err != nil {
		logger.Warn("shared snapshot unreadable", "file", filename, "err", err)
		return nil, false
	}
	if err := s.Dir.Write(filename, data); err != nil {
		logger.Warn("could not write local snapshot", "file", filename, "err", err)
	}
	return rows, true
}
