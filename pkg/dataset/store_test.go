package dataset

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
	"github.com/matzehuels/shelfmark/pkg/observability"
	"github.com/matzehuels/shelfmark/pkg/snapshot"
)

// fakeRemote is an in-memory shared store that counts calls.
type fakeRemote struct {
	mu        sync.Mutex
	files     map[string][]byte
	existsErr error
	uploadErr error

	exists    atomic.Int32
	downloads atomic.Int32
	uploads   atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{files: map[string][]byte{}}
}

func (r *fakeRemote) Exists(ctx context.Context, filename string) (bool, error) {
	r.exists.Add(1)
	if r.existsErr != nil {
		return false, r.existsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.files[filename]
	return ok, nil
}

func (r *fakeRemote) Download(ctx context.Context, filename string) ([]byte, error) {
	r.downloads.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.files[filename]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "%s not found", filename)
	}
	return data, nil
}

func (r *fakeRemote) Upload(ctx context.Context, filename string, data []byte) error {
	r.uploads.Add(1)
	if r.uploadErr != nil {
		return r.uploadErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[filename] = data
	return nil
}

// countingSpec returns a categories spec whose fetch yields rows and counts
// invocations.
func countingSpec(rows []Category, err error) (Spec[Category], *atomic.Int32) {
	var calls atomic.Int32
	return Spec[Category]{
		Kind:     KindCategories,
		Filename: FilenameCategories,
		Fetch: func(context.Context) ([]Category, error) {
			calls.Add(1)
			return rows, err
		},
	}, &calls
}

func categories(slugs ...string) []Category {
	out := make([]Category, len(slugs))
	for i, s := range slugs {
		out[i] = Category{Title: s, Slug: s}
	}
	return out
}

func encode(t *testing.T, rows []Category) []byte {
	t.Helper()
	data, err := snapshot.Encode(rows)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	return data
}

func testStore(t *testing.T, remote snapshot.Remote, policy PublishPolicy) *Store {
	t.Helper()
	return NewStore(snapshot.NewDir(t.TempDir()), remote, policy, quietLogger())
}

func slugsOf(rows []Category) string {
	s := make([]string, len(rows))
	for i, r := range rows {
		s[i] = r.Slug
	}
	return join(s)
}

func TestLoadLocalTier(t *testing.T) {
	remote := newFakeRemote()
	remote.files[FilenameCategories] = encode(t, categories("shared"))
	s := testStore(t, remote, PublishBestEffort)
	if err := s.Dir.Write(FilenameCategories, encode(t, categories("local"))); err != nil {
		t.Fatal(err)
	}
	spec, calls := countingSpec(categories("origin"), nil)

	rows, err := Load(context.Background(), s, spec)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if slugsOf(rows) != "local" {
		t.Errorf("Load() = %s, want the local snapshot", slugsOf(rows))
	}
	if remote.exists.Load() != 0 || remote.downloads.Load() != 0 || calls.Load() != 0 {
		t.Errorf("local hit touched other tiers: exists=%d downloads=%d fetches=%d",
			remote.exists.Load(), remote.downloads.Load(), calls.Load())
	}
}

func TestLoadSharedTier(t *testing.T) {
	remote := newFakeRemote()
	remote.files[FilenameCategories] = encode(t, categories("shared-a", "shared-b"))
	s := testStore(t, remote, PublishBestEffort)
	spec, calls := countingSpec(categories("origin"), nil)

	rows, err := Load(context.Background(), s, spec)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if slugsOf(rows) != "shared-a,shared-b" {
		t.Errorf("Load() = %s, want the shared snapshot", slugsOf(rows))
	}
	if calls.Load() != 0 || remote.uploads.Load() != 0 {
		t.Errorf("shared hit fetched %d times and uploaded %d times", calls.Load(), remote.uploads.Load())
	}

	// The downloaded snapshot now satisfies the local tier.
	data, ok, err := s.Dir.Read(FilenameCategories)
	if err != nil || !ok {
		t.Fatalf("local snapshot not written: ok=%v err=%v", ok, err)
	}
	local, _ := snapshot.Decode[Category](data)
	if slugsOf(local) != "shared-a,shared-b" {
		t.Errorf("local snapshot = %s", slugsOf(local))
	}
}

func TestLoadOriginTier(t *testing.T) {
	remote := newFakeRemote()
	s := testStore(t, remote, PublishBestEffort)
	spec, calls := countingSpec(categories("origin-a", "origin-b"), nil)

	rows, err := Load(context.Background(), s, spec)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if slugsOf(rows) != "origin-a,origin-b" || calls.Load() != 1 {
		t.Errorf("Load() = %s after %d fetches", slugsOf(rows), calls.Load())
	}
	if _, ok, _ := s.Dir.Read(FilenameCategories); !ok {
		t.Error("origin fetch should write the local snapshot")
	}
	if remote.uploads.Load() != 1 {
		t.Fatalf("uploads = %d, want 1", remote.uploads.Load())
	}
	published, err := snapshot.Decode[Category](remote.files[FilenameCategories])
	if err != nil || slugsOf(published) != "origin-a,origin-b" {
		t.Errorf("published snapshot = %v, %v", published, err)
	}

	// A second load is a local hit.
	if _, err := Load(context.Background(), s, spec); err != nil || calls.Load() != 1 {
		t.Errorf("second Load() fetched again (calls=%d, err=%v)", calls.Load(), err)
	}
}

func TestLoadExistsErrorIsSoftMiss(t *testing.T) {
	remote := newFakeRemote()
	remote.existsErr = errors.New("dns failure")
	s := testStore(t, remote, PublishBestEffort)
	spec, calls := countingSpec(categories("origin"), nil)

	rows, err := Load(context.Background(), s, spec)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if slugsOf(rows) != "origin" || calls.Load() != 1 {
		t.Errorf("Load() = %s after %d fetches", slugsOf(rows), calls.Load())
	}
}

func TestLoadCorruptSnapshots(t *testing.T) {
	remote := newFakeRemote()
	remote.files[FilenameCategories] = []byte("not parquet")
	s := testStore(t, remote, PublishBestEffort)
	if err := s.Dir.Write(FilenameCategories, []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	spec, calls := countingSpec(categories("origin"), nil)

	rows, err := Load(context.Background(), s, spec)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if slugsOf(rows) != "origin" || calls.Load() != 1 {
		t.Errorf("Load() = %s after %d fetches", slugsOf(rows), calls.Load())
	}
	data, ok, _ := s.Dir.Read(FilenameCategories)
	if !ok {
		t.Fatal("local snapshot should be rewritten from the origin")
	}
	if _, err := snapshot.Decode[Category](data); err != nil {
		t.Errorf("rewritten local snapshot is unreadable: %v", err)
	}
}

func TestLoadPublishPolicy(t *testing.T) {
	for _, tt := range []struct {
		policy  PublishPolicy
		wantErr bool
	}{
		{PublishBestEffort, false},
		{PublishStrict, true},
	} {
		t.Run(tt.policy.String(), func(t *testing.T) {
			remote := newFakeRemote()
			remote.uploadErr = errors.New("403 forbidden")
			s := testStore(t, remote, tt.policy)
			spec, _ := countingSpec(categories("origin"), nil)

			rows, err := Load(context.Background(), s, spec)
			if tt.wantErr {
				if !apperrors.Is(err, apperrors.ErrCodePublishFailed) || rows != nil {
					t.Errorf("Load() = %v, %v; want PUBLISH_FAILED", rows, err)
				}
			} else if err != nil || len(rows) != 1 {
				t.Errorf("Load() = %v, %v; want rows despite publish failure", rows, err)
			}
			if _, ok, _ := s.Dir.Read(FilenameCategories); !ok {
				t.Error("local snapshot should be kept even if publishing fails")
			}
		})
	}
}

func TestLoadFetchFailure(t *testing.T) {
	remote := newFakeRemote()
	s := testStore(t, remote, PublishBestEffort)
	spec, _ := countingSpec(nil, errOrigin)

	if _, err := Load(context.Background(), s, spec); !errors.Is(err, errOrigin) {
		t.Errorf("Load() error = %v, want origin error", err)
	}
	if _, ok, _ := s.Dir.Read(FilenameCategories); ok {
		t.Error("failed fetch should not write a snapshot")
	}
	if remote.uploads.Load() != 0 {
		t.Error("failed fetch should not publish")
	}
}

func TestLoadNilRemote(t *testing.T) {
	s := NewStore(snapshot.NewDir(t.TempDir()), nil, PublishStrict, quietLogger())
	spec, calls := countingSpec(categories("origin"), nil)

	if _, err := Load(context.Background(), s, spec); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1", calls.Load())
	}
}

func TestStoreInvalidate(t *testing.T) {
	s := testStore(t, nil, PublishBestEffort)
	if err := s.Dir.Write(FilenameBooks, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Invalidate(KindBooks); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, err := os.Stat(s.Dir.File(FilenameBooks)); !os.IsNotExist(err) {
		t.Error("Invalidate() should remove the local snapshot")
	}
	if err := s.Invalidate("authors"); !apperrors.Is(err, apperrors.ErrCodeInvalidKind) {
		t.Errorf("Invalidate(authors) error = %v", err)
	}
}

func TestParsePublishPolicy(t *testing.T) {
	for in, want := range map[string]PublishPolicy{"": PublishBestEffort, "best-effort": PublishBestEffort, "Strict": PublishStrict} {
		got, err := ParsePublishPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePublishPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePublishPolicy("sometimes"); !apperrors.Is(err, apperrors.ErrCodeInvalidConfig) {
		t.Errorf("ParsePublishPolicy(sometimes) error = %v", err)
	}
}

type tierEvent struct {
	hit  bool
	tier observability.Tier
}

type recordingHooks struct {
	observability.NoopDatasetHooks
	mu        sync.Mutex
	events    []tierEvent
	fetches   int
	published int
}

func (h *recordingHooks) OnTierHit(_ context.Context, _ string, tier observability.Tier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, tierEvent{true, tier})
}

func (h *recordingHooks) OnTierMiss(_ context.Context, _ string, tier observability.Tier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, tierEvent{false, tier})
}

func (h *recordingHooks) OnFetch(context.Context, string, int, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetches++
}

func (h *recordingHooks) OnPublish(context.Context, string, string, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published++
}

func TestLoadEmitsTierHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetDatasetHooks(hooks)
	t.Cleanup(observability.Reset)

	s := testStore(t, newFakeRemote(), PublishBestEffort)
	spec, _ := countingSpec(categories("origin"), nil)
	if _, err := Load(context.Background(), s, spec); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), s, spec); err != nil {
		t.Fatal(err)
	}

	want := []tierEvent{
		{false, observability.TierLocal},
		{false, observability.TierShared},
		{true, observability.TierOrigin},
		{true, observability.TierLocal},
	}
	if len(hooks.events) != len(want) {
		t.Fatalf("events = %v, want %v", hooks.events, want)
	}
	for i := range want {
		if hooks.events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, hooks.events[i], want[i])
		}
	}
	if hooks.fetches != 1 || hooks.published != 1 {
		t.Errorf("fetches = %d, published = %d", hooks.fetches, hooks.published)
	}
}
