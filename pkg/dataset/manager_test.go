package dataset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/shelfmark/pkg/snapshot"
)

func testManager(t *testing.T, origin *fakeOrigin) *Manager {
	t.Helper()
	store := NewStore(snapshot.NewDir(t.TempDir()), newFakeRemote(), PublishBestEffort, quietLogger())
	return NewManager(store, NewAssembler(origin, AssemblerOptions{Logger: quietLogger()}))
}

func TestManagerMemoizes(t *testing.T) {
	origin := newCatalog()
	m := testManager(t, origin)
	ctx := context.Background()

	first, err := m.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories() error: %v", err)
	}

	// Later calls must not touch any tier, so break them all.
	if _, err := m.Store().Dir.Clear(); err != nil {
		t.Fatal(err)
	}
	origin.failTree = true

	for range 3 {
		again, err := m.Categories(ctx)
		if err != nil {
			t.Fatalf("memoized Categories() error: %v", err)
		}
		if len(again) != len(first) || &again[0] != &first[0] {
			t.Error("memoized call should return the same table")
		}
	}
	if origin.treeCalls.Load() != 1 {
		t.Errorf("tree calls = %d, want 1", origin.treeCalls.Load())
	}
}

func TestManagerConcurrentFirstCalls(t *testing.T) {
	origin := newCatalog()
	m := testManager(t, origin)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.Stores(context.Background())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("Stores() error: %v", err)
		}
	}
	// One lookup: one online and one offline listing.
	if got := origin.storeCalls.Load(); got != 2 {
		t.Errorf("store calls = %d, want 2", got)
	}
}

func TestManagerDoesNotMemoizeFailures(t *testing.T) {
	origin := newCatalog()
	origin.failTree = true
	m := testManager(t, origin)
	ctx := context.Background()

	if _, err := m.Categories(ctx); !errors.Is(err, errOrigin) {
		t.Fatalf("Categories() error = %v, want origin error", err)
	}
	if len(m.Loaded()) != 0 {
		t.Errorf("Loaded() = %v after a failure", m.Loaded())
	}

	origin.failTree = false
	cats, err := m.Categories(ctx)
	if err != nil || len(cats) != 3 {
		t.Fatalf("retry Categories() = %d rows, %v", len(cats), err)
	}
	if origin.treeCalls.Load() != 2 {
		t.Errorf("tree calls = %d, want 2", origin.treeCalls.Load())
	}
}

func TestManagerKindsAreIndependent(t *testing.T) {
	origin := newCatalog()
	m := testManager(t, origin)
	ctx := context.Background()

	if _, err := m.Categories(ctx); err != nil {
		t.Fatal(err)
	}
	books, err := m.Books(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 5 {
		t.Errorf("Books() = %d rows, want 5", len(books))
	}
	// Books re-fetches categories from the origin rather than the cache.
	if origin.treeCalls.Load() != 2 {
		t.Errorf("tree calls = %d, want 2", origin.treeCalls.Load())
	}
	if got := m.Loaded(); len(got) != 2 || got[0] != KindCategories || got[1] != KindBooks {
		t.Errorf("Loaded() = %v", got)
	}
}

func TestManagerReset(t *testing.T) {
	origin := newCatalog()
	m := testManager(t, origin)
	ctx := context.Background()

	if _, err := m.Categories(ctx); err != nil {
		t.Fatal(err)
	}
	m.Reset()
	if len(m.Loaded()) != 0 {
		t.Errorf("Loaded() = %v after Reset()", m.Loaded())
	}

	// The local snapshot still answers; the origin is not asked again.
	if _, err := m.Categories(ctx); err != nil {
		t.Fatal(err)
	}
	if origin.treeCalls.Load() != 1 {
		t.Errorf("tree calls = %d, want 1", origin.treeCalls.Load())
	}

	m.Reset()
	if err := m.Store().Invalidate(KindCategories); err != nil {
		t.Fatal(err)
	}
	m.Store().Remote.(*fakeRemote).files = map[string][]byte{}
	if _, err := m.Categories(ctx); err != nil {
		t.Fatal(err)
	}
	if origin.treeCalls.Load() != 2 {
		t.Errorf("tree calls = %d, want 2 after invalidation", origin.treeCalls.Load())
	}
}

func TestManagerCallerCancelDoesNotFailOthers(t *testing.T) {
	origin := newCatalog()
	origin.treeGate = make(chan struct{})
	m := testManager(t, origin)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Categories(ctx)
		firstErr <- err
	}()
	waitFor(t, func() bool { return origin.treeCalls.Load() == 1 })

	type result struct {
		cats []Category
		err  error
	}
	second := make(chan result, 1)
	go func() {
		cats, err := m.Categories(context.Background())
		second <- result{cats, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting for the shared load")
	}

	close(origin.treeGate)
	select {
	case r := <-second:
		if r.err != nil || len(r.cats) != 3 {
			t.Fatalf("second caller = %d rows, %v", len(r.cats), r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second caller never returned")
	}
	if got := origin.treeCalls.Load(); got != 1 {
		t.Errorf("tree calls = %d, want 1", got)
	}
	if got := m.Loaded(); len(got) != 1 || got[0] != KindCategories {
		t.Errorf("Loaded() = %v, want the shared load memoized", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}
