package dataset

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Manager memoizes the three tables for the life of the process.
//
// The first successful call for a table runs the tiered lookup; later calls
// return the same slice without touching any tier. Concurrent first calls
// share one lookup. Failures are not remembered. Callers must treat the
// returned slices as read-only.
type Manager struct {
	store *Store
	asm   *Assembler
	group singleflight.Group

	books      memo[Book]
	categories memo[Category]
	stores     memo[StoreLocation]
}

// NewManager creates a manager. It does no I/O.
func NewManager(store *Store, asm *Assembler) *Manager {
	return &Manager{store: store, asm: asm}
}

// Books returns the books table.
func (m *Manager) Books(ctx context.Context) ([]Book, error) {
	return memoized(ctx, &m.group, &m.books, KindBooks, func(ctx context.Context) ([]Book, error) {
		return Load(ctx, m.store, m.asm.BooksSpec())
	})
}

// Categories returns the book categories table.
func (m *Manager) Categories(ctx context.Context) ([]Category, error) {
	return memoized(ctx, &m.group, &m.categories, KindCategories, func(ctx context.Context) ([]Category, error) {
		return Load(ctx, m.store, m.asm.CategoriesSpec())
	})
}

// Stores returns the store locations table.
func (m *Manager) Stores(ctx context.Context) ([]StoreLocation, error) {
	return memoized(ctx, &m.group, &m.stores, KindStores, func(ctx context.Context) ([]StoreLocation, error) {
		return Load(ctx, m.store, m.asm.StoresSpec())
	})
}

// Loaded reports which tables are memoized.
func (m *Manager) Loaded() []Kind {
	var out []Kind
	if m.categories.loaded() {
		out = append(out, KindCategories)
	}
	if m.books.loaded() {
		out = append(out, KindBooks)
	}
	if m.stores.loaded() {
		out = append(out, KindStores)
	}
	return out
}

// Reset forgets every memoized table. Lookups already in flight complete
// but their results are not kept.
func (m *Manager) Reset() {
	m.books.reset()
	m.categories.reset()
	m.stores.reset()
	for _, k := range Kinds() {
		m.group.Forget(string(k))
	}
}

// Store returns the underlying tiered store.
func (m *Manager) Store() *Store { return m.store }

type memo[T any] struct {
	mu   sync.Mutex
	rows []T
	done bool
	gen  uint64
}

func (m *memo[T]) get() ([]T, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows, m.gen, m.done
}

func (m *memo[T]) set(gen uint64, rows []T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.rows, m.done = rows, true
	}
}

func (m *memo[T]) loaded() bool {
	_, _, ok := m.get()
	return ok
}

func (m *memo[T]) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows, m.done = nil, false
	m.gen++
}

// memoized runs load at most once at a time per kind. The shared load is
// detached from any single caller's cancellation: a caller whose ctx ends
// stops waiting, while the others (and the memo) still get the result.
func memoized[T any](ctx context.Context, g *singleflight.Group, m *memo[T], kind Kind, load func(context.Context) ([]T, error)) ([]T, error) {
	if rows, _, ok := m.get(); ok {
		return rows, nil
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := g.DoChan(string(kind), func() (any, error) {
		rows, gen, ok := m.get()
		if ok {
			return rows, nil
		}
		rows, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		m.set(gen, rows)
		return rows, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]T), nil
	}
}
