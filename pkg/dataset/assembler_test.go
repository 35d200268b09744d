package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/shelfmark/pkg/integrations/gramedia"
)

var errOrigin = errors.New("origin unavailable")

// fakeOrigin is an in-memory catalog that counts calls.
type fakeOrigin struct {
	tree         []gramedia.CategoryNode
	products     map[string][]gramedia.Product
	online       []gramedia.Store
	offline      []gramedia.Store
	descriptions map[string]string
	failTree     bool
	failProducts string
	delay        time.Duration
	treeGate     chan struct{} // when set, CategoryTree blocks until it is closed

	treeCalls    atomic.Int32
	productCalls atomic.Int32
	storeCalls   atomic.Int32
	descCalls    atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeOrigin) CategoryTree(ctx context.Context, parent string) ([]gramedia.CategoryNode, error) {
	f.treeCalls.Add(1)
	if f.treeGate != nil {
		select {
		case <-f.treeGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failTree {
		return nil, errOrigin
	}
	return f.tree, nil
}

func (f *fakeOrigin) Products(ctx context.Context, category string) ([]gramedia.Product, error) {
	f.productCalls.Add(1)
	if category == f.failProducts {
		return nil, fmt.Errorf("products %q: %w", category, errOrigin)
	}
	return f.products[category], nil
}

func (f *fakeOrigin) Stores(ctx context.Context, online bool) ([]gramedia.Store, error) {
	f.storeCalls.Add(1)
	if online {
		return f.online, nil
	}
	return f.offline, nil
}

func (f *fakeOrigin) Description(ctx context.Context, slug string) (string, error) {
	f.descCalls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	d, ok := f.descriptions[slug]
	if !ok {
		return "", errOrigin
	}
	return d, nil
}

func product(id int64, slug string) gramedia.Product {
	return gramedia.Product{
		ProductMetaID: gramedia.Int(id),
		Title:         gramedia.String("Book " + slug),
		Author:        "Author",
		Slug:          gramedia.String(slug),
		FinalPrice:    80000,
		SlicePrice:    100000,
		Discount:      20,
		Lang:          "id",
	}
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newCatalog() *fakeOrigin {
	return &fakeOrigin{
		tree: []gramedia.CategoryNode{node("fiksi", node("novel")), node("komik")},
		products: map[string][]gramedia.Product{
			"fiksi": {product(1, "laskar-pelangi"), product(2, "bumi")},
			"novel": {product(3, "hujan"), product(2, "bumi")},
			"komik": {product(4, "doraemon-1"), product(5, "naruto-1")},
		},
		online:  []gramedia.Store{{Name: "Gramedia Digital", Slug: "digital", Type: "online"}},
		offline: []gramedia.Store{{Name: "Gramedia Matraman", Slug: "matraman", Latitude: gramedia.Float{Value: -6.2, Valid: true}, Longitude: gramedia.Float{Value: 106.8, Valid: true}}},
		descriptions: map[string]string{
			"laskar-pelangi": "Belitung.",
			"bumi":           "Raib.",
			"hujan":          "Lail.",
			"doraemon-1":     "Nobita.",
		},
	}
}

func TestAssemblerCategories(t *testing.T) {
	origin := newCatalog()
	a := NewAssembler(origin, AssemblerOptions{Logger: quietLogger()})

	cats, err := a.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories() error: %v", err)
	}
	if len(cats) != 3 || cats[1].Slug != "novel" || cats[1].Parent() != "fiksi" {
		t.Errorf("Categories() = %+v", cats)
	}
	if spec := a.CategoriesSpec(); spec.Kind != KindCategories || spec.Filename != "book_categories.parquet" {
		t.Errorf("CategoriesSpec() = %+v", spec)
	}
}

func TestAssemblerBooks(t *testing.T) {
	origin := newCatalog()
	a := NewAssembler(origin, AssemblerOptions{Logger: quietLogger()})

	books, err := a.Books(context.Background())
	if err != nil {
		t.Fatalf("Books() error: %v", err)
	}

	// "bumi" is listed under fiksi and novel; it is kept once, under fiksi.
	want := map[string]string{
		"laskar-pelangi": "fiksi",
		"bumi":           "fiksi",
		"hujan":          "novel",
		"doraemon-1":     "komik",
		"naruto-1":       "komik",
	}
	if len(books) != len(want) {
		t.Fatalf("Books() returned %d rows, want %d", len(books), len(want))
	}
	for _, b := range books {
		if want[b.Slug] != b.CategorySlug {
			t.Errorf("%s category = %q, want %q", b.Slug, b.CategorySlug, want[b.Slug])
		}
		if b.Description != nil {
			t.Errorf("%s has a description with enrichment disabled", b.Slug)
		}
	}
	if origin.treeCalls.Load() != 1 || origin.productCalls.Load() != 3 {
		t.Errorf("tree calls = %d, product calls = %d", origin.treeCalls.Load(), origin.productCalls.Load())
	}
	if origin.descCalls.Load() != 0 {
		t.Errorf("description calls = %d, want 0", origin.descCalls.Load())
	}
	if problems := ValidateBooks(books); len(problems) != 0 {
		t.Errorf("assembled books fail validation: %v", problems)
	}
}

func TestAssemblerBooksPartialEnrichment(t *testing.T) {
	origin := newCatalog()
	a := NewAssembler(origin, AssemblerOptions{Descriptions: true, Logger: quietLogger()})

	books, err := a.Books(context.Background())
	if err != nil {
		t.Fatalf("Books() error: %v", err)
	}
	if len(books) != 5 {
		t.Fatalf("Books() returned %d rows, want 5", len(books))
	}
	described := 0
	for _, b := range books {
		if b.Description != nil {
			described++
			if *b.Description != origin.descriptions[b.Slug] {
				t.Errorf("%s description = %q", b.Slug, *b.Description)
			}
		} else if b.Slug != "naruto-1" {
			t.Errorf("%s description is nil", b.Slug)
		}
	}
	if described != 4 {
		t.Errorf("described = %d, want 4", described)
	}
}

func TestAssemblerEnrichSkipsMissingSlug(t *testing.T) {
	origin := newCatalog()
	origin.products["komik"] = append(origin.products["komik"], product(6, ""))
	a := NewAssembler(origin, AssemblerOptions{Descriptions: true, Logger: quietLogger()})

	books, err := a.Books(context.Background())
	if err != nil {
		t.Fatalf("Books() error: %v", err)
	}
	if len(books) != 6 {
		t.Fatalf("Books() returned %d rows, want 6", len(books))
	}
	for _, b := range books {
		if b.Slug == "" && b.Description != nil {
			t.Errorf("book %d without slug has description %q", b.ID, *b.Description)
		}
	}
	if got := origin.descCalls.Load(); got != 5 {
		t.Errorf("description calls = %d, want 5", got)
	}
}

func TestAssemblerDescriptionLimit(t *testing.T) {
	origin := newCatalog()
	origin.delay = 5 * time.Millisecond
	for i := range 30 {
		slug := fmt.Sprintf("extra-%d", i)
		origin.products["komik"] = append(origin.products["komik"], product(int64(100+i), slug))
	}
	a := NewAssembler(origin, AssemblerOptions{Descriptions: true, DescriptionLimit: 3, Logger: quietLogger()})

	if _, err := a.Books(context.Background()); err != nil {
		t.Fatalf("Books() error: %v", err)
	}
	if got := origin.maxInFlight.Load(); got > 3 {
		t.Errorf("max concurrent description fetches = %d, want <= 3", got)
	}
}

func TestAssemblerBooksFailure(t *testing.T) {
	origin := newCatalog()
	origin.failProducts = "novel"
	a := NewAssembler(origin, AssemblerOptions{Logger: quietLogger()})

	if _, err := a.Books(context.Background()); !errors.Is(err, errOrigin) {
		t.Errorf("Books() error = %v, want origin error", err)
	}

	origin = newCatalog()
	origin.failTree = true
	a = NewAssembler(origin, AssemblerOptions{Logger: quietLogger()})
	if _, err := a.Books(context.Background()); !errors.Is(err, errOrigin) {
		t.Errorf("Books() with failing categories error = %v", err)
	}
	if origin.productCalls.Load() != 0 {
		t.Error("no product fetch should start without categories")
	}
}

func TestAssemblerStores(t *testing.T) {
	origin := newCatalog()
	a := NewAssembler(origin, AssemblerOptions{Logger: quietLogger()})

	stores, err := a.Stores(context.Background())
	if err != nil {
		t.Fatalf("Stores() error: %v", err)
	}
	if len(stores) != 2 {
		t.Fatalf("Stores() returned %d rows", len(stores))
	}
	if stores[0].Slug != "digital" || stores[0].Type != StoreOnline {
		t.Errorf("first store = %+v, want the online listing", stores[0])
	}
	if stores[1].Type != StoreOffline {
		t.Errorf("offline store type = %q, want fallback %q", stores[1].Type, StoreOffline)
	}
	if stores[0].HasCoordinates() || !stores[1].HasCoordinates() || *stores[1].Latitude != -6.2 {
		t.Errorf("coordinates = %+v / %+v", stores[0], stores[1])
	}
	if origin.storeCalls.Load() != 2 {
		t.Errorf("store calls = %d, want 2", origin.storeCalls.Load())
	}
}

// The origin sends numbers as strings and flags as 0/1; the typed records
// come out canonical.
func TestAssemblerBooksTypedFromOrigin(t *testing.T) {
	var mu sync.Mutex
	requests := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/subcategory":
			io.WriteString(w, `{"data":[{"title":"Fiksi","slug":"fiksi","image":null,"subcategory":[]}]}`)
		case "/products":
			io.WriteString(w, `{"data":[{"product_meta_id":"42","title":"Bumi","slug":"bumi",
				"final_price":"85000","slice_price":100000.0,"discount":"15","is_oos":1,
				"warehouse_id":"7","lang":"id"}],"meta":{"total_page":1}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := gramedia.NewClient(gramedia.Options{APIURL: srv.URL, HTTP: srv.Client(), Attempts: 1})
	a := NewAssembler(client, AssemblerOptions{Logger: quietLogger()})

	books, err := a.Books(context.Background())
	if err != nil {
		t.Fatalf("Books() error: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("Books() returned %d rows", len(books))
	}
	b := books[0]
	if b.ID != 42 || b.FinalPrice != 85000 || b.SlicePrice != 100000 || b.Discount != 15 || !b.IsOOS || b.WarehouseID != 7 {
		t.Errorf("typed book = %+v", b)
	}
	if b.CategorySlug != "fiksi" || b.Author != "" {
		t.Errorf("book = %+v", b)
	}
	if requests["/products"] != 1 {
		t.Errorf("single-page category issued %d product requests", requests["/products"])
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"books", KindBooks},
		{"Book", KindBooks},
		{"book_categories.parquet", KindCategories},
		{"categories", KindCategories},
		{"stores", KindStores},
		{"store_locations", KindStores},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseKind("authors"); err == nil || !strings.Contains(err.Error(), "INVALID_KIND") {
		t.Errorf("ParseKind(authors) error = %v", err)
	}
	for _, k := range Kinds() {
		if k.Filename() == "" {
			t.Errorf("%s has no filename", k)
		}
	}
}
