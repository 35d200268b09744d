package dataset

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/shelfmark/pkg/integrations/gramedia"
)

// DefaultDescriptionLimit caps concurrent product detail fetches.
const DefaultDescriptionLimit = 10

// Origin is the catalog API as the assembler uses it.
// *gramedia.Client satisfies it.
type Origin interface {
	CategoryTree(ctx context.Context, parent string) ([]gramedia.CategoryNode, error)
	Products(ctx context.Context, category string) ([]gramedia.Product, error)
	Stores(ctx context.Context, online bool) ([]gramedia.Store, error)
	Description(ctx context.Context, slug string) (string, error)
}

// Spec describes how to obtain one table: its kind, the snapshot filename it
// is cached under, and the origin fetch that builds it on a full miss.
type Spec[T any] struct {
	Kind     Kind
	Filename string
	Fetch    func(ctx context.Context) ([]T, error)
}

// AssemblerOptions configures an [Assembler].
type AssemblerOptions struct {
	// Root is the top-level category. Defaults to gramedia.RootCategory.
	Root string

	// Descriptions enables per-book description enrichment. It issues one
	// extra request per book.
	Descriptions bool

	// DescriptionLimit caps concurrent description fetches.
	// Defaults to DefaultDescriptionLimit.
	DescriptionLimit int

	// CategoryLimit caps concurrent per-category product fetches.
	// Zero means no limit beyond the transport's connection cap.
	CategoryLimit int

	Logger *log.Logger
}

// Assembler builds the catalog tables from the origin API.
type Assembler struct {
	origin Origin
	opts   AssemblerOptions
	logger *log.Logger
}

// NewAssembler creates an assembler over origin.
func NewAssembler(origin Origin, opts AssemblerOptions) *Assembler {
	if opts.Root == "" {
		opts.Root = gramedia.RootCategory
	}
	if opts.DescriptionLimit <= 0 {
		opts.DescriptionLimit = DefaultDescriptionLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{origin: origin, opts: opts, logger: logger}
}

// CategoriesSpec returns the Spec for the category table.
func (a *Assembler) CategoriesSpec() Spec[Category] {
	return Spec[Category]{Kind: KindCategories, Filename: FilenameCategories, Fetch: a.Categories}
}

// BooksSpec returns the Spec for the books table.
func (a *Assembler) BooksSpec() Spec[Book] {
	return Spec[Book]{Kind: KindBooks, Filename: FilenameBooks, Fetch: a.Books}
}

// StoresSpec returns the Spec for the store locations table.
func (a *Assembler) StoresSpec() Spec[StoreLocation] {
	return Spec[StoreLocation]{Kind: KindStores, Filename: FilenameStores, Fetch: a.Stores}
}

// Categories fetches the category tree below the root and flattens it.
func (a *Assembler) Categories(ctx context.Context) ([]Category, error) {
	tree, err := a.origin.CategoryTree(ctx, a.opts.Root)
	if err != nil {
		return nil, err
	}
	return Flatten(tree), nil
}

// Books fetches a fresh category table, then every category's products
// concurrently, and tags each row with the category it was listed under.
//
// A product listed under several categories is kept once, under the first
// category in table order. When description enrichment is enabled a failed
// detail fetch leaves that book's description nil.
func (a *Assembler) Books(ctx context.Context) ([]Book, error) {
	cats, err := a.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	listed := make([][]gramedia.Product, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	if a.opts.CategoryLimit > 0 {
		g.SetLimit(a.opts.CategoryLimit)
	}
	for i, c := range cats {
		g.Go(func() error {
			products, err := a.origin.Products(gctx, c.Slug)
			if err != nil {
				return err
			}
			listed[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	books, dups := mergeBooks(cats, listed)
	if dups > 0 {
		a.logger.Debug("dropped products listed under several categories", "duplicates", dups)
	}

	if a.opts.Descriptions {
		if err := a.enrich(ctx, books); err != nil {
			return nil, err
		}
	}
	return books, nil
}

func mergeBooks(cats []Category, listed [][]gramedia.Product) ([]Book, int) {
	n := 0
	for _, products := range listed {
		n += len(products)
	}
	books := make([]Book, 0, n)
	seen := make(map[string]struct{}, n)
	dups := 0
	for i, products := range listed {
		for _, p := range products {
			if slug := string(p.Slug); slug != "" {
				if _, ok := seen[slug]; ok {
					dups++
					continue
				}
				seen[slug] = struct{}{}
			}
			books = append(books, bookFromProduct(p, cats[i].Slug))
		}
	}
	return books, dups
}

func bookFromProduct(p gramedia.Product, category string) Book {
	return Book{
		ID:               int64(p.ProductMetaID),
		Title:            string(p.Title),
		Image:            string(p.Image),
		Slug:             string(p.Slug),
		Author:           string(p.Author),
		FinalPrice:       int64(p.FinalPrice),
		SlicePrice:       int64(p.SlicePrice),
		Discount:         int64(p.Discount),
		IsOOS:            bool(p.IsOOS),
		SKU:              string(p.SKU),
		CategorySlug:     category,
		Format:           string(p.Format),
		AppliedPromoSlug: string(p.AppliedPromoSlug),
		StoreName:        string(p.StoreName),
		ISBN:             string(p.ISBN),
		WarehouseSlug:    string(p.WarehouseSlug),
		WarehouseID:      int64(p.WarehouseID),
		Lang:             string(p.Lang),
	}
}

// enrich fills in descriptions with at most DescriptionLimit requests in
// flight. Each goroutine writes only its own row. Rows without a slug have
// no detail page and keep a nil description.
func (a *Assembler) enrich(ctx context.Context, books []Book) error {
	var failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(a.opts.DescriptionLimit)
	for i := range books {
		if books[i].Slug == "" {
			continue
		}
		g.Go(func() error {
			desc, err := a.origin.Description(ctx, books[i].Slug)
			if err != nil {
				failed.Add(1)
				a.logger.Warn("description unavailable", "slug", books[i].Slug, "err", err)
				return nil
			}
			books[i].Description = &desc
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		a.logger.Info("descriptions enriched", "books", len(books), "missing", n)
	}
	return nil
}

// Stores fetches the online and offline listings concurrently and returns
// the online stores first.
func (a *Assembler) Stores(ctx context.Context) ([]StoreLocation, error) {
	var online, offline []gramedia.Store
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		online, err = a.origin.Stores(gctx, true)
		return err
	})
	g.Go(func() (err error) {
		offline, err = a.origin.Stores(gctx, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]StoreLocation, 0, len(online)+len(offline))
	for _, s := range online {
		out = append(out, storeFromListing(s, StoreOnline))
	}
	for _, s := range offline {
		out = append(out, storeFromListing(s, StoreOffline))
	}
	return out, nil
}

// storeFromListing converts a listing row. The listing flag stands in for
// the type when the origin omits it.
func storeFromListing(s gramedia.Store, listing string) StoreLocation {
	typ := string(s.Type)
	if typ == "" {
		typ = listing
	}
	return StoreLocation{
		Name:         string(s.Name),
		Address:      string(s.Address),
		Latitude:     s.Latitude.Ptr(),
		Longitude:    s.Longitude.Ptr(),
		OpenSchedule: string(s.OpenSchedule),
		Slug:         string(s.Slug),
		Type:         typ,
	}
}

var _ Origin = (*gramedia.Client)(nil)
