package dataset

import (
	"strings"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

// Kind identifies one of the catalog tables.
type Kind string

const (
	KindBooks      Kind = "books"
	KindCategories Kind = "categories"
	KindStores     Kind = "stores"
)

// Snapshot filenames. They are shared with existing snapshot repositories
// and must not change.
const (
	FilenameBooks      = "books.parquet"
	FilenameCategories = "book_categories.parquet"
	FilenameStores     = "store_locations.parquet"
)

// Kinds returns every table kind in dependency order.
func Kinds() []Kind {
	return []Kind{KindCategories, KindBooks, KindStores}
}

// Filename returns the snapshot filename for k, or "" for an unknown kind.
func (k Kind) Filename() string {
	switch k {
	case KindBooks:
		return FilenameBooks
	case KindCategories:
		return FilenameCategories
	case KindStores:
		return FilenameStores
	}
	return ""
}

// ParseKind parses a table name. Singular forms and the snapshot filenames
// are accepted too.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "books", "book", FilenameBooks:
		return KindBooks, nil
	case "categories", "category", "book_categories", FilenameCategories:
		return KindCategories, nil
	case "stores", "store", "store_locations", FilenameStores:
		return KindStores, nil
	}
	return "", apperrors.New(apperrors.ErrCodeInvalidKind, "unknown dataset %q (want books, categories or stores)", s)
}

// Book is one row of the books table.
type Book struct {
	ID               int64   `parquet:"id" json:"id"`
	Title            string  `parquet:"title" json:"title"`
	Description      *string `parquet:"description" json:"description"`
	Image            string  `parquet:"image" json:"image"`
	Slug             string  `parquet:"slug" json:"slug"`
	Author           string  `parquet:"author" json:"author"`
	FinalPrice       int64   `parquet:"final_price" json:"final_price"`
	SlicePrice       int64   `parquet:"slice_price" json:"slice_price"`
	Discount         int64   `parquet:"discount" json:"discount"`
	IsOOS            bool    `parquet:"is_oos" json:"is_oos"`
	SKU              string  `parquet:"sku" json:"sku"`
	CategorySlug     string  `parquet:"category_slug,dict" json:"category_slug"`
	Format           string  `parquet:"format,dict" json:"format"`
	AppliedPromoSlug string  `parquet:"applied_promo_slug" json:"applied_promo_slug"`
	StoreName        string  `parquet:"store_name,dict" json:"store_name"`
	ISBN             string  `parquet:"isbn" json:"isbn"`
	WarehouseSlug    string  `parquet:"warehouse_slug,dict" json:"warehouse_slug"`
	WarehouseID      int64   `parquet:"warehouse_id" json:"warehouse_id"`
	Lang             string  `parquet:"lang,dict" json:"lang"`
}

// Category is one row of the flattened category table. ParentSlug is nil for
// roots; Depth is 0 for roots.
type Category struct {
	Title      string  `parquet:"title" json:"title"`
	Slug       string  `parquet:"slug" json:"slug"`
	Image      string  `parquet:"image" json:"image"`
	ParentSlug *string `parquet:"parent_slug" json:"parent_slug"`
	Depth      int64   `parquet:"depth" json:"depth"`
}

// Parent returns the parent slug, or "" for a root.
func (c Category) Parent() string {
	if c.ParentSlug == nil {
		return ""
	}
	return *c.ParentSlug
}

// Store types.
const (
	StoreOnline  = "online"
	StoreOffline = "offline"
)

// StoreLocation is one row of the store locations table. Coordinates are
// nil when the origin does not know them.
type StoreLocation struct {
	Name         string   `parquet:"name" json:"name"`
	Address      string   `parquet:"address" json:"address"`
	Latitude     *float64 `parquet:"latitude" json:"latitude"`
	Longitude    *float64 `parquet:"longitude" json:"longitude"`
	OpenSchedule string   `parquet:"open_schedule" json:"open_schedule"`
	Slug         string   `parquet:"slug" json:"slug"`
	Type         string   `parquet:"type,dict" json:"type"`
}

// HasCoordinates reports whether both coordinates are known.
func (s StoreLocation) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}
