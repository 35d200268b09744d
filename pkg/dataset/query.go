package dataset

import "strings"

// BookFilter selects books. Zero fields match everything.
type BookFilter struct {
	Category   string // category slug; its descendants match too
	Query      string // case-insensitive substring of title or author
	InStock    bool
	Discounted bool
}

// FilterBooks returns the books matching f, in table order. cats is needed
// only when f.Category is set.
func FilterBooks(books []Book, cats []Category, f BookFilter) []Book {
	var inCategory map[string]bool
	if f.Category != "" {
		inCategory = make(map[string]bool)
		for _, slug := range Descendants(cats, f.Category) {
			inCategory[slug] = true
		}
		// A slug missing from the category table can still tag books.
		inCategory[f.Category] = true
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]Book, 0)
	for _, b := range books {
		if inCategory != nil && !inCategory[b.CategorySlug] {
			continue
		}
		if f.InStock && b.IsOOS {
			continue
		}
		if f.Discounted && b.Discount <= 0 {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Author), q) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// FindBook returns the book with the given slug.
func FindBook(books []Book, slug string) (Book, bool) {
	for _, b := range books {
		if b.Slug == slug {
			return b, true
		}
	}
	return Book{}, false
}

// Descendants returns slug followed by every category below it, in table
// order. It returns nil if slug is not in the table.
func Descendants(cats []Category, slug string) []string {
	children := make(map[string][]string)
	found := false
	for _, c := range cats {
		if c.Slug == slug {
			found = true
		}
		if p := c.Parent(); p != "" {
			children[p] = append(children[p], c.Slug)
		}
	}
	if !found {
		return nil
	}

	below := map[string]bool{slug: true}
	stack := []string{slug}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[s] {
			if !below[child] {
				below[child] = true
				stack = append(stack, child)
			}
		}
	}

	out := []string{slug}
	for _, c := range cats {
		if c.Slug != slug && below[c.Slug] {
			out = append(out, c.Slug)
		}
	}
	return out
}

// CategoryFilter selects categories. A nil Depth matches any depth; Parent
// "" matches any parent.
type CategoryFilter struct {
	Parent string
	Depth  *int64
}

// FilterCategories returns the categories matching f, in table order.
func FilterCategories(cats []Category, f CategoryFilter) []Category {
	out := make([]Category, 0)
	for _, c := range cats {
		if f.Parent != "" && c.Parent() != f.Parent {
			continue
		}
		if f.Depth != nil && c.Depth != *f.Depth {
			continue
		}
		out = append(out, c)
	}
	return out
}

// StoreFilter selects store locations.
type StoreFilter struct {
	Type string // "online", "offline" or any origin label; "" matches all

	// Query matches store names case-insensitively. If no name matches,
	// it is matched against addresses instead.
	Query string

	WithCoordinates bool
}

// FilterStores returns the stores matching f, in table order.
func FilterStores(stores []StoreLocation, f StoreFilter) []StoreLocation {
	base := make([]StoreLocation, 0, len(stores))
	for _, s := range stores {
		if f.Type != "" && !strings.EqualFold(s.Type, f.Type) {
			continue
		}
		if f.WithCoordinates && !s.HasCoordinates() {
			continue
		}
		base = append(base, s)
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return base
	}
	byName := make([]StoreLocation, 0)
	for _, s := range base {
		if strings.Contains(strings.ToLower(s.Name), q) {
			byName = append(byName, s)
		}
	}
	if len(byName) > 0 {
		return byName
	}
	byAddress := make([]StoreLocation, 0)
	for _, s := range base {
		if strings.Contains(strings.ToLower(s.Address), q) {
			byAddress = append(byAddress, s)
		}
	}
	return byAddress
}

// PageMeta mirrors the origin's pagination metadata.
type PageMeta struct {
	Page      int `json:"page"`
	Size      int `json:"size"`
	TotalPage int `json:"total_page"`
	TotalData int `json:"total_data"`
}

// Page is one page of a table in the origin's list envelope shape.
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// Paginate returns the 1-based page of rows. Out-of-range pages are empty;
// page and size below 1 are clamped to 1.
func Paginate[T any](rows []T, page, size int) Page[T] {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	total := (len(rows) + size - 1) / size
	meta := PageMeta{Page: page, Size: size, TotalPage: total, TotalData: len(rows)}

	start := (page - 1) * size
	if start >= len(rows) {
		return Page[T]{Data: []T{}, Meta: meta}
	}
	end := min(start+size, len(rows))
	return Page[T]{Data: rows[start:end], Meta: meta}
}
