package dataset

import (
	"cmp"
	"slices"
	"strings"
)

// UnknownAuthor labels books whose author is missing or "-".
const UnknownAuthor = "(unknown)"

// Count is a label with a row count.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary holds the catalog statistics shown on the statistics page.
type Summary struct {
	Books           int     `json:"books"`
	Categories      int     `json:"categories"`
	Stores          int     `json:"stores"`
	AveragePrice    float64 `json:"average_price"`
	Discounted      int     `json:"discounted"`
	DiscountedRatio float64 `json:"discounted_ratio"`
	AverageDiscount float64 `json:"average_discount"` // over discounted books only
	OutOfStock      int     `json:"out_of_stock"`
	OutOfStockRatio float64 `json:"out_of_stock_ratio"`
	Descriptions    int     `json:"descriptions"`

	BooksByTopCategory []Count `json:"books_by_top_category"`
	TopCategories      []Count `json:"top_categories"`
	TopAuthors         []Count `json:"top_authors"`
	Languages          []Count `json:"languages"`
	StoresByType       []Count `json:"stores_by_type"`
}

// Summarize computes statistics over the three tables. Any of them may be
// empty. Count lists are sorted by count, descending, then label.
func Summarize(books []Book, cats []Category, stores []StoreLocation) Summary {
	s := Summary{Books: len(books), Categories: len(cats), Stores: len(stores)}

	var priceSum, discountSum int64
	byCategory := make(map[string]int)
	byAuthor := make(map[string]int)
	byLang := make(map[string]int)
	for _, b := range books {
		priceSum += b.FinalPrice
		if b.Discount > 0 {
			s.Discounted++
			discountSum += b.Discount
		}
		if b.IsOOS {
			s.OutOfStock++
		}
		if b.Description != nil {
			s.Descriptions++
		}
		byCategory[b.CategorySlug]++
		author := strings.TrimSpace(b.Author)
		if author == "" || author == "-" {
			author = UnknownAuthor
		}
		byAuthor[author]++
		if b.Lang != "" {
			byLang[b.Lang]++
		}
	}
	if s.Books > 0 {
		s.AveragePrice = float64(priceSum) / float64(s.Books)
		s.DiscountedRatio = float64(s.Discounted) / float64(s.Books)
		s.OutOfStockRatio = float64(s.OutOfStock) / float64(s.Books)
	}
	if s.Discounted > 0 {
		s.AverageDiscount = float64(discountSum) / float64(s.Discounted)
	}

	s.BooksByTopCategory = countsByRoot(cats, byCategory)
	s.TopCategories = top(byCategory, 5)
	s.TopAuthors = top(byAuthor, 10)
	s.Languages = top(byLang, 0)

	byType := make(map[string]int)
	for _, st := range stores {
		byType[st.Type]++
	}
	s.StoresByType = top(byType, 0)
	return s
}

// countsByRoot folds per-category book counts into their root categories.
// Books tagged with a slug outside the table are not counted.
func countsByRoot(cats []Category, byCategory map[string]int) []Count {
	parent := make(map[string]string, len(cats))
	for _, c := range cats {
		parent[c.Slug] = c.Parent()
	}
	root := func(slug string) string {
		for range len(cats) {
			p, ok := parent[slug]
			if !ok || p == "" {
				break
			}
			slug = p
		}
		return slug
	}

	byRoot := make(map[string]int)
	for slug, n := range byCategory {
		if _, ok := parent[slug]; ok {
			byRoot[root(slug)] += n
		}
	}
	return top(byRoot, 0)
}

// top returns the n largest counts (all if n <= 0).
func top(m map[string]int, n int) []Count {
	out := make([]Count, 0, len(m))
	for label, c := range m {
		out = append(out, Count{Label: label, Count: c})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
