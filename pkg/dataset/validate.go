package dataset

import "fmt"

// Problem is one invariant violation found by a validator.
type Problem struct {
	Kind    Kind   `json:"kind"`
	Row     int    `json:"row"`
	Slug    string `json:"slug,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s[%d] %s: %s", p.Kind, p.Row, p.Slug, p.Message)
}

// ValidateCategories checks that slugs are unique and that every parent
// reference names a category one level up.
func ValidateCategories(cats []Category) []Problem {
	var problems []Problem
	bySlug := make(map[string]Category, len(cats))
	for i, c := range cats {
		if _, dup := bySlug[c.Slug]; dup {
			problems = append(problems, Problem{KindCategories, i, c.Slug, "duplicate slug"})
			continue
		}
		bySlug[c.Slug] = c
	}
	for i, c := range cats {
		if c.ParentSlug == nil {
			if c.Depth != 0 {
				problems = append(problems, Problem{KindCategories, i, c.Slug, fmt.Sprintf("root at depth %d", c.Depth)})
			}
			continue
		}
		p, ok := bySlug[*c.ParentSlug]
		switch {
		case !ok:
			problems = append(problems, Problem{KindCategories, i, c.Slug, fmt.Sprintf("unknown parent %q", *c.ParentSlug)})
		case p.Depth != c.Depth-1:
			problems = append(problems, Problem{KindCategories, i, c.Slug, fmt.Sprintf("depth %d under parent at depth %d", c.Depth, p.Depth)})
		}
	}
	return problems
}

// ValidateBooks checks id and slug uniqueness and that discounted books are
// not priced above their list price.
func ValidateBooks(books []Book) []Problem {
	var problems []Problem
	ids := make(map[int64]bool, len(books))
	slugs := make(map[string]bool, len(books))
	for i, b := range books {
		if ids[b.ID] {
			problems = append(problems, Problem{KindBooks, i, b.Slug, fmt.Sprintf("duplicate id %d", b.ID)})
		}
		ids[b.ID] = true
		if slugs[b.Slug] {
			problems = append(problems, Problem{KindBooks, i, b.Slug, "duplicate slug"})
		}
		slugs[b.Slug] = true
		if b.Discount > 0 && b.FinalPrice > b.SlicePrice {
			problems = append(problems, Problem{KindBooks, i, b.Slug, fmt.Sprintf("final price %d above list price %d", b.FinalPrice, b.SlicePrice)})
		}
	}
	return problems
}

// Validate runs every validator over the tables.
func Validate(books []Book, cats []Category) []Problem {
	return append(ValidateCategories(cats), ValidateBooks(books)...)
}
