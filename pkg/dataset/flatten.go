package dataset

import "github.com/matzehuels/shelfmark/pkg/integrations/gramedia"

// Flatten converts a category forest into table rows, depth-first in
// pre-order: each node is emitted before its children, with its parent's
// slug and its depth. Sibling order is preserved.
func Flatten(roots []gramedia.CategoryNode) []Category {
	var out []Category
	for _, root := range roots {
		out = flatten(out, root, nil, 0)
	}
	return out
}

func flatten(out []Category, n gramedia.CategoryNode, parent *string, depth int64) []Category {
	out = append(out, Category{
		Title:      string(n.Title),
		Slug:       string(n.Slug),
		Image:      string(n.Image),
		ParentSlug: parent,
		Depth:      depth,
	})
	slug := string(n.Slug)
	for _, child := range n.Subcategory {
		out = flatten(out, child, &slug, depth+1)
	}
	return out
}
