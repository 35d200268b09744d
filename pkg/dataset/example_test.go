package dataset_test

import (
	"fmt"

	"github.com/matzehuels/shelfmark/pkg/dataset"
	"github.com/matzehuels/shelfmark/pkg/integrations/gramedia"
)

func ExampleFlatten() {
	tree := []gramedia.CategoryNode{{
		Slug: "fiksi",
		Subcategory: []gramedia.CategoryNode{
			{Slug: "novel", Subcategory: []gramedia.CategoryNode{{Slug: "novel-remaja"}}},
			{Slug: "puisi"},
		},
	}}
	for _, c := range dataset.Flatten(tree) {
		fmt.Printf("%d %s (parent %q)\n", c.Depth, c.Slug, c.Parent())
	}
	// Output:
	// 0 fiksi (parent "")
	// 1 novel (parent "fiksi")
	// 2 novel-remaja (parent "novel")
	// 1 puisi (parent "fiksi")
}

func ExamplePaginate() {
	p := dataset.Paginate([]string{"a", "b", "c", "d", "e"}, 2, 2)
	fmt.Println(p.Data, p.Meta.TotalPage, p.Meta.TotalData)
	// Output: [c d] 3 5
}
