package gramedia

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

// maxPages bounds meta.total_page. The largest real category spans a few
// hundred pages; anything past this is a corrupt envelope.
const maxPages = 10000

// PageFunc fetches a single 1-based page of a list resource.
type PageFunc[T any] func(ctx context.Context, page int) (*Envelope[T], error)

// FetchAll retrieves every page of a list resource.
//
// Page 1 is fetched first to learn meta.total_page. Pages 2..N are then
// fetched concurrently; each goroutine writes only its own slot and the
// slots are merged in page order after the join, so the result order always
// matches the origin's page order. A total of one page (or fewer) issues no
// further requests.
//
// Any page failure fails the whole resource and cancels the pages still in
// flight. Connection concurrency is bounded by the client's transport, not
// here.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	first, err := fetch(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("page 1: %w", err)
	}
	if first.Meta.TotalPage > maxPages {
		return nil, apperrors.New(apperrors.ErrCodeInvalidResponse, "implausible total_page %d (max %d)", first.Meta.TotalPage, maxPages)
	}
	total := int(first.Meta.TotalPage)
	if total <= 1 {
		return first.Data, nil
	}

	pages := make([][]T, total-1)
	g, gctx := errgroup.WithContext(ctx)
	for p := 2; p <= total; p++ {
		g.Go(func() error {
			env, err := fetch(gctx, p)
			if err != nil {
				return fmt.Errorf("page %d of %d: %w", p, total, err)
			}
			pages[p-2] = env.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := len(first.Data)
	for _, page := range pages {
		n += len(page)
	}
	all := make([]T, 0, n)
	all = append(all, first.Data...)
	for _, page := range pages {
		all = append(all, page...)
	}
	return all, nil
}
