package gramedia

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

func pagedSource(total int, perPage int, calls *atomic.Int32) PageFunc[int] {
	return func(ctx context.Context, page int) (*Envelope[int], error) {
		calls.Add(1)
		// Later pages answer first so completion order differs from page order.
		time.Sleep(time.Duration(total-page) * time.Millisecond)
		data := make([]int, perPage)
		for i := range data {
			data[i] = (page-1)*perPage + i
		}
		return &Envelope[int]{Data: data, Meta: &Meta{TotalPage: Int(total)}}, nil
	}
}

func TestFetchAll_CompleteAndOrdered(t *testing.T) {
	var calls atomic.Int32
	got, err := FetchAll(context.Background(), pagedSource(7, 3, &calls))
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(got) != 21 {
		t.Fatalf("len = %d, want 21", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d (page order broken)", i, v, i)
		}
	}
	if calls.Load() != 7 {
		t.Errorf("calls = %d, want 7", calls.Load())
	}
}

func TestFetchAll_SinglePageShortCircuits(t *testing.T) {
	for _, total := range []int{0, 1} {
		var calls atomic.Int32
		got, err := FetchAll(context.Background(), pagedSource(total, 2, &calls))
		if err != nil {
			t.Fatalf("FetchAll() error: %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("total=%d: calls = %d, want 1", total, calls.Load())
		}
		if len(got) != 2 {
			t.Errorf("total=%d: len = %d, want 2", total, len(got))
		}
	}
}

func TestFetchAll_PageFailureFailsResource(t *testing.T) {
	boom := errors.New("status 500")
	fetch := func(ctx context.Context, page int) (*Envelope[int], error) {
		if page == 3 {
			return nil, boom
		}
		return &Envelope[int]{Data: []int{page}, Meta: &Meta{TotalPage: 4}}, nil
	}
	got, err := FetchAll(context.Background(), fetch)
	if !errors.Is(err, boom) {
		t.Fatalf("FetchAll() error = %v, want %v", err, boom)
	}
	if got != nil {
		t.Errorf("FetchAll() returned partial data: %v", got)
	}
}

func TestFetchAll_FirstPageFailure(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	var calls atomic.Int32
	_, err := FetchAll(context.Background(), func(ctx context.Context, page int) (*Envelope[int], error) {
		calls.Add(1)
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("FetchAll() error = %v, want %v", err, boom)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchAll_ImplausibleTotalRejected(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, page int) (*Envelope[int], error) {
		calls.Add(1)
		return &Envelope[int]{Data: []int{page}, Meta: &Meta{TotalPage: 1_000_000_000_000}}, nil
	}
	got, err := FetchAll(context.Background(), fetch)
	if !apperrors.Is(err, apperrors.ErrCodeInvalidResponse) {
		t.Fatalf("FetchAll() error = %v, want INVALID_RESPONSE", err)
	}
	if got != nil {
		t.Errorf("FetchAll() returned data: %v", got)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	// The bound itself is still accepted.
	got, err = FetchAll(context.Background(), func(ctx context.Context, page int) (*Envelope[int], error) {
		return &Envelope[int]{Data: []int{page}, Meta: &Meta{TotalPage: maxPages}}, nil
	})
	if err != nil {
		t.Fatalf("FetchAll(maxPages) error: %v", err)
	}
	if len(got) != maxPages {
		t.Errorf("len = %d, want %d", len(got), maxPages)
	}
}
