package paginate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
)

type page struct {
	items []string
	next  *string
	err   error
}

// pager serves pages sequentially and records the cursors it was handed.
func pager(pages []page) (PageFunc[string], *[]*string) {
	var seen []*string
	i := 0
	fn := func(ctx context.Context, cursor *string) ([]string, *string, error) {
		seen = append(seen, cursor)
		if i >= len(pages) {
			return nil, nil, fmt.Errorf("page function called past the end (call %d)", i+1)
		}
		p := pages[i]
		i++
		return p.items, p.next, p.err
	}
	return fn, &seen
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

func TestAllConcatenatesPagesInOrder(t *testing.T) {
	fn, seen := pager([]page{
		{items: numbered("a", 10), next: aws.String("cursor-1")},
		{items: numbered("b", 10), next: aws.String("cursor-2")},
		{items: numbered("c", 5), next: nil},
	})

	got, err := All(context.Background(), fn)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(got) != 25 {
		t.Fatalf("expected 25 items, got %d", len(got))
	}

	want := append(append(numbered("a", 10), numbered("b", 10)...), numbered("c", 5)...)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d out of order: got %s, want %s", i, got[i], want[i])
		}
	}

	cursors := *seen
	if len(cursors) != 3 {
		t.Fatalf("expected 3 page calls, got %d", len(cursors))
	}
	if cursors[0] != nil {
		t.Errorf("first call must receive a nil cursor, got %q", *cursors[0])
	}
	if aws.ToString(cursors[1]) != "cursor-1" || aws.ToString(cursors[2]) != "cursor-2" {
		t.Errorf("cursors not threaded through: %q, %q", aws.ToString(cursors[1]), aws.ToString(cursors[2]))
	}
}

func TestAllSinglePage(t *testing.T) {
	fn, seen := pager([]page{
		{items: []string{"only"}, next: nil},
	})

	got, err := All(context.Background(), fn)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(got) != 1 || got[0] != "only" {
		t.Errorf("unexpected items: %v", got)
	}
	if len(*seen) != 1 {
		t.Errorf("expected exactly 1 page call, got %d", len(*seen))
	}
}

func TestAllEmptyCursorStops(t *testing.T) {
	fn, seen := pager([]page{
		{items: []string{"x"}, next: aws.String("")},
	})

	got, err := All(context.Background(), fn)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 item, got %d", len(got))
	}
	if len(*seen) != 1 {
		t.Errorf("empty cursor must end the listing, got %d calls", len(*seen))
	}
}

func TestAllEmptyListing(t *testing.T) {
	fn, _ := pager([]page{
		{items: nil, next: nil},
	})

	got, err := All(context.Background(), fn)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no items, got %d", len(got))
	}
}

func TestAllMidStreamErrorAborts(t *testing.T) {
	boom := errors.New("throttled")
	fn, seen := pager([]page{
		{items: numbered("a", 10), next: aws.String("cursor-1")},
		{err: boom},
	})

	got, err := All(context.Background(), fn)
	if !errors.Is(err, boom) {
		t.Fatalf("expected page error to propagate, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no items on error, got %d", len(got))
	}
	if len(*seen) != 2 {
		t.Errorf("expected pagination to stop at the failing page, got %d calls", len(*seen))
	}
}
