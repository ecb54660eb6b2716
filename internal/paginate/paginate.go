// Package paginate drives cursor-based AWS listings to completion.
package paginate

import "context"

// PageFunc fetches one page of a listing. It receives the cursor
// returned by the previous call, nil on the first call, and returns the
// page's items together with the cursor for the next page. A nil or
// empty cursor means the listing is exhausted.
type PageFunc[T any] func(ctx context.Context, cursor *string) ([]T, *string, error)

// All drains a paginated listing into a single slice, concatenating
// pages in the order the service returns them. Any page error aborts
// the whole listing.
func All[T any](ctx context.Context, fn PageFunc[T]) ([]T, error) {
	var (
		out    []T
		cursor *string
	)
	for first := true; first || more(cursor); first = false {
		items, next, err := fn(ctx, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		cursor = next
	}
	return out, nil
}

func more(cursor *string) bool {
	return cursor != nil && *cursor != ""
}
