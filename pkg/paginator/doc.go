// Package paginator tracks progress through a page-delimited result set.
//
// A Paginator does not know how pages are retrieved. The owner supplies a
// FetchHandler which is asked for page N of size S and must eventually report
// back with exactly one of Received or Failed. The paginator accumulates the
// elements in arrival order and notifies observers through the results, reset,
// failure and completion handlers.
//
// Example usage:
//
//	p, err := paginator.New(25,
//		paginator.SyncFetch(ctx, src),
//		func(p *paginator.Paginator[Order], orders []Order) {
//			render(orders)
//		},
//	)
//	if err != nil {
//		return err
//	}
//	p.FetchFirstPage()
//	for !p.ReachedLastPage() {
//		p.FetchNextPage()
//	}
//
// At most one fetch is outstanding at a time. Calls to FetchNextPage while a
// fetch is in flight are ignored, not queued.
//
// The paginator has no internal locking. When the fetch handler completes on
// another goroutine, the report must be marshaled back to the owning
// goroutine. Loop and AsyncFetch provide that marshaling.
package paginator
