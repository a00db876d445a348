package paginator

import (
	"context"
	"errors"
)

// Page is one page of elements together with the total the source reported.
type Page[T any] struct {
	Items []T
	Total int
}

// Source retrieves pages from some backend (HTTP API, database, local store).
type Source[T any] interface {
	// FetchPage returns the 1-based page of the given size.
	FetchPage(ctx context.Context, page, pageSize int) (Page[T], error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T any] func(ctx context.Context, page, pageSize int) (Page[T], error)

// FetchPage implements Source.
func (f SourceFunc[T]) FetchPage(ctx context.Context, page, pageSize int) (Page[T], error) {
	return f(ctx, page, pageSize)
}

// SyncFetch returns a FetchHandler that calls src inline and reports the
// outcome before returning.
func SyncFetch[T any](ctx context.Context, src Source[T]) FetchHandler[T] {
	return func(p *Paginator[T], page, pageSize int) {
		result, err := src.FetchPage(ctx, page, pageSize)
		report(p, page, result, err)
	}
}

// AsyncFetch returns a FetchHandler that calls src on a new goroutine and posts
// the outcome onto loop. The paginator must be owned by loop.
//
// Reports belonging to a fetch issued before the latest Reset are dropped. If
// the loop has stopped the report is lost and the paginator stays in progress.
func AsyncFetch[T any](ctx context.Context, loop *Loop, src Source[T]) FetchHandler[T] {
	return func(p *Paginator[T], page, pageSize int) {
		generation := p.generation
		logger := p.logger

		go func() {
			result, err := src.FetchPage(ctx, page, pageSize)

			postErr := loop.Post(func() {
				if p.generation != generation {
					staleReportsDroppedTotal.WithLabelValues(p.name).Inc()
					p.logger.Debug().
						Int("page", page).
						Msg("Dropping report of a fetch issued before reset")
					return
				}
				report(p, page, result, err)
			})
			if postErr != nil {
				logger.Warn().
					Err(postErr).
					Int("page", page).
					Msg("Fetch report lost")
			}
		}()
	}
}

// report forwards a source outcome to the paginator.
func report[T any](p *Paginator[T], page int, result Page[T], err error) {
	if err != nil {
		p.logger.Warn().
			Err(err).
			Int("page", page).
			Msg("Source fetch failed")
		_ = p.Failed()
		return
	}

	if err := p.Received(result.Items, result.Total); err != nil {
		if errors.Is(err, ErrNegativeTotal) {
			// The fetch is still outstanding; settle it.
			_ = p.Failed()
		}
	}
}
