package paginator

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FetchHandler is asked to retrieve one page. page is 1-based and is the page
// about to be fetched. The handler must eventually call exactly one of
// Received or Failed on p, either before returning or later.
type FetchHandler[T any] func(p *Paginator[T], page, pageSize int)

// ResultsHandler is called after a page has been appended to the results.
// elements holds only the newly received page.
type ResultsHandler[T any] func(p *Paginator[T], elements []T)

// ResetHandler is called after the paginator state has been cleared.
type ResetHandler[T any] func(p *Paginator[T])

// FailureHandler is called when a fetch is reported as failed.
type FailureHandler[T any] func(p *Paginator[T])

// CompletionHandler is called once the last page has been received.
type CompletionHandler[T any] func(p *Paginator[T])

// Option configures optional Paginator behavior.
type Option[T any] func(*Paginator[T])

// WithResetHandler registers a callback for Reset.
func WithResetHandler[T any](h ResetHandler[T]) Option[T] {
	return func(p *Paginator[T]) { p.onReset = h }
}

// WithFailureHandler registers a callback for Failed.
func WithFailureHandler[T any](h FailureHandler[T]) Option[T] {
	return func(p *Paginator[T]) { p.onFailure = h }
}

// WithCompletionHandler registers a callback fired by the Received call that
// reaches the last page.
func WithCompletionHandler[T any](h CompletionHandler[T]) Option[T] {
	return func(p *Paginator[T]) { p.onComplete = h }
}

// WithLogger sets the logger. The default is the global zerolog logger with
// component=paginator.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(p *Paginator[T]) { p.logger = logger }
}

// WithName sets the name used as the "paginator" label on metrics and logs.
func WithName[T any](name string) Option[T] {
	return func(p *Paginator[T]) {
		if name != "" {
			p.name = name
		}
	}
}

// Paginator accumulates the pages of a result set and decides when another
// page may be requested.
//
// A Paginator is not safe for concurrent use. It must only be touched by its
// owner; see Loop for marshaling asynchronous fetch reports.
type Paginator[T any] struct {
	pageSize int
	page     int
	total    int
	status   Status
	results  []T

	// completed is set once the completion handler fired for the current pass.
	completed    bool
	fetchStarted time.Time
	// generation counts resets so late asynchronous reports can be recognised.
	generation uint64

	fetch      FetchHandler[T]
	onResults  ResultsHandler[T]
	onReset    ResetHandler[T]
	onFailure  FailureHandler[T]
	onComplete CompletionHandler[T]

	name   string
	logger zerolog.Logger
}

// New creates a Paginator requesting pageSize elements per page.
func New[T any](pageSize int, fetch FetchHandler[T], results ResultsHandler[T], opts ...Option[T]) (*Paginator[T], error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPageSize, pageSize)
	}
	if fetch == nil || results == nil {
		return nil, ErrNilHandler
	}

	p := &Paginator[T]{
		pageSize:  pageSize,
		fetch:     fetch,
		onResults: results,
		name:      "default",
		logger:    log.With().Str("component", "paginator").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("paginator", p.name).Logger()
	p.setDefaults()

	return p, nil
}

// setDefaults restores the state New leaves behind.
func (p *Paginator[T]) setDefaults() {
	p.page = 0
	p.total = 0
	p.status = StatusIdle
	p.results = nil
	p.completed = false
	p.fetchStarted = time.Time{}
}

// PageSize returns the number of elements requested per page.
func (p *Paginator[T]) PageSize() int { return p.pageSize }

// Page returns the last page successfully received, 0 if none.
func (p *Paginator[T]) Page() int { return p.page }

// Total returns the total most recently reported by the source.
func (p *Paginator[T]) Total() int { return p.total }

// Status returns the current lifecycle state.
func (p *Paginator[T]) Status() Status { return p.status }

// Len returns the number of accumulated elements.
func (p *Paginator[T]) Len() int { return len(p.results) }

// Results returns all elements received so far in arrival order.
// The slice must be treated as read-only. Appending to it never affects the
// paginator.
func (p *Paginator[T]) Results() []T {
	return p.results[:len(p.results):len(p.results)]
}

// Reset clears page, total and results, returns the paginator to StatusIdle and
// calls the reset handler.
func (p *Paginator[T]) Reset() {
	prev := p.status
	p.setDefaults()
	p.generation++
	resetsTotal.WithLabelValues(p.name).Inc()

	p.logger.Debug().
		Str("previous_status", prev.String()).
		Msg("Paginator reset")

	if p.onReset != nil {
		p.onReset(p)
	}
}

// ReachedLastPage reports whether every page of the current total has been
// received. It is false until a page has been received, so a failed first
// fetch can be retried.
func (p *Paginator[T]) ReachedLastPage() bool {
	if p.status == StatusIdle || p.page == 0 {
		return false
	}
	totalPages := (p.total + p.pageSize - 1) / p.pageSize
	return p.page >= totalPages
}

// FetchFirstPage resets the paginator and requests page 1, regardless of the
// current status.
func (p *Paginator[T]) FetchFirstPage() {
	p.Reset()
	p.FetchNextPage()
}

// FetchNextPage asks the fetch handler for the next page. It does nothing while
// a fetch is in progress or once the last page has been received.
func (p *Paginator[T]) FetchNextPage() {
	if p.status == StatusInProgress {
		fetchSkippedTotal.WithLabelValues(p.name, skipInProgress).Inc()
		p.logger.Debug().Int("page", p.page+1).Msg("Fetch already in progress, ignoring")
		return
	}
	if p.ReachedLastPage() {
		fetchSkippedTotal.WithLabelValues(p.name, skipLastPage).Inc()
		p.logger.Debug().
			Int("page", p.page).
			Int("total", p.total).
			Msg("Last page reached, ignoring")
		return
	}

	// Arm the guard before the handler can report back.
	p.status = StatusInProgress
	p.fetchStarted = time.Now()
	next := p.page + 1
	fetchesTotal.WithLabelValues(p.name).Inc()

	p.logger.Debug().
		Int("page", next).
		Int("page_size", p.pageSize).
		Msg("Fetching page")

	p.fetch(p, next, p.pageSize)
}

// Received reports a successful fetch. elements are appended to the results in
// the given order, total replaces the previous total and the page counter
// advances by one. It returns ErrNotInProgress, leaving the state untouched,
// if no fetch is outstanding.
func (p *Paginator[T]) Received(elements []T, total int) error {
	if err := p.checkInProgress("received"); err != nil {
		return err
	}
	if total < 0 {
		contractViolationsTotal.WithLabelValues(p.name, "received").Inc()
		p.logger.Error().Int("total", total).Msg("Negative total reported")
		return fmt.Errorf("%w (got %d)", ErrNegativeTotal, total)
	}

	p.results = append(p.results, elements...)
	p.total = total
	p.page++
	p.status = StatusReady
	p.observeDuration()

	pagesReceivedTotal.WithLabelValues(p.name).Inc()
	elementsReceivedTotal.WithLabelValues(p.name).Add(float64(len(elements)))

	p.logger.Debug().
		Int("page", p.page).
		Int("elements", len(elements)).
		Int("total", p.total).
		Msg("Page received")

	p.onResults(p, elements)

	// The results handler may have fetched further pages synchronously.
	if p.onComplete != nil && !p.completed && p.status != StatusInProgress && p.ReachedLastPage() {
		p.completed = true
		p.logger.Debug().Int("total", p.total).Msg("All pages received")
		p.onComplete(p)
	}

	return nil
}

// Failed reports a failed fetch. Page, total and results are left as they
// were, so the next FetchNextPage requests the same page again.
func (p *Paginator[T]) Failed() error {
	if err := p.checkInProgress("failed"); err != nil {
		return err
	}

	p.status = StatusReady
	p.observeDuration()
	fetchFailuresTotal.WithLabelValues(p.name).Inc()

	p.logger.Warn().
		Int("page", p.page+1).
		Msg("Page fetch failed")

	if p.onFailure != nil {
		p.onFailure(p)
	}

	return nil
}

func (p *Paginator[T]) checkInProgress(operation string) error {
	if p.status == StatusInProgress {
		return nil
	}
	contractViolationsTotal.WithLabelValues(p.name, operation).Inc()
	p.logger.Error().
		Str("operation", operation).
		Str("status", p.status.String()).
		Msg("Completion reported without a fetch in progress")
	return fmt.Errorf("%s: %w (status %s)", operation, ErrNotInProgress, p.status)
}

func (p *Paginator[T]) observeDuration() {
	if !p.fetchStarted.IsZero() {
		fetchDuration.WithLabelValues(p.name).Observe(time.Since(p.fetchStarted).Seconds())
		p.fetchStarted = time.Time{}
	}
}
