package paginator

import "errors"

// Contract violations reported by the paginator.
var (
	// ErrInvalidPageSize is returned by New when the page size is not positive.
	ErrInvalidPageSize = errors.New("page size must be positive")

	// ErrNilHandler is returned by New when the fetch or results handler is missing.
	ErrNilHandler = errors.New("fetch and results handlers are required")

	// ErrNotInProgress is returned by Received and Failed when no fetch is outstanding.
	ErrNotInProgress = errors.New("no fetch in progress")

	// ErrNegativeTotal is returned by Received when the reported total is below zero.
	ErrNegativeTotal = errors.New("total must not be negative")

	// ErrLoopStopped is returned when posting to a Loop that is no longer running.
	ErrLoopStopped = errors.New("loop stopped")
)
