package paginator

// Status is the lifecycle state of a Paginator.
type Status int

const (
	// StatusIdle means no page has been requested since construction or the last reset.
	StatusIdle Status = iota

	// StatusInProgress means a fetch is outstanding. FetchNextPage is a no-op in this state.
	StatusInProgress

	// StatusReady means the last fetch finished, successfully or not, and another
	// fetch may be issued. It says nothing about exhaustion; see ReachedLastPage.
	StatusReady
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInProgress:
		return "in_progress"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}
