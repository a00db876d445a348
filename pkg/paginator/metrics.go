package paginator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for paginator state transitions.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_fetches_total",
		Help: "Total number of page fetches issued to the fetch handler",
	}, []string{"paginator"})

	fetchSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_fetch_skipped_total",
		Help: "Total number of FetchNextPage calls ignored by reason",
	}, []string{"paginator", "reason"}) // "in_progress", "last_page"

	pagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_pages_received_total",
		Help: "Total number of pages reported as received",
	}, []string{"paginator"})

	elementsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_elements_received_total",
		Help: "Total number of elements appended to the results",
	}, []string{"paginator"})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_fetch_failures_total",
		Help: "Total number of page fetches reported as failed",
	}, []string{"paginator"})

	resetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_resets_total",
		Help: "Total number of paginator resets",
	}, []string{"paginator"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paginator_fetch_duration_seconds",
		Help:    "Time between issuing a fetch and its completion report",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"paginator"})

	staleReportsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_stale_reports_dropped_total",
		Help: "Total number of asynchronous fetch reports dropped after a reset",
	}, []string{"paginator"})

	contractViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_contract_violations_total",
		Help: "Total number of rejected Received/Failed calls",
	}, []string{"paginator", "operation"})
)

// Skip reasons for paginator_fetch_skipped_total.
const (
	skipInProgress = "in_progress"
	skipLastPage   = "last_page"
)
