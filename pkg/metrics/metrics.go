// Package metrics exposes the Prometheus registry used by the paginator.
// Metrics are defined next to the code that updates them (paginator, source)
// and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by all packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Paginator Metrics (pkg/paginator), all labelled {paginator}:
//   - paginator_fetches_total (Counter): fetches issued to the fetch handler
//   - paginator_fetch_skipped_total{reason} (Counter): FetchNextPage calls ignored
//     because a fetch was in progress or the last page was reached
//   - paginator_pages_received_total (Counter): successful page reports
//   - paginator_elements_received_total (Counter): elements appended to results
//   - paginator_fetch_failures_total (Counter): failed page reports
//   - paginator_resets_total (Counter): resets, including those from FetchFirstPage
//   - paginator_fetch_duration_seconds (Histogram): fetch issue to report latency
//   - paginator_contract_violations_total{operation} (Counter): rejected Received/Failed
//   - paginator_stale_reports_dropped_total (Counter): async reports dropped after a reset
//
// Source Metrics (pkg/source):
//   - paginator_source_requests_total{source, status} (Counter)
//   - paginator_source_request_duration_seconds{source} (Histogram)
//   - paginator_source_errors_total{class} (Counter): client, server, rate_limit, network
//
// Example Prometheus Queries:
//
//   # Page failure ratio
//   sum(rate(paginator_fetch_failures_total[5m])) /
//   sum(rate(paginator_fetches_total[5m]))
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(paginator_fetch_duration_seconds_bucket[5m]))
//
//   # Ignored fetches while one is in flight
//   rate(paginator_fetch_skipped_total{reason="in_progress"}[5m])
