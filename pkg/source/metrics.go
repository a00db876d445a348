package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for page source requests.
var (
	sourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_source_requests_total",
		Help: "Total page source requests by source and status",
	}, []string{"source", "status"})

	sourceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paginator_source_request_duration_seconds",
		Help:    "Page source request duration in seconds by source",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"})

	sourceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paginator_source_errors_total",
		Help: "Total page source errors by class",
	}, []string{"class"})
)
