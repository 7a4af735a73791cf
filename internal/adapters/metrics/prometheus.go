package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saqal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saqal_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "saqal_sessions_active",
		Help: "Number of sessions not yet finished",
	})

	BatchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saqal_batch_runs_total",
		Help: "Total batch executions per outcome",
	}, []string{"status"})

	RunResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saqal_run_results_total",
		Help: "Total run results recorded",
	})

	CompletionRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saqal_completion_requests_total",
		Help: "Total completion requests",
	}, []string{"model", "status"})

	CompletionRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saqal_completion_request_duration_seconds",
		Help:    "Completion request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"model"})

	ReflectionParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saqal_reflection_parse_failures_total",
		Help: "Reflection replies that did not follow the expected format",
	})

	VersionsCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saqal_versions_committed_total",
		Help: "Prompt versions committed per status",
	}, []string{"status"})
)
