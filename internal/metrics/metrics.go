package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportiq_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportiq_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CreditsSpentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportiq_credits_spent_total",
			Help: "Total credits recorded against user usage, by operation.",
		},
		[]string{"operation"},
	)

	UsageDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportiq_usage_denied_total",
			Help: "Credit pre-checks that denied an operation, by reason.",
		},
		[]string{"reason"},
	)

	UsageWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportiq_usage_write_failures_total",
			Help: "Usage ledger writes that failed and were swallowed.",
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportiq_llm_requests_total",
			Help: "LLM API requests, by operation and status.",
		},
		[]string{"operation", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportiq_llm_request_duration_seconds",
			Help:    "LLM API request duration in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CreditsSpentTotal,
		UsageDeniedTotal,
		UsageWriteFailuresTotal,
		LLMRequestsTotal,
		LLMRequestDuration,
	)
}
