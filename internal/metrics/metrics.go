package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enhancer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	EnhancementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_enhancements_total",
			Help: "Total number of synchronous enhancements by outcome.",
		},
		[]string{"model", "outcome"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enhancer_provider_request_duration_seconds",
			Help:    "Outbound inference provider call duration in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	JobTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_job_transitions_total",
			Help: "Total number of enhancement job status transitions.",
		},
		[]string{"to"},
	)

	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_quota_rejections_total",
			Help: "Total number of requests rejected by quota scope.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EnhancementsTotal,
		ProviderRequestDuration,
		JobTransitionsTotal,
		QuotaRejectionsTotal,
	)
}
