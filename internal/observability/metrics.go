package observability

import "github.com/prometheus/client_golang/prometheus"

// HTTP metrics are labelled by route; table names in import paths are folded
// by routeLabel.
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_http_requests_total",
			Help: "Requests served by the tabula API, by route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabula_http_request_duration_seconds",
			Help:    "Tabula API latency by route, including CSV parsing and query execution.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// CSV uploads dominate request bodies; the buckets span 1KiB to 64MiB.
	httpRequestBodyBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabula_http_request_body_bytes",
			Help:    "Declared request body size by route, mostly CSV uploads.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds, httpRequestBodyBytes)
}
