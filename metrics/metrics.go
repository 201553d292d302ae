// Package metrics provides the Prometheus metrics of the service.
//
// HTTP traffic:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - rate_limiter_buckets_total: Gauge of tracked client buckets
//
// Domain activity:
//   - pn_computations_total: prescriptions computed, by source
//   - pn_blend_undefined_total: glucose blends that resolved to no mix, by reason
//   - pn_exports_total: sheet exports, by result
//   - pn_summary_requests_total: AI summary calls, by result
//   - pn_backups_total: scheduled backups, by result
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultEmpty   = "empty"
	ResultLimited = "rate_limited"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	Computations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pn_computations_total",
			Help: "Nutrition prescriptions computed",
		},
		[]string{"source"},
	)

	BlendUndefined = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pn_blend_undefined_total",
			Help: "Glucose blends without a defined mix",
		},
		[]string{"reason"},
	)

	Exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pn_exports_total",
			Help: "Printable sheet exports",
		},
		[]string{"result"},
	)

	SummaryRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pn_summary_requests_total",
			Help: "AI clinical summary requests",
		},
		[]string{"result"},
	)

	Backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pn_backups_total",
			Help: "Scheduled patient collection backups",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(Computations)
	prometheus.MustRegister(BlendUndefined)
	prometheus.MustRegister(Exports)
	prometheus.MustRegister(SummaryRequests)
	prometheus.MustRegister(Backups)
}
