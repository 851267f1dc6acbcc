package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkbot_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkbot_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Dispatcher metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkbot_deliveries_total",
			Help: "Inbound webhook deliveries by mode and outcome",
		},
		[]string{"mode", "outcome"}, // mode: "webhook" or "integration"
	)

	EnrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkbot_enrichment_duration_seconds",
			Help:    "Latency of message retrieval from the platform API",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"result"}, // "ok", "bad_status" or "error"
	)

	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkbot_callbacks_total",
			Help: "Message callback invocations",
		},
		[]string{"result"}, // "ok" or "panic"
	)

	CallbacksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sparkbot_callbacks_in_flight",
			Help: "Message callbacks currently running",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkbot_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkbot_signature_failures_total",
			Help: "Webhook deliveries rejected for a missing or invalid signature",
		},
	)
)
