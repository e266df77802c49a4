// Package metrics provides Prometheus metrics for the cepgate service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchBuckets covers outbound action latencies from 5ms to 30s.
var DispatchBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// RequestBuckets covers inbound request latencies.
var RequestBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Outcome label values for ActionDispatchTotal.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"  // non-2xx response
	OutcomeTransport = "transport" // malformed URL or I/O failure
)

var (
	// ActionDispatchTotal counts action dispatches by outcome.
	ActionDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cepgate_action_dispatch_total",
			Help: "Action dispatches",
		},
		[]string{"outcome"},
	)

	// ActionDispatchDuration records outbound action latency in seconds.
	ActionDispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cepgate_action_dispatch_duration_seconds",
			Help:    "Action dispatch duration",
			Buckets: DispatchBuckets,
		},
	)

	// EventsReceivedTotal counts inbound events by result status.
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cepgate_events_received_total",
			Help: "Inbound events",
		},
		[]string{"status"},
	)

	// EngineResultsTotal counts results emitted by the engine.
	EngineResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cepgate_engine_results_total",
			Help: "Engine results",
		},
	)

	// EncodeErrorsTotal counts engine results whose document carried an errors entry.
	EncodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cepgate_encode_errors_total",
			Help: "Results encoded with property errors",
		},
	)

	// HTTPRequestsTotal counts inbound HTTP requests by route template and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cepgate_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration records inbound request latency in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cepgate_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: RequestBuckets,
		},
		[]string{"method", "route"},
	)

	// EngineProvisioned is 1 while the engine scope holds a provider.
	EngineProvisioned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cepgate_engine_provisioned",
			Help: "Engine provider provisioned",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ActionDispatchTotal,
		ActionDispatchDuration,
		EventsReceivedTotal,
		EngineResultsTotal,
		EncodeErrorsTotal,
		EngineProvisioned,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
