// Package metrics provides Prometheus metrics for the PlanIt router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all router metrics.
const namespace = "planit_router"

// Routing metrics
var (
	// RoutingDecisionsTotal counts routing decisions by chosen backend and reason.
	RoutingDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of routing decisions by backend index and decision reason",
		},
		[]string{"backend", "reason"},
	)

	// UpgradesTotal counts websocket upgrade handshakes routed, by backend.
	UpgradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upgrades_total",
			Help:      "Total number of websocket upgrade handshakes routed by backend index",
		},
		[]string{"backend"},
	)

	// RateLimitedTotal counts requests rejected by the public-listener rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)
)

// Proxy metrics
var (
	// ProxiedRequestsTotal counts requests forwarded upstream, by backend.
	ProxiedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxied_requests_total",
			Help:      "Total number of requests forwarded to each backend",
		},
		[]string{"backend"},
	)

	// UpstreamErrorsTotal counts upstream connection failures and timeouts.
	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of upstream failures answered with a retryable 502",
		},
		[]string{"backend"},
	)
)

// Health probe metrics
var (
	// ProbeResultsTotal counts keepalive probe results by backend and outcome.
	ProbeResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_results_total",
			Help:      "Total number of keepalive probe results by backend and outcome",
		},
		[]string{"backend", "result"},
	)

	// ProbeDuration measures keepalive probe latency.
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Keepalive probe duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	// BackendUp reports last-known liveness per backend (1 alive, 0 down).
	BackendUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "Last-known liveness of each backend (1 alive, 0 down)",
		},
		[]string{"backend"},
	)
)

// Application metrics
var (
	// AppInfo provides build information as labels.
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_info",
			Help:      "PlanIt router application information",
		},
		[]string{"version"},
	)

	// ConfiguredBackends tracks the configured backend count.
	ConfiguredBackends = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "configured_backends",
			Help:      "Number of configured backends",
		},
	)
)

// SetAppInfo records the running version.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version).Set(1)
}

// RecordDecision records a routing decision for backend index with the
// given reason label.
func RecordDecision(backend, reason string) {
	RoutingDecisionsTotal.WithLabelValues(backend, reason).Inc()
}

// SetBackendUp records last-known liveness for a backend label.
func SetBackendUp(backend string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	BackendUp.WithLabelValues(backend).Set(v)
}
