// Package metrics holds the Prometheus collectors for the catalog client, the
// local stores, the refresh scheduler and the connectivity tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog client
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_catalog_requests_total",
			Help: "Total number of remote catalog requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: "success", "not_found", "error"
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_catalog_request_duration_seconds",
			Help:    "Duration of remote catalog requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reel_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_circuit_breaker_requests_total",
			Help: "Requests passing through the circuit breaker by result",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Popular cache refresh
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_refresh_total",
			Help: "Popular cache refresh attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "skipped_offline"
	)

	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_refresh_last_success_timestamp_seconds",
			Help: "Unix time of the last successful popular cache refresh",
		},
	)

	// Favorites
	FavoriteOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_favorite_operations_total",
			Help: "Favorite add/remove operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	// Crash log sink
	CrashLogDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_crash_log_dropped_total",
			Help: "Records dropped because the crash log buffer was full",
		},
	)

	// Connectivity
	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_connectivity_online",
			Help: "1 when the catalog is reachable, 0 otherwise",
		},
	)

	ConnectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_connectivity_transitions_total",
			Help: "Connectivity state transitions",
		},
		[]string{"to"},
	)
)

// RecordCatalogRequest records one catalog request.
func RecordCatalogRequest(endpoint, outcome string, duration time.Duration) {
	CatalogRequests.WithLabelValues(endpoint, outcome).Inc()
	CatalogRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRefresh records a refresh attempt and, on success, its time.
func RecordRefresh(outcome string, at time.Time) {
	RefreshTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		RefreshLastSuccess.Set(float64(at.Unix()))
	}
}

// RecordFavorite records a favorite add or remove.
func RecordFavorite(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	FavoriteOps.WithLabelValues(op, outcome).Inc()
}

// SetOnline records the current connectivity state.
func SetOnline(online bool) {
	if online {
		ConnectivityOnline.Set(1)
		return
	}
	ConnectivityOnline.Set(0)
}
