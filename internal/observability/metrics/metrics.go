// Package metrics provides centralized Prometheus metrics for the watcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal counts orchestrator runs by outcome
	// (initialized, no_change, notified, failed).
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relwatch_checks_total",
			Help: "Total number of check runs by outcome",
		},
		[]string{"outcome"},
	)

	// CheckDuration measures the duration of a full check run.
	CheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relwatch_check_duration_seconds",
			Help:    "Duration of a full check-and-notify run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NotificationsTotal counts notification sends by status.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relwatch_notifications_total",
			Help: "Total number of release notifications by status",
		},
		[]string{"status"},
	)

	// FetchFailuresTotal counts changelog fetch failures that escaped the
	// retry layer.
	FetchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relwatch_fetch_failures_total",
			Help: "Total number of changelog fetches that failed after retries",
		},
	)

	// BreakerState reports each circuit breaker's state
	// (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
)

// RecordCheck records a completed run with its outcome and duration.
func RecordCheck(outcome string, duration time.Duration) {
	ChecksTotal.WithLabelValues(outcome).Inc()
	CheckDuration.Observe(duration.Seconds())
}

// RecordNotification records the result of a notification send.
func RecordNotification(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	NotificationsTotal.WithLabelValues(status).Inc()
}

// RecordFetchFailure records a changelog fetch that failed after retries.
func RecordFetchFailure() {
	FetchFailuresTotal.Inc()
}

// UpdateBreakerState publishes a breaker's state to the gauge.
func UpdateBreakerState(name string, state float64) {
	BreakerState.WithLabelValues(name).Set(state)
}
