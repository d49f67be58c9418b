// Package circuitbreaker wraps github.com/sony/gobreaker to protect each
// external dependency of the watcher. A breaker trips after a configured
// number of consecutive failures, stays open for its timeout, then admits a
// single half-open probe; breakers are constructed values handed to their
// callers, never package globals, so hosts and tests can inject fresh
// instances.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"relwatch/internal/domain/entity"
	"relwatch/internal/observability/metrics"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the breaker in logs and diagnostics.
	Name string

	// FailureThreshold is the number of consecutive failures that trips
	// the circuit.
	FailureThreshold uint32

	// Timeout is how long the circuit stays open before allowing a
	// half-open probe.
	Timeout time.Duration
}

// FetchConfig protects the changelog document fetch.
func FetchConfig() Config {
	return Config{Name: "changelog-fetch", FailureThreshold: 5, Timeout: 60 * time.Second}
}

// NotifyConfig protects the notification channel.
func NotifyConfig() Config {
	return Config{Name: "notify", FailureThreshold: 10, Timeout: 30 * time.Second}
}

// StoreConfig protects the persistence backend. Stricter than the others:
// storage failures are rarer and more severe.
func StoreConfig() Config {
	return Config{Name: "state-store", FailureThreshold: 3, Timeout: 10 * time.Second}
}

// Snapshot is a read-only view of a breaker for diagnostics.
type Snapshot struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time,omitzero"`
}

// CircuitBreaker wraps a gobreaker instance for one external dependency.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string

	mu          sync.Mutex
	lastFailure time.Time
}

// New creates a circuit breaker with the given configuration. The breaker
// opens once ConsecutiveFailures reaches the threshold and admits exactly
// one request while half-open.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.UpdateBreakerState(name, stateValue(to))
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// stateValue maps a gobreaker state onto the gauge convention
// (0 closed, 1 half-open, 2 open).
func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Execute runs fn through the breaker. While the circuit is open the call
// fails immediately with entity.ErrCircuitOpen and fn is never invoked.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", cb.name, entity.ErrCircuitOpen)
		}
		cb.mu.Lock()
		cb.lastFailure = time.Now()
		cb.mu.Unlock()
	}
	return result, err
}

// State returns the current gobreaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// Snapshot returns the current diagnostic view of the breaker.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	lastFailure := cb.lastFailure
	cb.mu.Unlock()

	return Snapshot{
		Name:                cb.name,
		State:               cb.breaker.State().String(),
		ConsecutiveFailures: cb.breaker.Counts().ConsecutiveFailures,
		LastFailureTime:     lastFailure,
	}
}
