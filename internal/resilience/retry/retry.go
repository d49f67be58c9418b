// Package retry provides retry execution with per-error-class policies.
// Each external dependency gets its own Policy deciding whether an error is
// worth retrying, how long to back off, and how many attempts to spend.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"relwatch/internal/domain/entity"
)

// Policy decides the retry behavior for one error class.
type Policy interface {
	// MaxAttempts is the total number of calls allowed, first try included.
	MaxAttempts() int

	// ShouldRetry reports whether err on the given (1-based) attempt is
	// worth another try.
	ShouldRetry(err error, attempt int) bool

	// Delay returns how long to sleep after the given (1-based) attempt
	// failed. err is available for server-provided hints.
	Delay(attempt int, err error) time.Duration
}

// Do calls fn, consulting policy on each failure. Retryable errors are
// exhausted here; the last error propagates unchanged once the policy gives
// up. Sleeps honor ctx cancellation.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	var lastErr error
	maxAttempts := policy.MaxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if attempt == maxAttempts || !policy.ShouldRetry(lastErr, attempt) {
			break
		}

		delay := policy.Delay(attempt, lastErr)
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	return lastErr
}

// FetchPolicy is the retry policy for changelog document fetches: transient
// network failures and 5xx responses retry, 4xx responses do not.
type FetchPolicy struct{}

// NewFetchPolicy returns the fetch policy (3 attempts, 5s/10s/20s backoff).
func NewFetchPolicy() FetchPolicy { return FetchPolicy{} }

func (FetchPolicy) MaxAttempts() int { return 3 }

func (FetchPolicy) ShouldRetry(err error, _ int) bool {
	if isContextError(err) {
		return false
	}

	var fetchErr *entity.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable()
	}
	return isNetworkError(err)
}

// Delay doubles a 5s base per completed attempt, capped at 20s.
func (FetchPolicy) Delay(attempt int, _ error) time.Duration {
	return capDelay(5*time.Second<<uint(attempt-1), 20*time.Second)
}

// StoragePolicy is the retry policy for persistence calls reached through
// the resilience layer: brief, linear.
type StoragePolicy struct{}

// NewStoragePolicy returns the storage policy (2 attempts, linear backoff).
func NewStoragePolicy() StoragePolicy { return StoragePolicy{} }

func (StoragePolicy) MaxAttempts() int { return 2 }

func (StoragePolicy) ShouldRetry(err error, _ int) bool {
	return !isContextError(err)
}

func (StoragePolicy) Delay(attempt int, _ error) time.Duration {
	return time.Duration(attempt+1) * time.Second
}

// NonePolicy never retries. Parse failures use it: a format change needs a
// human, not another attempt.
type NonePolicy struct{}

// NewNonePolicy returns the no-retry policy.
func NewNonePolicy() NonePolicy { return NonePolicy{} }

func (NonePolicy) MaxAttempts() int               { return 1 }
func (NonePolicy) ShouldRetry(error, int) bool    { return false }
func (NonePolicy) Delay(int, error) time.Duration { return 0 }

// HTTPError represents an HTTP error with status code, for callers that
// have no richer error type of their own.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isNetworkError classifies transport-level failures and raw HTTP errors
// from callers without a richer error type.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusRequestTimeout
	}
	return false
}
