// Package notifier delivers release notifications through a messaging
// channel. The Telegram implementation wraps the wire call in the full
// resilience pipeline: rate-limiter acquire, circuit-breaker execute, then
// retry with backoff, honoring server-provided retry-after hints on 429s.
//
// A Noop implementation exists for deployments with notifications disabled.
package notifier

import (
	"context"

	"relwatch/internal/domain/entity"
)

// Notifier is the interface for sending release notifications.
// Implementations handle rate limiting, retries and error logging
// internally; a non-nil return means the notification definitively failed
// after all attempts.
type Notifier interface {
	// NotifyRelease announces a newly detected release. It fails with a
	// *entity.ValidationError when the release lacks a version.
	NotifyRelease(ctx context.Context, release *entity.Release) error
}
