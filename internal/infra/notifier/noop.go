package notifier

import (
	"context"
	"log/slog"

	"relwatch/internal/domain/entity"
)

// Noop is a Notifier that drops every notification. Used when the channel
// is disabled by configuration.
type Noop struct{}

// NewNoop creates a no-op notifier.
func NewNoop() *Noop { return &Noop{} }

// NotifyRelease implements Notifier. It logs and succeeds.
func (n *Noop) NotifyRelease(_ context.Context, release *entity.Release) error {
	if release == nil || release.Version == "" {
		return &entity.ValidationError{Field: "version", Message: "release is missing a version identifier"}
	}
	slog.Debug("notifications disabled, dropping release notification",
		slog.String("version", release.Version))
	return nil
}
