// Package check implements the check-and-notify workflow: fetch the
// changelog, extract the latest release, compare it against the persisted
// state, and deliver at most one notification per new release.
//
// The workflow tolerates concurrent invocations without locking. The
// backing store offers no transactional read-modify-write, so correctness
// rests on idempotence instead: two overlapping runs may both detect the
// same new release and both attempt the notification (the accepted failure
// mode), but state only advances after a fully successful dispatch, so a
// failed sender never skips a release and a crashed run is safe to abandon.
package check

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relwatch/internal/changelog"
	"relwatch/internal/domain/entity"
	"relwatch/internal/infra/notifier"
	"relwatch/internal/observability/metrics"
	"relwatch/internal/resilience/circuitbreaker"
	"relwatch/internal/resilience/retry"
	"relwatch/internal/semver"
	"relwatch/internal/statestore"
)

// Outcome names the terminal state of a run.
type Outcome string

const (
	// OutcomeInitialized means the first run recorded a baseline version
	// without notifying.
	OutcomeInitialized Outcome = "initialized"

	// OutcomeNoChange means the latest release matches the persisted one.
	OutcomeNoChange Outcome = "no_change"

	// OutcomeNotified means a new release was detected and announced.
	OutcomeNotified Outcome = "notified"
)

// Result describes a completed run.
type Result struct {
	Outcome         Outcome       `json:"outcome"`
	PreviousVersion string        `json:"previous_version,omitempty"`
	LatestVersion   string        `json:"latest_version"`
	Duration        time.Duration `json:"duration_ns"`
}

// ChangelogFetcher retrieves the raw changelog document.
type ChangelogFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Service is the check-and-notify orchestrator. Collaborators and breakers
// are injected so hosts and tests control every external touchpoint.
type Service struct {
	Fetcher  ChangelogFetcher
	Parser   *changelog.Parser
	States   *statestore.Store
	Notifier notifier.Notifier

	FetchBreaker *circuitbreaker.CircuitBreaker
	StoreBreaker *circuitbreaker.CircuitBreaker
	FetchPolicy  retry.Policy

	Logger *slog.Logger
}

// NewService creates a Service with the given collaborators.
func NewService(
	fetcher ChangelogFetcher,
	parser *changelog.Parser,
	states *statestore.Store,
	n notifier.Notifier,
	fetchBreaker *circuitbreaker.CircuitBreaker,
	storeBreaker *circuitbreaker.CircuitBreaker,
	logger *slog.Logger,
) *Service {
	return &Service{
		Fetcher:      fetcher,
		Parser:       parser,
		States:       states,
		Notifier:     n,
		FetchBreaker: fetchBreaker,
		StoreBreaker: storeBreaker,
		FetchPolicy:  retry.NewFetchPolicy(),
		Logger:       logger,
	}
}

// Run executes one check. Errors propagate to the caller so the external
// scheduler's failure accounting stays accurate; the only swallowed
// conditions are a corrupt state record (treated as first run, inside the
// state store) and the first-run notification suppression.
func (s *Service) Run(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	logger := s.logger()
	defer func() {
		if err != nil {
			metrics.RecordCheck("failed", time.Since(start))
		} else {
			result.Duration = time.Since(start)
			metrics.RecordCheck(string(result.Outcome), result.Duration)
		}
	}()

	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := s.fetchLatest(ctx)
	if err != nil {
		return nil, err
	}

	if state == nil {
		// First run: record the baseline, never notify. Announcing a
		// backlog of historical releases on a fresh deployment would
		// be noise, not news.
		if _, err := s.initializeState(ctx, latest.Version); err != nil {
			return nil, err
		}
		logger.Info("first run, baseline recorded",
			slog.String("version", latest.Version))
		return &Result{Outcome: OutcomeInitialized, LatestVersion: latest.Version}, nil
	}

	newer, err := semver.IsNewer(latest.Version, state.LastVersion)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !newer {
		state.LastCheckTime = now
		if err := s.saveState(ctx, state); err != nil {
			return nil, err
		}
		logger.Info("no new release",
			slog.String("current", state.LastVersion),
			slog.String("latest", latest.Version))
		return &Result{
			Outcome:         OutcomeNoChange,
			PreviousVersion: state.LastVersion,
			LatestVersion:   latest.Version,
		}, nil
	}

	logger.Info("new release detected",
		slog.String("previous", state.LastVersion),
		slog.String("latest", latest.Version))

	if err := s.Notifier.NotifyRelease(ctx, latest); err != nil {
		// State stays untouched so the next run retries this release.
		metrics.RecordNotification(false)
		return nil, fmt.Errorf("notify release %s: %w", latest.Version, err)
	}
	metrics.RecordNotification(true)

	previous := state.LastVersion
	state.LastVersion = latest.Version
	state.LastCheckTime = now
	state.LastNotificationTime = &now
	if err := s.saveState(ctx, state); err != nil {
		// The notification went out but the advance failed; the next
		// run may re-notify. That duplicate is the documented,
		// accepted trade-off of an eventually consistent store.
		return nil, err
	}

	return &Result{
		Outcome:         OutcomeNotified,
		PreviousVersion: previous,
		LatestVersion:   latest.Version,
	}, nil
}

// fetchLatest retrieves and parses the changelog through the fetch breaker
// and retry policy, returning the topmost release.
func (s *Service) fetchLatest(ctx context.Context) (*entity.Release, error) {
	raw, err := s.FetchBreaker.Execute(func() (interface{}, error) {
		var body string
		err := retry.Do(ctx, s.FetchPolicy, func() error {
			var ferr error
			body, ferr = s.Fetcher.Fetch(ctx)
			return ferr
		})
		return body, err
	})
	if err != nil {
		metrics.RecordFetchFailure()
		return nil, err
	}

	// Parse failures are never retried: a format change needs a human.
	cl, err := s.Parser.Parse(raw.(string))
	if err != nil {
		return nil, err
	}
	return cl.Latest, nil
}

func (s *Service) loadState(ctx context.Context) (*entity.WatchState, error) {
	result, err := s.StoreBreaker.Execute(func() (interface{}, error) {
		return s.States.Get(ctx)
	})
	if err != nil {
		return nil, err
	}
	state, _ := result.(*entity.WatchState)
	return state, nil
}

func (s *Service) saveState(ctx context.Context, state *entity.WatchState) error {
	_, err := s.StoreBreaker.Execute(func() (interface{}, error) {
		return nil, s.States.Set(ctx, state)
	})
	return err
}

func (s *Service) initializeState(ctx context.Context, version string) (*entity.WatchState, error) {
	result, err := s.StoreBreaker.Execute(func() (interface{}, error) {
		return s.States.Initialize(ctx, version)
	})
	if err != nil {
		return nil, err
	}
	return result.(*entity.WatchState), nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
