// Package statestore persists the last-known-release record through the kv
// backend. Every read and write runs a short bounded retry loop with linear
// backoff; exhausting it surfaces a StorageError carrying the last
// underlying error. Writes carry a 30-day expiry so abandoned deployments
// clean up after themselves, and a record that fails the structural check is
// treated as absent rather than as an error.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"relwatch/internal/domain/entity"
	"relwatch/internal/infra/kv"
)

const (
	// StateKey is the single logical key the watcher owns.
	StateKey = "relwatch:state"

	// DefaultTTL is the retention applied to every write.
	DefaultTTL = 30 * 24 * time.Hour

	readAttempts  = 2
	writeAttempts = 2
)

// Store reads and writes the persisted watch state.
type Store struct {
	kv  kv.Store
	ttl time.Duration

	// sleep is injectable so tests don't wait out the backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Store over the given kv backend with the default TTL.
func New(backend kv.Store) *Store {
	return &Store{
		kv:    backend,
		ttl:   DefaultTTL,
		sleep: sleepCtx,
	}
}

// Get returns the persisted state, or nil when no state exists. A record
// that cannot be decoded or fails the structural check is logged and
// treated as absent, which keeps a corrupted row from wedging the watcher.
func (s *Store) Get(ctx context.Context) (*entity.WatchState, error) {
	var raw []byte
	err := s.withRetry(ctx, "get", readAttempts, func() error {
		var err error
		raw, err = s.kv.Get(ctx, StateKey)
		return err
	})
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state entity.WatchState
	if err := json.Unmarshal(raw, &state); err != nil {
		slog.Warn("discarding undecodable state record",
			slog.String("key", StateKey),
			slog.Any("error", err))
		return nil, nil
	}
	if !state.Valid() {
		slog.Warn("discarding structurally invalid state record",
			slog.String("key", StateKey),
			slog.String("last_version", state.LastVersion))
		return nil, nil
	}
	return &state, nil
}

// Set persists the given state with the configured TTL.
func (s *Store) Set(ctx context.Context, state *entity.WatchState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return &entity.StorageError{Op: "set", Err: fmt.Errorf("encode state: %w", err)}
	}
	return s.withRetry(ctx, "set", writeAttempts, func() error {
		return s.kv.Put(ctx, StateKey, raw, s.ttl)
	})
}

// Initialize writes a fresh baseline state for version and returns it. The
// new record carries no notification time: the first run establishes the
// baseline without notifying.
func (s *Store) Initialize(ctx context.Context, version string) (*entity.WatchState, error) {
	state := &entity.WatchState{
		LastVersion:   version,
		LastCheckTime: time.Now().UTC(),
	}
	if err := s.Set(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// IsFirstRun reports whether no usable state exists yet.
func (s *Store) IsFirstRun(ctx context.Context) (bool, error) {
	state, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	return state == nil, nil
}

// withRetry runs op up to attempts times with linear backoff (attempt * 1s).
// ErrKeyNotFound passes through untouched; any other exhaustion is wrapped
// in a StorageError.
func (s *Store) withRetry(ctx context.Context, op string, attempts int, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || errors.Is(lastErr, kv.ErrKeyNotFound) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := time.Duration(attempt) * time.Second
		slog.Warn("state store operation failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))
		if err := s.sleep(ctx, delay); err != nil {
			return &entity.StorageError{Op: op, Err: err}
		}
	}
	return &entity.StorageError{Op: op, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
