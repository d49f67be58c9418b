package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across layers.
var (
	// ErrCircuitOpen indicates that a circuit breaker rejected the call
	// without attempting it. Callers must not retry; the breaker itself
	// allows a probe once its timeout elapses.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// FetchError represents a failure to retrieve the changelog document.
// StatusCode is zero for network-level failures (connection errors,
// timeouts) where no HTTP response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure class is worth retrying:
// network-level failures and 5xx responses are, 4xx responses are not.
func (e *FetchError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// ParseError represents malformed changelog text or an invalid semantic
// version. It is never retried: a parse failure implies an upstream format
// change that needs a human.
type ParseError struct {
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("parse %q: %s", e.Input, e.Message)
	}
	return fmt.Sprintf("parse: %s", e.Message)
}

// StorageError represents a persistence failure after the state store has
// exhausted its own bounded retries. Err carries the last underlying error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError represents a programmer-visible malformed input with
// field-level detail. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ConfigError represents a missing or invalid required setting. Fatal: the
// run aborts immediately, no retry.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}
