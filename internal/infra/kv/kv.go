// Package kv abstracts the key-value persistence backend behind a minimal
// interface. The watcher only ever touches one logical key, so the contract
// stays deliberately small: get, put with expiry, delete.
//
// Three backends are provided: postgres (pgx), sqlite (modernc, cgo-free)
// and an in-memory map for tests and local runs. The backends apply expiry
// lazily on read; no background sweeper is required for a single key.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("kv: key not found")

// Store is the key-value backend contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound when the key is
	// absent or its TTL has elapsed.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key. A non-zero ttl sets an expiry after
	// which the entry may be evicted; a zero ttl stores forever.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
