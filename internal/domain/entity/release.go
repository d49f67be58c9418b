// Package entity contains the core domain model: releases discovered in a
// changelog, the persisted watch state, and the error types shared across
// layers. The package carries no dependencies outside the standard library.
package entity

import "time"

// DateUnknown is the placeholder release date used when a changelog heading
// carries no date segment.
const DateUnknown = "unknown"

// Release is a single version entry discovered in a changelog document.
// It is immutable once produced by the changelog parser.
type Release struct {
	// Version is the semantic version string, without any "v" prefix.
	Version string

	// Date is the release date in YYYY-MM-DD form, or DateUnknown.
	Date string

	// Notes are the bullet items and sub-headings collected under the
	// version heading, in document order.
	Notes []string
}

// Changelog is the parsed form of a changelog document.
type Changelog struct {
	// Releases holds every discovered release in document order
	// (topmost first).
	Releases []Release

	// Latest points at the first element of Releases.
	Latest *Release
}

// WatchState is the single persisted record tying version detection to
// at-most-once notification. LastVersion is only ever advanced after the
// corresponding notification has been dispatched successfully, except on
// first run where it records the baseline without a notification.
type WatchState struct {
	LastVersion          string     `json:"last_version"`
	LastCheckTime        time.Time  `json:"last_check_time"`
	LastNotificationTime *time.Time `json:"last_notification_time,omitempty"`
}

// Valid reports whether the state record is structurally usable. A record
// that fails this check is treated as absent rather than as an error, so a
// corrupted row heals itself on the next run.
func (s *WatchState) Valid() bool {
	return s != nil && s.LastVersion != "" && !s.LastCheckTime.IsZero()
}
