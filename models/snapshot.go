// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// Snapshot is a checksummed, versioned copy of a logical store's state at a
// point in time. Two snapshots with equal Checksum are considered equivalent
// regardless of Timestamp or Version. Version is a monotonically increasing
// integer bumped by every conflict resolution; it is a tie-break hint, never
// the sole consistency mechanism.
//
// A snapshot is owned exclusively by the sync engine instance for one logical
// store identifier and is superseded (not versioned historically) by the next
// snapshot for that identifier.
type Snapshot struct {
	// Data is the JSON-serializable state value.
	Data any `json:"data"`

	// Timestamp records when the snapshot was taken, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Version counts conflict resolutions applied to this logical store.
	Version int64 `json:"version"`

	// Checksum is a deterministic digest of Data's canonical JSON form.
	Checksum string `json:"checksum"`

	// Encrypted reports whether the snapshot is persisted encrypted.
	Encrypted bool `json:"encrypted"`

	// ClientID identifies the client instance that produced the snapshot.
	ClientID string `json:"clientId"`

	// UserID optionally scopes the snapshot to an authenticated user.
	UserID string `json:"userId,omitempty"`
}

// Equivalent reports whether two snapshots carry the same state, judged by
// checksum alone.
func (s Snapshot) Equivalent(other Snapshot) bool {
	return s.Checksum != "" && s.Checksum == other.Checksum
}

// Age returns how long ago the snapshot was taken relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.Timestamp))
}
