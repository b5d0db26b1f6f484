// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// StoredRecord is what a storage backend actually holds for one key. A record
// whose ExpiresAt is in the past must be treated as absent by all read
// operations and opportunistically deleted.
type StoredRecord struct {
	// Key is the full namespaced storage key.
	Key string `json:"key"`

	// Payload is the stored value, typically an envelope token.
	Payload string `json:"payload"`

	// ExpiresAt is the absolute expiry time in Unix milliseconds.
	// Zero means the record never expires.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

// Expired reports whether the record's TTL has elapsed at the given instant.
// Records without an expiry never expire.
func (r StoredRecord) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && r.ExpiresAt <= now.UnixMilli()
}
