// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// ServerSnapshot is the server-side persisted copy of a logical store's
// snapshot: the envelope token plus the metadata the server needs for its
// optimistic version check, without ever decoding the token.
type ServerSnapshot struct {
	ID        int64     `json:"id"`
	StoreID   string    `json:"storeId"`
	Token     string    `json:"token"`
	Timestamp int64     `json:"timestamp"`
	Version   int64     `json:"version"`
	Checksum  string    `json:"checksum"`
	ClientID  string    `json:"clientId"`
	UpdatedAt time.Time `json:"updatedAt"`
}
