// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// SyncOperation is the direction of a queued sync item.
type SyncOperation string

const (
	// SyncOpUpload pushes the local snapshot to the server.
	SyncOpUpload SyncOperation = "upload"

	// SyncOpDownload pulls the server snapshot to the client.
	SyncOpDownload SyncOperation = "download"
)

// PendingSyncItem is queued when a push cannot reach the network. Items are
// consumed and cleared once a connectivity-restored sync cycle completes,
// whether it succeeds or exhausts its retries.
type PendingSyncItem struct {
	// StoreID names the logical store the item belongs to.
	StoreID string `json:"storeId"`

	// Operation is the sync direction.
	Operation SyncOperation `json:"operation"`

	// Data is the snapshot captured at enqueue time.
	Data Snapshot `json:"data"`

	// Timestamp records when the item was queued, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Retries counts delivery attempts made for this item.
	Retries int `json:"retries"`
}
