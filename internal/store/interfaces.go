package store

import (
	"context"
	"time"

	"github.com/MKhiriev/go-state-keeper/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/backend_mock.go -package=mock

// Backend is a key/value store with TTL used by the offline cache. All keys
// are namespaced with a fixed prefix inside the backend so unrelated data in
// the same physical store is never touched.
//
// Read operations must treat a record whose expiry is in the past as absent
// and opportunistically delete it.
type Backend interface {
	// Name identifies the backend in logs and probe reports.
	Name() string

	// Get returns the record stored under key, or ok=false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (record models.StoredRecord, ok bool, err error)

	// Set stores payload under key. A positive ttl bounds the record's
	// lifetime; zero means the record never expires.
	Set(ctx context.Context, key, payload string, ttl time.Duration) error

	// Delete removes the record under key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Clear removes every record in this backend's namespace.
	Clear(ctx context.Context) error

	// Keys lists the caller-side keys (prefix stripped) currently stored.
	Keys(ctx context.Context) ([]string, error)
}
