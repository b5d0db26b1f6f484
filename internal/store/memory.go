package store

import (
	"context"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"

	"github.com/MKhiriev/go-state-keeper/models"
)

// memoryCullInterval is how often the expiremap sweeps expired entries.
const memoryCullInterval = time.Minute

// memoryDefaultTTL is the expiremap lifetime applied to records stored
// without an explicit TTL. Effectively "never" for an in-memory cache.
const memoryDefaultTTL = 24 * 365 * time.Hour

// memoryBackend is the in-memory storage backend, last in the fallback chain.
// It is backed by an expiring map so entries vanish on their own; Get still
// applies the expiry check itself because a record may outlive its TTL
// between culling sweeps.
type memoryBackend struct {
	ks keyspace

	mu      sync.RWMutex
	records *expiremap.ExpireMap[string, models.StoredRecord]
}

// NewMemoryBackend constructs the in-memory [Backend] with the given key
// prefix (empty means [DefaultKeyPrefix]).
func NewMemoryBackend(prefix string) Backend {
	return &memoryBackend{
		ks:      newKeyspace(prefix),
		records: expiremap.NewEx[string, models.StoredRecord](memoryCullInterval, memoryDefaultTTL),
	}
}

func (m *memoryBackend) Name() string { return "memory" }

func (m *memoryBackend) Get(_ context.Context, key string) (models.StoredRecord, bool, error) {
	m.mu.RLock()
	record, ok := m.records.Load(m.ks.wrap(key))
	m.mu.RUnlock()
	if !ok {
		return models.StoredRecord{}, false, nil
	}

	if record.Expired(time.Now()) {
		m.mu.Lock()
		m.records.Delete(m.ks.wrap(key))
		m.mu.Unlock()
		return models.StoredRecord{}, false, nil
	}

	return *record, true, nil
}

func (m *memoryBackend) Set(_ context.Context, key, payload string, ttl time.Duration) error {
	record := models.StoredRecord{Key: m.ks.wrap(key), Payload: payload}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl > 0 {
		record.ExpiresAt = time.Now().Add(ttl).UnixMilli()
		m.records.SetEx(record.Key, record, ttl)
		return nil
	}

	m.records.Set(record.Key, record)
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records.Delete(m.ks.wrap(key))
	return nil
}

func (m *memoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// expiremap has no flush operation; replacing the map drops everything at once.
	m.records = expiremap.NewEx[string, models.StoredRecord](memoryCullInterval, memoryDefaultTTL)
	return nil
}

func (m *memoryBackend) Keys(_ context.Context) ([]string, error) {
	now := time.Now()
	keys := make([]string, 0)

	m.mu.RLock()
	defer m.mu.RUnlock()

	m.records.Range(func(fullKey string, record models.StoredRecord) bool {
		if record.Expired(now) {
			return true
		}
		if key, ok := m.ks.unwrap(fullKey); ok {
			keys = append(keys, key)
		}
		return true
	})

	return keys, nil
}
