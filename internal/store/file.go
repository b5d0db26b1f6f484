package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MKhiriev/go-state-keeper/models"
)

// fileBackend is the simple durable storage backend: a single JSON file
// holding every record, loaded on construction and rewritten on every
// mutation. It is the middle rung of the fallback chain, used when the
// indexed store is unavailable but the filesystem is.
type fileBackend struct {
	ks   keyspace
	path string

	mu      sync.RWMutex
	records map[string]models.StoredRecord
}

// filePersistedState is the on-disk layout of the file backend.
type filePersistedState struct {
	Records map[string]models.StoredRecord `json:"records"`
}

// NewFileBackend constructs the file-based [Backend] persisting into path.
// The file is created lazily on the first write; a missing file on load is
// not an error.
func NewFileBackend(path, prefix string) (Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("file backend: empty path")
	}

	b := &fileBackend{
		ks:      newKeyspace(prefix),
		path:    path,
		records: make(map[string]models.StoredRecord),
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *fileBackend) Name() string { return "file" }

func (f *fileBackend) Get(_ context.Context, key string) (models.StoredRecord, bool, error) {
	fullKey := f.ks.wrap(key)

	f.mu.RLock()
	record, ok := f.records[fullKey]
	f.mu.RUnlock()
	if !ok {
		return models.StoredRecord{}, false, nil
	}

	if record.Expired(time.Now()) {
		f.mu.Lock()
		delete(f.records, fullKey)
		err := f.persist()
		f.mu.Unlock()
		if err != nil {
			return models.StoredRecord{}, false, err
		}
		return models.StoredRecord{}, false, nil
	}

	return record, true, nil
}

func (f *fileBackend) Set(_ context.Context, key, payload string, ttl time.Duration) error {
	record := models.StoredRecord{Key: f.ks.wrap(key), Payload: payload}
	if ttl > 0 {
		record.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.Key] = record
	return f.persist()
}

func (f *fileBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, f.ks.wrap(key))
	return f.persist()
}

func (f *fileBackend) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for fullKey := range f.records {
		if _, ok := f.ks.unwrap(fullKey); ok {
			delete(f.records, fullKey)
		}
	}
	return f.persist()
}

func (f *fileBackend) Keys(_ context.Context) ([]string, error) {
	now := time.Now()
	keys := make([]string, 0)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for fullKey, record := range f.records {
		if record.Expired(now) {
			continue
		}
		if key, ok := f.ks.unwrap(fullKey); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fileBackend) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read storage file: %w", err)
	}

	var st filePersistedState
	if err = json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode storage file: %w", err)
	}
	if st.Records != nil {
		f.records = st.Records
	}
	return nil
}

// persist rewrites the whole file. Callers must hold the write lock.
func (f *fileBackend) persist() error {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	payload, err := json.MarshalIndent(filePersistedState{Records: f.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage state: %w", err)
	}

	if err = os.WriteFile(f.path, payload, 0o600); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	return nil
}
