package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/models"
)

// sqliteBackend is the durable indexed storage backend, first in the fallback
// chain. Records live in a single key/value table with an expiry column; the
// primary-key index makes point reads cheap even for large caches.
type sqliteBackend struct {
	ks     keyspace
	db     *sql.DB
	logger *logger.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS statekeeper_records (
    key        TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    expires_at INTEGER NOT NULL DEFAULT 0
);`

// NewSQLiteBackend opens (creating if necessary) the SQLite database at
// dsn and ensures the records table exists. Pass ":memory:" for an
// ephemeral database in tests.
func NewSQLiteBackend(ctx context.Context, dsn, prefix string, log *logger.Logger) (Backend, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	if dsn != ":memory:" {
		if err := createDBFileIfNotExists(dsn); err != nil {
			log.Err(err).Str("func", "NewSQLiteBackend").Msg("error creating database file")
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create records table: %w", err)
	}

	return &sqliteBackend{ks: newKeyspace(prefix), db: db, logger: log}, nil
}

func createDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}
	return nil
}

func (s *sqliteBackend) Name() string { return "sqlite" }

func (s *sqliteBackend) Get(ctx context.Context, key string) (models.StoredRecord, bool, error) {
	fullKey := s.ks.wrap(key)

	var record models.StoredRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT key, payload, expires_at FROM statekeeper_records WHERE key = ?`, fullKey).
		Scan(&record.Key, &record.Payload, &record.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredRecord{}, false, nil
	}
	if err != nil {
		return models.StoredRecord{}, false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if record.Expired(time.Now()) {
		if _, err = s.db.ExecContext(ctx,
			`DELETE FROM statekeeper_records WHERE key = ?`, fullKey); err != nil {
			s.logger.Err(err).Str("key", key).Msg("failed to delete expired record")
		}
		return models.StoredRecord{}, false, nil
	}

	return record, true, nil
}

func (s *sqliteBackend) Set(ctx context.Context, key, payload string, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO statekeeper_records (key, payload, expires_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		s.ks.wrap(key), payload, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (s *sqliteBackend) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM statekeeper_records WHERE key = ?`, s.ks.wrap(key)); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (s *sqliteBackend) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM statekeeper_records WHERE key LIKE ?`, s.ks.prefix+":%"); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func (s *sqliteBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key FROM statekeeper_records
WHERE key LIKE ? AND (expires_at = 0 OR expires_at > ?)`,
		s.ks.prefix+":%", time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var fullKey string
		if err = rows.Scan(&fullKey); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if key, ok := s.ks.unwrap(fullKey); ok {
			keys = append(keys, key)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return keys, nil
}
