package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/models"
)

// SnapshotRepository persists the server-side copy of each logical store's
// snapshot and applies the optimistic version check on writes.
type SnapshotRepository interface {
	// GetSnapshot returns the current snapshot for storeID, or
	// [ErrSnapshotNotFound].
	GetSnapshot(ctx context.Context, storeID string) (models.ServerSnapshot, error)

	// SaveSnapshot upserts snap. When the stored version is newer than
	// snap.Version and the checksums differ, the stored snapshot is returned
	// together with [ErrVersionConflict] so the transport layer can hand the
	// server copy back to the client for resolution.
	SaveSnapshot(ctx context.Context, snap models.ServerSnapshot) (models.ServerSnapshot, error)
}

// snapshotRepository is the SQL-backed implementation of
// [SnapshotRepository]. It works against the "snapshots" table through the
// embedded [*DB] connection and its placeholder-aware query builder, so the
// same code serves both PostgreSQL and SQLite deployments.
type snapshotRepository struct {
	*DB
	logger *logger.Logger
}

// NewSnapshotRepository constructs a [SnapshotRepository] backed by the
// provided database connection and logger.
func NewSnapshotRepository(db *DB, log *logger.Logger) SnapshotRepository {
	return &snapshotRepository{DB: db, logger: log}
}

const snapshotColumns = "id, store_id, token, ts, version, checksum, client_id, updated_at"

func (r *snapshotRepository) GetSnapshot(ctx context.Context, storeID string) (models.ServerSnapshot, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Select(snapshotColumns).
		From("snapshots").
		Where(sq.Eq{"store_id": storeID}).
		ToSql()
	if err != nil {
		log.Err(err).Str("store_id", storeID).Msg("failed to build snapshot query")
		return models.ServerSnapshot{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	snap, err := r.scanSnapshot(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ServerSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		log.Err(err).Str("store_id", storeID).Msg("failed to query snapshot")
		return models.ServerSnapshot{}, err
	}

	return snap, nil
}

func (r *snapshotRepository) SaveSnapshot(ctx context.Context, snap models.ServerSnapshot) (models.ServerSnapshot, error) {
	log := logger.FromContext(ctx)

	existing, err := r.GetSnapshot(ctx, snap.StoreID)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return r.insertSnapshot(ctx, snap)
	case err != nil:
		return models.ServerSnapshot{}, err
	}

	// Optimistic check: a stored snapshot that is both newer and different
	// means another client pushed since this client last pulled.
	if existing.Version > snap.Version && existing.Checksum != snap.Checksum {
		log.Debug().
			Str("store_id", snap.StoreID).
			Int64("stored_version", existing.Version).
			Int64("submitted_version", snap.Version).
			Msg("snapshot version conflict")
		return existing, ErrVersionConflict
	}

	query, args, err := r.builder.
		Update("snapshots").
		Set("token", snap.Token).
		Set("ts", snap.Timestamp).
		Set("version", snap.Version).
		Set("checksum", snap.Checksum).
		Set("client_id", snap.ClientID).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"store_id": snap.StoreID}).
		ToSql()
	if err != nil {
		return models.ServerSnapshot{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).Str("store_id", snap.StoreID).Msg("failed to update snapshot")
		return models.ServerSnapshot{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return r.GetSnapshot(ctx, snap.StoreID)
}

func (r *snapshotRepository) insertSnapshot(ctx context.Context, snap models.ServerSnapshot) (models.ServerSnapshot, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Insert("snapshots").
		Columns("store_id", "token", "ts", "version", "checksum", "client_id", "updated_at").
		Values(snap.StoreID, snap.Token, snap.Timestamp, snap.Version, snap.Checksum, snap.ClientID, time.Now().UTC()).
		ToSql()
	if err != nil {
		return models.ServerSnapshot{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		// A unique violation on store_id means another client inserted the
		// first snapshot concurrently; report it as a version conflict so the
		// caller re-pulls.
		if r.classifier.IsUniqueViolation(err) {
			if existing, getErr := r.GetSnapshot(ctx, snap.StoreID); getErr == nil {
				return existing, ErrVersionConflict
			}
			return models.ServerSnapshot{}, ErrVersionConflict
		}
		log.Err(err).Str("store_id", snap.StoreID).Msg("failed to insert snapshot")
		return models.ServerSnapshot{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return r.GetSnapshot(ctx, snap.StoreID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *snapshotRepository) scanSnapshot(row rowScanner) (models.ServerSnapshot, error) {
	var snap models.ServerSnapshot
	err := row.Scan(
		&snap.ID,
		&snap.StoreID,
		&snap.Token,
		&snap.Timestamp,
		&snap.Version,
		&snap.Checksum,
		&snap.ClientID,
		&snap.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ServerSnapshot{}, err
	}
	if err != nil {
		return models.ServerSnapshot{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return snap, nil
}
