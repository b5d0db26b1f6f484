package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/MKhiriev/go-state-keeper/internal/logger"
)

// DB wraps a server-side SQL connection together with the placeholder format
// and error classification matching its driver.
type DB struct {
	*sql.DB
	// Dialect is the goose dialect name for this connection ("pgx" or
	// "sqlite3").
	Dialect string

	builder    sq.StatementBuilderType
	classifier errorClassifier
	logger     *logger.Logger
}

// NewConnectPostgres opens a PostgreSQL connection via the pgx stdlib driver.
func NewConnectPostgres(ctx context.Context, dsn string, log *logger.Logger) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error occured during database connection")
		return nil, fmt.Errorf("error occured during database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(4)

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error connecting database (ping)")
		return nil, err
	}
	log.Info().Str("func", "NewConnectPostgres").Msg("connected to database successfully")

	return &DB{
		DB:         conn,
		Dialect:    "pgx",
		builder:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		classifier: postgresErrorClassifier{},
		logger:     log,
	}, nil
}

// NewConnectServerSQLite opens a SQLite connection for single-node server
// deployments that do not want to run PostgreSQL.
func NewConnectServerSQLite(ctx context.Context, dsn string, log *logger.Logger) (*DB, error) {
	if dsn != ":memory:" {
		if err := createDBFileIfNotExists(dsn); err != nil {
			log.Err(err).Str("func", "NewConnectServerSQLite").Msg("error creating database file")
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening connection to DB: %w", err)
	}
	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectServerSQLite").Msg("error connecting database (ping)")
		return nil, err
	}
	log.Debug().Str("func", "NewConnectServerSQLite").Msg("connected to database successfully")

	return &DB{
		DB:         conn,
		Dialect:    "sqlite3",
		builder:    sq.StatementBuilder.PlaceholderFormat(sq.Question),
		classifier: sqliteErrorClassifier{},
		logger:     log,
	}, nil
}

// errorClassifier maps driver-specific errors onto repository sentinels.
type errorClassifier interface {
	// IsUniqueViolation reports whether err is a unique-constraint failure,
	// which the repository treats as a concurrent-writer conflict.
	IsUniqueViolation(err error) bool
}

type postgresErrorClassifier struct{}

func (postgresErrorClassifier) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

type sqliteErrorClassifier struct{}

func (sqliteErrorClassifier) IsUniqueViolation(err error) bool {
	// mattn/go-sqlite3 exposes typed errors, but matching on the message
	// avoids importing the driver's cgo package here.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
