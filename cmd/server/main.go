package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-state-keeper/internal/config"
	handler "github.com/MKhiriev/go-state-keeper/internal/handler/http"
	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/internal/server"
	"github.com/MKhiriev/go-state-keeper/internal/store"
	"github.com/MKhiriev/go-state-keeper/migrations"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("state-keeper-server")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	ctx := context.Background()

	db, err := connectDatabase(ctx, cfg.Storage.DB.DSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to database")
	}
	defer db.Close()

	if err = migrations.Migrate(db.DB, db.Dialect); err != nil {
		log.Fatal().Err(err).Msg("error running migrations")
	}

	repo := store.NewSnapshotRepository(db, log)
	handlers := handler.NewHandler(repo, cfg.App.TokenSignKey, log)

	srv, err := server.NewServer(handlers.Init(), cfg.GetServerConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	srv.RunServer()
}

// connectDatabase selects the driver by DSN scheme: "postgres://" (or
// "postgresql://") goes to pgx, anything else is treated as a SQLite file
// path. An empty DSN falls back to an in-memory SQLite database, which is
// convenient for local runs but loses state on restart.
func connectDatabase(ctx context.Context, dsn string, log *logger.Logger) (*store.DB, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return store.NewConnectPostgres(ctx, dsn, log)
	case dsn == "":
		log.Warn().Msg("no database DSN configured, using in-memory sqlite")
		return store.NewConnectServerSQLite(ctx, ":memory:", log)
	default:
		return store.NewConnectServerSQLite(ctx, dsn, log)
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
