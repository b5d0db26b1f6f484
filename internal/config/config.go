// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"

	"github.com/MKhiriev/go-state-keeper/models"
)

// StructuredConfig is the top-level configuration container for the
// go-state-keeper application. It aggregates all sub-configurations and is
// populated by merging values from environment variables, command-line flags,
// and an optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings such as the token sign key and
	// the application version.
	App App `envPrefix:"APP_"`

	// Client holds settings for the client side of the sync transport.
	Client Client `envPrefix:"CLIENT_"`

	// Storage holds configuration for all persistence backends: the server
	// database and the client-side offline cache chain.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds the sync engine's behavioral settings.
	Sync Sync `envPrefix:"SYNC_"`

	// Server holds network address and timeout settings for the HTTP server.
	Server Server `envPrefix:"SERVER_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// TokenSignKey is the secret key used to sign and verify JWT tokens.
	// Empty disables auth on the state routes. Must be kept confidential.
	// Env: APP_TOKEN_SIGN_KEY
	TokenSignKey string `env:"TOKEN_SIGN_KEY"`

	// TokenDuration specifies how long an issued token remains valid
	// (e.g. "24h").
	// Env: APP_TOKEN_DURATION
	TokenDuration time.Duration `env:"TOKEN_DURATION"`

	// Version is the semantic version string of the running application.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Client holds the client-side transport settings.
type Client struct {
	// Endpoint is the base URL of the sync server
	// (e.g. "http://localhost:8080").
	// Env: CLIENT_ENDPOINT
	Endpoint string `env:"ENDPOINT"`

	// Token is the bearer token attached to sync requests.
	// Env: CLIENT_TOKEN
	Token string `env:"TOKEN"`

	// Password is the secret used for snapshot encryption. Never sent to
	// the server.
	// Env: CLIENT_PASSWORD
	Password string `env:"PASSWORD"`

	// RequestTimeout bounds every network call (e.g. "15s").
	// Env: CLIENT_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage groups the configuration for all storage backends.
type Storage struct {
	// DB holds the server database connection settings.
	DB DB `envPrefix:"DB_"`

	// Cache holds the client-side offline cache settings.
	Cache Cache `envPrefix:"CACHE_"`
}

// DB holds connection settings for the server database.
type DB struct {
	// DSN is the Data Source Name. A "postgres://" scheme selects the
	// PostgreSQL driver; anything else is treated as a SQLite file path.
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Cache holds settings for the offline cache fallback chain.
type Cache struct {
	// SQLitePath is the file path of the durable indexed backend. Empty
	// removes the SQLite candidate from the chain.
	// Env: STORAGE_CACHE_SQLITE_PATH
	SQLitePath string `env:"SQLITE_PATH"`

	// FilePath is the JSON file of the simple durable backend. Empty
	// removes the file candidate from the chain.
	// Env: STORAGE_CACHE_FILE_PATH
	FilePath string `env:"FILE_PATH"`

	// Prefix overrides the storage key namespace.
	// Env: STORAGE_CACHE_PREFIX
	Prefix string `env:"PREFIX"`

	// DefaultTTL applies to cache records saved without an explicit TTL.
	// Zero means records never expire by default.
	// Env: STORAGE_CACHE_DEFAULT_TTL
	DefaultTTL time.Duration `env:"DEFAULT_TTL"`
}

// Sync holds the sync engine's behavioral settings.
type Sync struct {
	// Interval is the periodic auto-sync tick (e.g. "5m").
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// RetryAttempts caps automatic retries per trigger.
	// Env: SYNC_RETRY_ATTEMPTS
	RetryAttempts int `env:"RETRY_ATTEMPTS"`

	// Strategy selects conflict resolution: client-wins, server-wins,
	// timestamp or merge.
	// Env: SYNC_STRATEGY
	Strategy string `env:"STRATEGY"`

	// SettleDelay postpones the sync scheduled on reconnect.
	// Env: SYNC_SETTLE_DELAY
	SettleDelay time.Duration `env:"SETTLE_DELAY"`

	// Compress enables payload compression on encode.
	// Env: SYNC_COMPRESS
	Compress bool `env:"COMPRESS"`

	// Encrypt seals payloads under Client.Password.
	// Env: SYNC_ENCRYPT
	Encrypt bool `env:"ENCRYPT"`
}

// Server holds network and timeout settings for the inbound transport layer.
type Server struct {
	// HTTPAddress is the TCP address on which the HTTP server listens,
	// in "host:port" format (e.g. "0.0.0.0:8080").
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// request before the server cancels it (e.g. "30s").
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (first non-zero value wins):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}

// GetServerConfig returns the server settings with defaults applied.
func (c *StructuredConfig) GetServerConfig() Server {
	srv := c.Server
	if srv.HTTPAddress == "" {
		srv.HTTPAddress = "localhost:8080"
	}
	if srv.RequestTimeout <= 0 {
		srv.RequestTimeout = 30 * time.Second
	}
	return srv
}

// GetClientConfig returns the client transport settings with defaults
// applied.
func (c *StructuredConfig) GetClientConfig() Client {
	cl := c.Client
	if cl.Endpoint == "" {
		cl.Endpoint = "http://localhost:8080"
	}
	if cl.RequestTimeout <= 0 {
		cl.RequestTimeout = 15 * time.Second
	}
	return cl
}

// GetSyncConfig returns the sync engine settings with defaults applied.
func (c *StructuredConfig) GetSyncConfig() Sync {
	sn := c.Sync
	if sn.Interval <= 0 {
		sn.Interval = 5 * time.Minute
	}
	if sn.RetryAttempts <= 0 {
		sn.RetryAttempts = 3
	}
	if sn.Strategy == "" {
		sn.Strategy = models.StrategyClientWins.String()
	}
	if sn.SettleDelay <= 0 {
		sn.SettleDelay = 2 * time.Second
	}
	return sn
}
