// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempJSONConfig(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

// ── newConfigBuilder ──────────────────────────────────────────────────────────

func TestNewConfigBuilder_InitialState(t *testing.T) {
	b := newConfigBuilder()
	require.NotNil(t, b)
	assert.NoError(t, b.err)
	assert.Empty(t, b.configs)
}

// ── build ─────────────────────────────────────────────────────────────────────

func TestBuild_EmptyBuilder(t *testing.T) {
	cfg, err := newConfigBuilder().build()
	require.NoError(t, err)
	assert.Equal(t, &StructuredConfig{}, cfg)
}

func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBuild_MergesMultipleConfigs(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{Server: Server{HTTPAddress: "localhost:9090"}},
		&StructuredConfig{
			Server: Server{HTTPAddress: "ignored:1", RequestTimeout: 30 * time.Second},
			Sync:   Sync{Strategy: "merge"},
		},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9090", cfg.Server.HTTPAddress, "earlier sources win for non-zero fields")
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout, "gaps are filled from later sources")
	assert.Equal(t, "merge", cfg.Sync.Strategy)
}

func TestBuild_RejectsUnknownStrategy(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{Sync: Sync{Strategy: "coin-flip"}})

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidSyncConfigs)
}

func TestBuild_RejectsCustomStrategyFromConfig(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{Sync: Sync{Strategy: "custom"}})

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidSyncConfigs, "custom needs a resolver, which config cannot carry")
}

func TestBuild_RejectsEncryptionWithoutPassword(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{Sync: Sync{Encrypt: true}})

	_, err := b.build()
	assert.ErrorIs(t, err, ErrInvalidClientConfigs)
}

// ── withJSON ──────────────────────────────────────────────────────────────────

func TestWithJSON_MergesFileValues(t *testing.T) {
	path := writeTempJSONConfig(t, map[string]any{
		"server": map[string]any{"http_address": "0.0.0.0:7070", "request_timeout": "45s"},
		"sync":   map[string]any{"strategy": "timestamp", "interval": "1m"},
	})

	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{JSONFilePath: path})

	cfg, err := b.withJSON().build()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7070", cfg.Server.HTTPAddress)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "timestamp", cfg.Sync.Strategy)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
}

func TestWithJSON_MissingFile(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{JSONFilePath: "/does/not/exist.json"})

	_, err := b.withJSON().build()
	assert.Error(t, err)
}

// ── defaults views ────────────────────────────────────────────────────────────

func TestGetConfigViews_Defaults(t *testing.T) {
	cfg := &StructuredConfig{}

	srv := cfg.GetServerConfig()
	assert.Equal(t, "localhost:8080", srv.HTTPAddress)
	assert.Equal(t, 30*time.Second, srv.RequestTimeout)

	cl := cfg.GetClientConfig()
	assert.Equal(t, "http://localhost:8080", cl.Endpoint)
	assert.Equal(t, 15*time.Second, cl.RequestTimeout)

	sn := cfg.GetSyncConfig()
	assert.Equal(t, 5*time.Minute, sn.Interval)
	assert.Equal(t, 3, sn.RetryAttempts)
	assert.Equal(t, "client-wins", sn.Strategy)
	assert.Equal(t, 2*time.Second, sn.SettleDelay)
}
