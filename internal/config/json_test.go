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

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "duration string", input: `"1h30m"`, want: 90 * time.Minute},
		{name: "seconds string", input: `"45s"`, want: 45 * time.Second},
		{name: "nanosecond number", input: `1000000000`, want: time.Second},
		{name: "garbage string", input: `"tomorrow"`, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(test.input), &d)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, time.Duration(d))
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(out))
}

func TestParseJSON_FullFile(t *testing.T) {
	path := writeTempJSONConfig(t, map[string]any{
		"app": map[string]any{
			"token_sign_key": "key",
			"token_duration": "12h",
			"version":        "1.2.3",
		},
		"client": map[string]any{
			"endpoint":        "http://sync.local",
			"token":           "tok",
			"password":        "pw",
			"request_timeout": "10s",
		},
		"storage": map[string]any{
			"db":    map[string]any{"dsn": "state.db"},
			"cache": map[string]any{"sqlite_path": "/tmp/c.db", "prefix": "app1:", "default_ttl": "2h"},
		},
		"sync": map[string]any{
			"interval": "10m",
			"strategy": "merge",
			"encrypt":  true,
		},
		"server": map[string]any{"http_address": "localhost:8088"},
	})

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.App.TokenSignKey)
	assert.Equal(t, 12*time.Hour, cfg.App.TokenDuration)
	assert.Equal(t, "1.2.3", cfg.App.Version)
	assert.Equal(t, "http://sync.local", cfg.Client.Endpoint)
	assert.Equal(t, "pw", cfg.Client.Password)
	assert.Equal(t, 10*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, "state.db", cfg.Storage.DB.DSN)
	assert.Equal(t, "/tmp/c.db", cfg.Storage.Cache.SQLitePath)
	assert.Equal(t, "app1:", cfg.Storage.Cache.Prefix)
	assert.Equal(t, 2*time.Hour, cfg.Storage.Cache.DefaultTTL)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "merge", cfg.Sync.Strategy)
	assert.True(t, cfg.Sync.Encrypt)
	assert.Equal(t, "localhost:8088", cfg.Server.HTTPAddress)
	assert.Empty(t, cfg.JSONFilePath, "parsed config never re-points at another file")
}

func TestParseJSON_Malformed(t *testing.T) {
	// перезаписываем файл заведомо битым содержимым
	path := writeTempJSONConfig(t, map[string]any{})
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := parseJSON(path)
	assert.Error(t, err)
}

func TestParseJSON_MissingFile(t *testing.T) {
	_, err := parseJSON("/no/such/config.json")
	assert.Error(t, err)
}
