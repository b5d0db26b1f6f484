// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON-friendly field
// types: durations are accepted both as nanosecond numbers and as strings
// like "30s".
type StructuredJSONConfig struct {
	App struct {
		TokenSignKey  string   `json:"token_sign_key"`
		TokenDuration Duration `json:"token_duration"`
		Version       string   `json:"version"`
	} `json:"app,omitempty"`

	Client struct {
		Endpoint       string   `json:"endpoint"`
		Token          string   `json:"token"`
		Password       string   `json:"password"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"client,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`

		Cache struct {
			SQLitePath string   `json:"sqlite_path"`
			FilePath   string   `json:"file_path"`
			Prefix     string   `json:"prefix"`
			DefaultTTL Duration `json:"default_ttl"`
		} `json:"cache,omitempty"`
	} `json:"storage,omitempty"`

	Sync struct {
		Interval      Duration `json:"interval"`
		RetryAttempts int      `json:"retry_attempts"`
		Strategy      string   `json:"strategy"`
		SettleDelay   Duration `json:"settle_delay"`
		Compress      bool     `json:"compress"`
		Encrypt       bool     `json:"encrypt"`
	} `json:"sync,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"server,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			TokenSignKey:  jsonCfg.App.TokenSignKey,
			TokenDuration: time.Duration(jsonCfg.App.TokenDuration),
			Version:       jsonCfg.App.Version,
		},
		Client: Client{
			Endpoint:       jsonCfg.Client.Endpoint,
			Token:          jsonCfg.Client.Token,
			Password:       jsonCfg.Client.Password,
			RequestTimeout: time.Duration(jsonCfg.Client.RequestTimeout),
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
			Cache: Cache{
				SQLitePath: jsonCfg.Storage.Cache.SQLitePath,
				FilePath:   jsonCfg.Storage.Cache.FilePath,
				Prefix:     jsonCfg.Storage.Cache.Prefix,
				DefaultTTL: time.Duration(jsonCfg.Storage.Cache.DefaultTTL),
			},
		},
		Sync: Sync{
			Interval:      time.Duration(jsonCfg.Sync.Interval),
			RetryAttempts: jsonCfg.Sync.RetryAttempts,
			Strategy:      jsonCfg.Sync.Strategy,
			SettleDelay:   time.Duration(jsonCfg.Sync.SettleDelay),
			Compress:      jsonCfg.Sync.Compress,
			Encrypt:       jsonCfg.Sync.Encrypt,
		},
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
