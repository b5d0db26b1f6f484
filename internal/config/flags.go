// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags from the process arguments.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-d database DSN
//	-endpoint client sync endpoint base URL
//	-token client bearer token
//	-cache-sqlite sqlite cache file path
//	-cache-file json cache file path
//	-c/-config json file path with configs
//	-token-sign-key token signing key
//	-token-duration token duration (e.g., "24h")
//	-sync-interval auto-sync interval (e.g., "5m")
//	-sync-strategy conflict strategy name
//	-request-timeout request timeout (e.g., "30s", "1m")
func ParseFlags() (*StructuredConfig, error) {
	return parseFlags(os.Args[1:])
}

func parseFlags(args []string) (*StructuredConfig, error) {
	fs := flag.NewFlagSet("state-keeper", flag.ContinueOnError)

	var serverAddress NetAddress
	var databaseDSN string
	var endpoint string
	var token string
	var cacheSQLitePath string
	var cacheFilePath string
	var jsonConfigPath string
	var tokenSignKey string
	var tokenDuration time.Duration
	var syncInterval time.Duration
	var syncStrategy string
	var requestTimeout time.Duration

	fs.Var(&serverAddress, "a", "Net address host:port")
	fs.StringVar(&databaseDSN, "d", "", "Database DSN")
	fs.StringVar(&endpoint, "endpoint", "", "Sync server base URL")
	fs.StringVar(&token, "token", "", "Client bearer token")
	fs.StringVar(&cacheSQLitePath, "cache-sqlite", "", "SQLite cache file path")
	fs.StringVar(&cacheFilePath, "cache-file", "", "JSON cache file path")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&tokenSignKey, "token-sign-key", "", "Token signing key")
	fs.DurationVar(&tokenDuration, "token-duration", 0, "Token duration (e.g., 24h)")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Auto-sync interval (e.g., 5m)")
	fs.StringVar(&syncStrategy, "sync-strategy", "", "Conflict strategy name")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &StructuredConfig{
		App: App{
			TokenSignKey:  tokenSignKey,
			TokenDuration: tokenDuration,
		},
		Client: Client{
			Endpoint: endpoint,
			Token:    token,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
			Cache: Cache{
				SQLitePath: cacheSQLitePath,
				FilePath:   cacheFilePath,
			},
		},
		Sync: Sync{
			Interval: syncInterval,
			Strategy: syncStrategy,
		},
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
		},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
