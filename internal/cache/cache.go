// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package cache implements the offline cache manager: it persists envelope
// tokens through the pinned storage backend, owns TTL bookkeeping, and keeps
// long-lived stores decodable across envelope format generations.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-state-keeper/internal/codec"
	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/internal/store"
)

// SaveOptions controls a single Save call.
type SaveOptions struct {
	// TTL bounds the record's lifetime; zero falls back to the manager's
	// default, negative disables expiry for this record.
	TTL time.Duration

	// Compress applies the compression strategy to the payload.
	Compress bool

	// Encrypt seals the payload under Password.
	Encrypt bool

	// Password is the secret for encryption.
	Password string
}

// LoadOptions controls a single Load call.
type LoadOptions struct {
	// Password decrypts records saved with encryption.
	Password string
}

// Manager is the offline cache manager. It is the only writer of stored
// records: values go in as envelope tokens built by the codec and come back
// out decoded, with expiry checked on every read.
type Manager struct {
	chain      *store.Chain
	codec      *codec.EnvelopeCodec
	defaultTTL time.Duration
	logger     *logger.Logger
}

// NewManager constructs a cache manager over the given fallback chain.
// defaultTTL applies to records saved without an explicit TTL; zero means
// records never expire by default.
func NewManager(chain *store.Chain, envCodec *codec.EnvelopeCodec, defaultTTL time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		chain:      chain,
		codec:      envCodec,
		defaultTTL: defaultTTL,
		logger:     log,
	}
}

// Save encodes value into an envelope token per opts and writes it through
// the pinned backend under key.
func (m *Manager) Save(ctx context.Context, key string, value any, opts SaveOptions) error {
	backend, err := m.chain.Backend(ctx)
	if err != nil {
		return err
	}

	token, err := m.codec.Encode(value, codec.EncodeOptions{
		Compress: opts.Compress,
		Encrypt:  opts.Encrypt,
		Password: opts.Password,
	})
	if err != nil {
		return fmt.Errorf("cache save %q: %w", key, err)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	if ttl < 0 {
		ttl = 0
	}

	if err = backend.Set(ctx, key, token, ttl); err != nil {
		return fmt.Errorf("cache save %q: %w", key, err)
	}

	m.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Bool("compressed", opts.Compress).
		Bool("encrypted", opts.Encrypt).
		Msg("snapshot cached")
	return nil
}

// Load reads the record under key and decodes it back into a value. The
// record's envelope flags drive decryption and decompression; records written
// before the envelope-prefix scheme fall back to the lenient decode path, so
// long-lived stores stay readable. Returns ok=false when the key is absent or
// expired.
func (m *Manager) Load(ctx context.Context, key string, opts LoadOptions) (any, bool, error) {
	backend, err := m.chain.Backend(ctx)
	if err != nil {
		return nil, false, err
	}

	record, ok, err := backend.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache load %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	decodeOpts := codec.DecodeOptions{Password: opts.Password}
	value, err := m.codec.Decode(record.Payload, decodeOpts)
	if err == nil {
		return value, true, nil
	}
	// Crypto failures are real errors; only shape mismatches route to the
	// legacy branch.
	if !errors.Is(err, codec.ErrMalformedToken) {
		return nil, false, fmt.Errorf("cache load %q: %w", key, err)
	}

	value, lenientErr := m.codec.DecodeLenient(record.Payload, decodeOpts)
	if lenientErr != nil {
		// Keep both failures: the strict-path error alone would mask why the
		// legacy branch could not decode the record either.
		return nil, false, fmt.Errorf("cache load %q: %w", key, errors.Join(err, lenientErr))
	}

	m.logger.Debug().Str("key", key).Msg("loaded legacy-format cache record")
	return value, true, nil
}

// Clear removes the record under key, or every record in the namespace when
// key is empty.
func (m *Manager) Clear(ctx context.Context, key string) error {
	backend, err := m.chain.Backend(ctx)
	if err != nil {
		return err
	}

	if key == "" {
		return backend.Clear(ctx)
	}
	return backend.Delete(ctx, key)
}

// ListKeys returns every live (non-expired) caller key in the namespace.
func (m *Manager) ListKeys(ctx context.Context) ([]string, error) {
	backend, err := m.chain.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Keys(ctx)
}
