// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package codec implements the layered encoding pipeline that turns an
// arbitrary JSON-serializable value into a compact, versioned, optionally
// compressed and encrypted URL-safe text token, and reverses the process —
// robustly, even when the token was produced by an unknown combination of
// those layers.
//
// Layer order is fixed: serialize → compress → encrypt on encode, and the
// exact reverse on decode. Compression is applied before encryption because
// compressing ciphertext is wasted work and can leak length information.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-state-keeper/models"
)

// EncodeOptions controls how a value is rendered into a token.
type EncodeOptions struct {
	// Compress applies a compression strategy to the serialized payload.
	Compress bool

	// CompressAlgorithm overrides the algorithm; empty means auto-selection.
	CompressAlgorithm Algorithm

	// Encrypt seals the payload under Password. Requesting encryption
	// without a password fails with ErrMissingPassword.
	Encrypt bool

	// Password is the secret for the cipher strategy.
	Password string

	// FormatVersion overrides the envelope version; zero means current.
	FormatVersion int
}

// DecodeOptions controls how a token is decoded.
type DecodeOptions struct {
	// Password is required when the envelope claims encryption.
	Password string

	// StrictVersion makes decoding fail closed on an unknown format
	// version instead of attempting a best-effort decode.
	StrictVersion bool
}

// EnvelopeCodec is the only component aware of the on-wire token format. It
// composes the compression and cipher strategies into a single encode/decode
// surface.
type EnvelopeCodec struct {
	compressor *Compressor
	cipher     *Cipher
}

// NewEnvelopeCodec constructs an EnvelopeCodec with default compression and
// cipher strategies.
func NewEnvelopeCodec() *EnvelopeCodec {
	return &EnvelopeCodec{
		compressor: NewCompressor(),
		cipher:     NewCipher(),
	}
}

// Compressor exposes the codec's compression strategy for callers that need
// raw compress/decompress access (e.g. the offline cache's legacy path).
func (c *EnvelopeCodec) Compressor() *Compressor { return c.compressor }

// Cipher exposes the codec's cipher strategy.
func (c *EnvelopeCodec) Cipher() *Cipher { return c.cipher }

// Encode serializes value to canonical JSON, optionally compresses and then
// encrypts it, wraps the result in an [models.Envelope], and renders the
// envelope as a single URL-safe base64 token without padding. Tokens at
// format version 2 additionally carry the "e_"/"c_"/"ec_" prefix so peers can
// branch on the layers without a full parse.
func (c *EnvelopeCodec) Encode(value any, opts EncodeOptions) (string, error) {
	canonical, err := CanonicalJSON(value)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	payload := string(canonical)

	if opts.Compress {
		payload, err = c.compressor.Compress(payload, opts.CompressAlgorithm)
		if err != nil {
			return "", fmt.Errorf("encode: %w", err)
		}
	}

	if opts.Encrypt {
		if opts.Password == "" {
			return "", ErrMissingPassword
		}
		payload, err = c.cipher.Encrypt(payload, opts.Password)
		if err != nil {
			return "", fmt.Errorf("encode: %w", err)
		}
	}

	version := opts.FormatVersion
	if version == 0 {
		version = models.FormatVersionCurrent
	}

	env := models.Envelope{
		FormatVersion: version,
		Data:          payload,
		Compressed:    opts.Compress,
		Encrypted:     opts.Encrypt,
	}

	wrapped, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(wrapped)
	if version >= models.FormatVersionCurrent {
		token = env.Prefix() + token
	}

	return token, nil
}

// Decode parses token into an envelope, reverses the encryption and
// compression layers in that order (mirroring encode order in reverse), and
// unmarshals the inner canonical JSON into a value.
//
// Failure modes: [ErrMalformedToken] when the token does not parse into an
// envelope shape, [ErrUnsupportedVersion] when opts.StrictVersion is set and
// the version is unknown, [ErrMissingPassword] when the envelope claims
// encryption but no password was supplied, [ErrDecryptionFailed] on
// wrong-password or tampered payloads, and [ErrDecompressionFailed] when
// compression is claimed but inflate fails.
func (c *EnvelopeCodec) Decode(token string, opts DecodeOptions) (any, error) {
	env, err := c.parseEnvelope(token)
	if err != nil {
		return nil, err
	}

	if !supportedVersion(env.FormatVersion) && opts.StrictVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.FormatVersion)
	}

	return c.openEnvelope(env, opts.Password)
}

// DecodeLenient decodes a token of unknown provenance: one produced by a peer
// with a different version or capability set. It tries an explicit, ordered
// list of decode strategies and returns the first result that yields valid
// JSON:
//
//  1. regular envelope decode (version check relaxed)
//  2. the raw token as already-valid JSON
//  3. the base64-decoded token as valid JSON
//  4. each known compression algorithm applied to the token body
//  5. heuristic cleanup of near-JSON text (quote normalization,
//     trailing-comma removal)
//
// Authenticated ciphertext is never "repaired": when a parsed envelope claims
// encryption, a failed tag check aborts the lenient path immediately rather
// than falling through to strategies that would mangle the ciphertext.
func (c *EnvelopeCodec) DecodeLenient(token string, opts DecodeOptions) (any, error) {
	if env, err := c.parseEnvelope(token); err == nil {
		value, err := c.openEnvelope(env, opts.Password)
		if err == nil {
			return value, nil
		}
		// Fail closed on crypto errors: the remaining strategies operate on
		// plaintext-shaped payloads and must not touch broken ciphertext.
		if env.Encrypted {
			return nil, err
		}
	}

	strategies := []struct {
		name string
		fn   func(string) (any, bool)
	}{
		{"raw-json", c.tryRawJSON},
		{"base64-json", c.tryBase64JSON},
		{"decompress", c.tryDecompress},
		{"near-json-cleanup", c.tryNearJSON},
	}

	for _, s := range strategies {
		if value, ok := s.fn(token); ok {
			return value, nil
		}
	}

	return nil, fmt.Errorf("%w: no decode strategy succeeded", ErrMalformedToken)
}

// parseEnvelope splits a known prefix off the token, base64-decodes the rest,
// and unmarshals it into an envelope. The prefix flags must agree with the
// envelope body; a prefix-less body is accepted for legacy (version 1) tokens.
func (c *EnvelopeCodec) parseEnvelope(token string) (models.Envelope, error) {
	body := token
	var prefixEncrypted, prefixCompressed, hasPrefix bool

	switch {
	case strings.HasPrefix(token, models.PrefixEncryptedCompressed):
		body = token[len(models.PrefixEncryptedCompressed):]
		prefixEncrypted, prefixCompressed, hasPrefix = true, true, true
	case strings.HasPrefix(token, models.PrefixEncrypted):
		body = token[len(models.PrefixEncrypted):]
		prefixEncrypted, hasPrefix = true, true
	case strings.HasPrefix(token, models.PrefixCompressed):
		body = token[len(models.PrefixCompressed):]
		prefixCompressed, hasPrefix = true, true
	}

	wrapped, err := decodeBase64(body)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("%w: token is not base64", ErrMalformedToken)
	}

	var env models.Envelope
	if err = json.Unmarshal(wrapped, &env); err != nil {
		return models.Envelope{}, fmt.Errorf("%w: token does not wrap an envelope", ErrMalformedToken)
	}
	if env.FormatVersion == 0 || env.Data == "" {
		return models.Envelope{}, fmt.Errorf("%w: envelope shape incomplete", ErrMalformedToken)
	}

	if hasPrefix && (env.Encrypted != prefixEncrypted || env.Compressed != prefixCompressed) {
		return models.Envelope{}, fmt.Errorf("%w: prefix flags disagree with envelope", ErrMalformedToken)
	}

	return env, nil
}

// openEnvelope reverses the envelope's layers: decrypt first, then
// decompress, then parse the canonical JSON payload.
func (c *EnvelopeCodec) openEnvelope(env models.Envelope, password string) (any, error) {
	payload := env.Data

	if env.Encrypted {
		if password == "" {
			return nil, ErrMissingPassword
		}
		var err error
		payload, err = c.cipher.Decrypt(payload, password)
		if err != nil {
			return nil, err
		}
	}

	if env.Compressed {
		var err error
		payload, err = c.compressor.Decompress(payload, AlgorithmAuto)
		if err != nil {
			return nil, err
		}
	}

	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return nil, fmt.Errorf("%w: inner payload is not valid JSON", ErrMalformedToken)
	}

	return value, nil
}

func (c *EnvelopeCodec) tryRawJSON(token string) (any, bool) {
	return parseJSONValue(token)
}

func (c *EnvelopeCodec) tryBase64JSON(token string) (any, bool) {
	decoded, err := decodeBase64(token)
	if err != nil {
		return nil, false
	}
	return parseJSONValue(string(decoded))
}

func (c *EnvelopeCodec) tryDecompress(token string) (any, bool) {
	for _, alg := range []Algorithm{AlgorithmGzip, AlgorithmZstd} {
		inflated, err := c.compressor.Decompress(token, alg)
		if err != nil {
			continue
		}
		if value, ok := parseJSONValue(inflated); ok {
			return value, true
		}
	}
	return nil, false
}

// tryNearJSON repairs near-JSON text produced by sloppy peers: single-quoted
// strings are normalized to double quotes and trailing commas before a
// closing bracket are dropped. The cleaned text must still parse as JSON.
func (c *EnvelopeCodec) tryNearJSON(token string) (any, bool) {
	cleaned := strings.ReplaceAll(token, "'", `"`)
	cleaned = strings.ReplaceAll(cleaned, ",}", "}")
	cleaned = strings.ReplaceAll(cleaned, ",]", "]")
	if cleaned == token {
		return nil, false
	}
	return parseJSONValue(cleaned)
}

// parseJSONValue accepts only JSON documents (objects or arrays), not bare
// scalars: lenient decoding must not mistake arbitrary text like "42" for a
// recovered state value.
func parseJSONValue(text string) (any, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, false
	}

	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return nil, false
	}
	return value, true
}

// decodeBase64 accepts both padded and unpadded URL-safe base64 so tokens
// survive peers that re-pad them.
func decodeBase64(s string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func supportedVersion(v int) bool {
	return v == models.FormatVersionLegacy || v == models.FormatVersionCurrent
}
