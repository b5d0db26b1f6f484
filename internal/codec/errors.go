package codec

import "errors"

// Sentinel errors returned by the encoding pipeline. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrMalformedToken is returned when a token cannot be parsed into an
	// envelope shape or its inner payload is not valid JSON.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnsupportedVersion is returned when strict validation is requested
	// and the envelope's format version is not recognized by this decoder.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrMissingPassword is returned when encryption is requested without a
	// password, or an envelope claims encryption but no password was supplied.
	ErrMissingPassword = errors.New("missing password")

	// ErrDecryptionFailed is returned on wrong-password or tampered payloads.
	// The authenticated cipher never returns decoded-but-wrong bytes.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrDecompressionFailed is returned when an envelope claims compression
	// but no known algorithm can inflate the payload.
	ErrDecompressionFailed = errors.New("decompression failed")
)
