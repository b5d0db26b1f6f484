// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Format versions accepted by the envelope decoder. FormatVersionLegacy is
// the original wrapped-object form without a token prefix; FormatVersionCurrent
// adds the "e_"/"c_"/"ec_" prefix scheme on the outer token.
const (
	FormatVersionLegacy  = 1
	FormatVersionCurrent = 2
)

// Token prefixes that tag encryption/compression directly on the outer token,
// allowing decoders to branch without a full parse. A prefix-less token is
// either plain or a legacy (version 1) envelope.
const (
	PrefixEncrypted           = "e_"
	PrefixCompressed          = "c_"
	PrefixEncryptedCompressed = "ec_"
)

// Envelope is the on-wire unit produced by the encoding pipeline. It wraps the
// (possibly compressed, possibly encrypted) payload together with the format
// version and the flags needed to reverse the transformation. An Envelope is
// constructed once at encode time, never mutated, and consumed once at decode
// time.
type Envelope struct {
	// FormatVersion identifies the on-wire layout. Decoders reject unknown
	// versions when strict validation is requested.
	FormatVersion int `json:"formatVersion"`

	// Data is the inner payload as text: canonical JSON, optionally
	// compressed and/or encrypted, in that order.
	Data string `json:"data"`

	// Compressed reports whether Data was passed through a compression
	// strategy before (optional) encryption.
	Compressed bool `json:"compressed"`

	// Encrypted reports whether Data is an authenticated ciphertext.
	// Decoding an encrypted envelope without a password fails.
	Encrypted bool `json:"encrypted"`
}

// Prefix returns the outer-token prefix matching the envelope's flags, or the
// empty string when the payload is neither compressed nor encrypted.
func (e Envelope) Prefix() string {
	switch {
	case e.Encrypted && e.Compressed:
		return PrefixEncryptedCompressed
	case e.Encrypted:
		return PrefixEncrypted
	case e.Compressed:
		return PrefixCompressed
	default:
		return ""
	}
}
