// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// saltLength is the size of the random per-call KDF salt in bytes.
const saltLength = 16

// Cipher provides password-derived authenticated encryption of text.
//
// Keys are derived from the password with Argon2id using a random per-call
// salt; the payload is sealed with AES-256-GCM under a random nonce. The
// output embeds salt ‖ nonce ‖ ciphertext (base64, URL-safe, no padding) so
// decryption is self-describing given only the password. A wrong password
// fails deterministically on the authentication tag — the cipher never
// returns decoded-but-wrong bytes.
type Cipher struct {
	// Argon2id tuning parameters. Stored in the struct so they can be
	// adjusted per deployment target (e.g. mobile vs. desktop).
	argonTime    uint32
	argonMemory  uint32
	argonThreads uint8
	argonKeyLen  uint32
}

// NewCipher constructs a [Cipher] with the Argon2id parameters recommended
// by OWASP (2024):
//   - time cost:   1 iteration
//   - memory cost: 64 MiB
//   - parallelism: 4 threads
//   - key length:  32 bytes (256 bits)
func NewCipher() *Cipher {
	return &Cipher{
		argonTime:    1,
		argonMemory:  64 * 1024, // 64 MiB
		argonThreads: 4,
		argonKeyLen:  32, // 256 bits
	}
}

// Encrypt seals text under a key derived from password. Returns the base64
// blob salt ‖ nonce ‖ ciphertext, or [ErrMissingPassword] when password is
// empty.
func (c *Cipher) Encrypt(text, password string) (string, error) {
	if password == "" {
		return "", ErrMissingPassword
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := c.buildAEAD(password, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	// Blob layout: salt || nonce || ciphertext. Decrypt splits in the same
	// order, so the only shared secret is the password.
	ciphertext := gcm.Seal(nil, nonce, []byte(text), nil)
	blob := append(append(salt, nonce...), ciphertext...)

	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Returns [ErrMissingPassword] when password is
// empty, [ErrDecryptionFailed] when the blob is truncated, the password is
// wrong, or the ciphertext was tampered with (authentication-tag mismatch).
func (c *Cipher) Decrypt(encrypted, password string) (string, error) {
	if password == "" {
		return "", ErrMissingPassword
	}

	blob, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: payload is not base64", ErrDecryptionFailed)
	}

	if len(blob) < saltLength {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	salt, rest := blob[:saltLength], blob[saltLength:]

	gcm, err := c.buildAEAD(password, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	// An auth-tag error here almost always means the wrong password was
	// supplied, deriving a wrong key.
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// buildAEAD derives a 256-bit key from password and salt via Argon2id and
// wraps it in an AES-GCM AEAD.
func (c *Cipher) buildAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(
		[]byte(password),
		salt,
		c.argonTime,
		c.argonMemory,
		c.argonThreads,
		c.argonKeyLen,
	)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return gcm, nil
}
