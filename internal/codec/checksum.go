package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializes v to its canonical JSON form: the value is
// marshalled, round-tripped through an untyped decode, and marshalled again so
// that object keys are emitted in sorted order regardless of how v was built
// (struct field order, map insertion order, etc.). Two values that encode to
// the same logical JSON document always produce identical bytes.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	var untyped any
	if err = json.Unmarshal(raw, &untyped); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}

	canonical, err := json.Marshal(untyped)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical form: %w", err)
	}

	return canonical, nil
}

// Checksum computes the hex-encoded SHA-256 digest of v's canonical JSON
// form. Snapshots with equal checksums are treated as equivalent by the sync
// engine, so the digest must be deterministic for logically equal values.
func Checksum(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
