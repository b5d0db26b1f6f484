package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm names a reversible text transform supported by the compressor.
type Algorithm string

const (
	// AlgorithmAuto lets the compressor pick an algorithm by payload size:
	// gzip below the threshold, zstd above it.
	AlgorithmAuto Algorithm = "auto"

	// AlgorithmGzip is the cheap, universally available transform.
	AlgorithmGzip Algorithm = "gzip"

	// AlgorithmZstd is the stronger transform preferred for larger payloads.
	AlgorithmZstd Algorithm = "zstd"
)

// autoThreshold is the payload size in bytes above which AlgorithmAuto
// switches from gzip to zstd.
const autoThreshold = 1024

// Magic bytes used to detect the algorithm of an unknown compressed payload.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Compressor applies reversible, self-describing text compression. Output is
// the raw URL-safe base64 encoding of the compressed frame, so compressed
// payloads remain plain text and can be embedded in envelope tokens.
//
// A Compressor is safe for concurrent use: the zstd encoder and decoder are
// created once and shared via their EncodeAll/DecodeAll APIs.
type Compressor struct {
	threshold int

	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCompressor constructs a Compressor with the default auto threshold.
// If the zstd codec cannot be initialized the compressor degrades to
// gzip-only: AlgorithmAuto then always picks gzip, mirroring the "stronger
// algorithm if the runtime exposes it, else fall back" selection rule.
func NewCompressor() *Compressor {
	c := &Compressor{threshold: autoThreshold}

	if enc, err := zstd.NewWriter(nil); err == nil {
		c.zstdEnc = enc
	}
	if dec, err := zstd.NewReader(nil); err == nil {
		c.zstdDec = dec
	}

	return c
}

// Compress transforms text into a base64-encoded compressed frame using the
// given algorithm. AlgorithmAuto selects gzip for payloads below the size
// threshold and zstd above it (falling back to gzip when zstd is unavailable).
func (c *Compressor) Compress(text string, algorithm Algorithm) (string, error) {
	alg := algorithm
	if alg == "" || alg == AlgorithmAuto {
		alg = c.selectAlgorithm(len(text))
	}

	var frame []byte
	switch alg {
	case AlgorithmGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write([]byte(text)); err != nil {
			return "", fmt.Errorf("gzip write: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("gzip close: %w", err)
		}
		frame = buf.Bytes()

	case AlgorithmZstd:
		if c.zstdEnc == nil {
			return "", fmt.Errorf("zstd encoder unavailable")
		}
		frame = c.zstdEnc.EncodeAll([]byte(text), nil)

	default:
		return "", fmt.Errorf("unknown compression algorithm %q", alg)
	}

	return base64.RawURLEncoding.EncodeToString(frame), nil
}

// Decompress reverses Compress. When algorithm is empty or AlgorithmAuto the
// algorithm is auto-detected: magic bytes are sniffed first, then every known
// algorithm is trial-decoded in order. A result is accepted only when the
// frame decodes cleanly (checksummed container formats make a wrong-algorithm
// decode fail rather than produce garbage). If no algorithm succeeds the call
// fails with [ErrDecompressionFailed].
func (c *Compressor) Decompress(text string, algorithm Algorithm) (string, error) {
	frame, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		// Tokens produced by older clients may carry padded base64.
		frame, err = base64.URLEncoding.DecodeString(text)
		if err != nil {
			return "", fmt.Errorf("%w: payload is not base64", ErrDecompressionFailed)
		}
	}

	if algorithm != "" && algorithm != AlgorithmAuto {
		out, err := c.inflate(frame, algorithm)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrDecompressionFailed, err)
		}
		return out, nil
	}

	for _, alg := range c.detectOrder(frame) {
		if out, err := c.inflate(frame, alg); err == nil {
			return out, nil
		}
	}

	return "", ErrDecompressionFailed
}

// DetectAlgorithm sniffs the compression algorithm of a base64-encoded frame
// by magic bytes. Returns the empty Algorithm when nothing matches.
func (c *Compressor) DetectAlgorithm(text string) Algorithm {
	frame, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return ""
	}
	switch {
	case bytes.HasPrefix(frame, gzipMagic):
		return AlgorithmGzip
	case bytes.HasPrefix(frame, zstdMagic):
		return AlgorithmZstd
	default:
		return ""
	}
}

func (c *Compressor) selectAlgorithm(size int) Algorithm {
	if size < c.threshold || c.zstdEnc == nil {
		return AlgorithmGzip
	}
	return AlgorithmZstd
}

// detectOrder puts the magic-byte match first, then the remaining algorithms
// as a trial fallback.
func (c *Compressor) detectOrder(frame []byte) []Algorithm {
	switch {
	case bytes.HasPrefix(frame, gzipMagic):
		return []Algorithm{AlgorithmGzip, AlgorithmZstd}
	case bytes.HasPrefix(frame, zstdMagic):
		return []Algorithm{AlgorithmZstd, AlgorithmGzip}
	default:
		return []Algorithm{AlgorithmGzip, AlgorithmZstd}
	}
}

func (c *Compressor) inflate(frame []byte, algorithm Algorithm) (string, error) {
	switch algorithm {
	case AlgorithmGzip:
		zr, err := gzip.NewReader(bytes.NewReader(frame))
		if err != nil {
			return "", fmt.Errorf("gzip open: %w", err)
		}
		defer zr.Close()

		out, err := io.ReadAll(zr)
		if err != nil {
			return "", fmt.Errorf("gzip inflate: %w", err)
		}
		return string(out), nil

	case AlgorithmZstd:
		if c.zstdDec == nil {
			return "", fmt.Errorf("zstd decoder unavailable")
		}
		out, err := c.zstdDec.DecodeAll(frame, nil)
		if err != nil {
			return "", fmt.Errorf("zstd inflate: %w", err)
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("unknown compression algorithm %q", algorithm)
	}
}
