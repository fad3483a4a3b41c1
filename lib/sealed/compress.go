// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/fleet-secrets/lib/secret"
)

// Compression identifies how a secret's plaintext was compressed before
// it was encrypted. Large secrets (certificate bundles, keytabs,
// database dumps for seeding) are usually compressed by the evaluator;
// small ones are not worth it.
type Compression string

const (
	// CompressionNone means the decrypted payload is the secret itself.
	CompressionNone Compression = "none"

	// CompressionZstd means the decrypted payload is a zstd frame.
	CompressionZstd Compression = "zstd"

	// CompressionLZ4 means the decrypted payload is an LZ4 frame.
	CompressionLZ4 Compression = "lz4"
)

// ParseCompression parses a manifest compression name. The empty string
// means CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("unknown compression %q (expected none, zstd, or lz4)", name)
	}
}

// decompress expands compressed into a new protected buffer. At most
// MaxPlaintextSize bytes of output are accepted, which also bounds
// decompression bombs. The caller still owns (and closes) compressed.
// The decoder's own window buffers are not zeroed.
func decompress(compressed *secret.Buffer, compression Compression) (*secret.Buffer, error) {
	source := bytes.NewReader(compressed.Bytes())

	switch compression {
	case CompressionZstd:
		decoder, err := zstd.NewReader(source,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxPlaintextSize))
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		return secret.NewFromReader(decoder, MaxPlaintextSize)

	case CompressionLZ4:
		return secret.NewFromReader(lz4.NewReader(source), MaxPlaintextSize)

	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
}

// compress is the inverse of decompress, used by Encrypt. Plaintext on
// this side belongs to the caller (fixture tooling), so ordinary heap
// buffers are fine.
func compress(plaintext []byte, compression Compression) ([]byte, error) {
	var output bytes.Buffer
	var writer io.WriteCloser

	switch compression {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(&output, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		writer = encoder
	case CompressionLZ4:
		writer = lz4.NewWriter(&output)
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}

	if _, err := writer.Write(plaintext); err != nil {
		writer.Close()
		return nil, fmt.Errorf("compressing with %s: %w", compression, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finishing %s stream: %w", compression, err)
	}
	return output.Bytes(), nil
}
