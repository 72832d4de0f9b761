package cache

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"
)

// Compression algorithms for stored result blobs.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// compressionMinSize is the payload size below which compression is skipped.
const compressionMinSize = 4096

// Stored blobs are self-describing: a compressed payload carries an algorithm
// prefix followed by base64, and anything without a known prefix is plain
// JSON. This keeps the result column TEXT regardless of algorithm.
const (
	prefixSnappy = "snappy:"
	prefixLZ4    = "lz4:"
)

// encodeBlob prepares a serialized result for storage. Small payloads and the
// "none" algorithm are stored verbatim.
func encodeBlob(raw []byte, algorithm string) (string, error) {
	if len(raw) < compressionMinSize {
		return string(raw), nil
	}

	switch algorithm {
	case CompressionSnappy:
		compressed := snappy.Encode(nil, raw)
		return prefixSnappy + base64.StdEncoding.EncodeToString(compressed), nil

	case CompressionLZ4:
		// LZ4 stream format embeds the uncompressed size.
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			w.Close()
			return "", fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return prefixLZ4 + base64.StdEncoding.EncodeToString(buf.Bytes()), nil

	default:
		return string(raw), nil
	}
}

// decodeBlob reverses encodeBlob based on the stored prefix.
func decodeBlob(stored string) ([]byte, error) {
	switch {
	case strings.HasPrefix(stored, prefixSnappy):
		compressed, err := base64.StdEncoding.DecodeString(stored[len(prefixSnappy):])
		if err != nil {
			return nil, fmt.Errorf("%w: snappy base64: %v", ErrDecompression, err)
		}
		raw, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrDecompression, err)
		}
		return raw, nil

	case strings.HasPrefix(stored, prefixLZ4):
		compressed, err := base64.StdEncoding.DecodeString(stored[len(prefixLZ4):])
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 base64: %v", ErrDecompression, err)
		}
		raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(compressed)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecompression, err)
		}
		return raw, nil

	default:
		return []byte(stored), nil
	}
}
