package utils

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// CompressionAlgorithm defines supported compression methods
type CompressionAlgorithm string

const (
	CompressionNone   CompressionAlgorithm = "identity"
	CompressionGzip   CompressionAlgorithm = "gzip"
	CompressionBrotli CompressionAlgorithm = "br"
)

// NegotiateCompression picks the encoding for an Accept-Encoding header,
// preferring brotli over gzip. q-values other than q=0 are ignored.
func NegotiateCompression(acceptEncoding string) CompressionAlgorithm {
	var gz, br bool
	for _, part := range strings.Split(acceptEncoding, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		name := strings.ToLower(strings.TrimSpace(fields[0]))
		refused := false
		for _, p := range fields[1:] {
			if q := strings.ReplaceAll(strings.TrimSpace(p), " ", ""); q == "q=0" || q == "q=0.0" {
				refused = true
			}
		}
		if refused {
			continue
		}
		switch name {
		case "br":
			br = true
		case "gzip":
			gz = true
		}
	}
	switch {
	case br:
		return CompressionBrotli
	case gz:
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// NewCompressWriter wraps w with the encoder for algorithm. Close flushes it.
func NewCompressWriter(w io.Writer, algorithm CompressionAlgorithm) (io.WriteCloser, error) {
	switch algorithm {
	case CompressionBrotli:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}
