package clickhouse

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// SupportedCompressions lists the request body encodings an insert may use.
func SupportedCompressions() []string {
	return []string{"none", "gzip", "zstd", "lz4"}
}

// contentEncoding maps a configured compression name to the Content-Encoding
// header value. "none" and "" map to no header.
func contentEncoding(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "none", "uncompressed":
		return "", nil
	case "gzip":
		return "gzip", nil
	case "zstd":
		return "zstd", nil
	case "lz4":
		return "lz4", nil
	default:
		return "", fmt.Errorf("unsupported clickhouse compression: %s", name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// WrapWriter returns a writer that encodes the insert body to match the
// request's Content-Encoding. Close must be called to flush the encoder; it
// does not close w.
func (i *Insert) WrapWriter(w io.Writer) (io.WriteCloser, error) {
	return wrapWriter(i.encoding, w)
}

func wrapWriter(encoding string, w io.Writer) (io.WriteCloser, error) {
	switch encoding {
	case "":
		return nopWriteCloser{w}, nil
	case "gzip":
		return gzip.NewWriter(w), nil
	case "zstd":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	case "lz4":
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding: %s", encoding)
	}
}

// Encoding returns the request's Content-Encoding, empty when uncompressed.
func (i *Insert) Encoding() string { return i.encoding }
