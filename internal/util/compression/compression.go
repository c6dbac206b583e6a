// Package compression wraps the codecs used for post exports.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)

	// Extension is the file suffix for compressed output, including the dot.
	Extension() string
}

var (
	_ Compressor = ZstdCompressor{}
	_ Compressor = GzipCompressor{}
)

// ForFormat returns the compressor registered under name ("zstd" or "gzip").
func ForFormat(name string) (Compressor, error) {
	switch name {
	case "zstd", "":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression format %q", name)
	}
}
