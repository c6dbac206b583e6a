// Package media persists post photos and videos and resolves their references back to bytes.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var mediaLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	mediaLogger = l
}

// Store copies a caller-supplied source (a local file path) into durable storage
// and returns an opaque reference to it.
type Store interface {
	Materialize(ctx context.Context, source string) (string, error)
}

// Resolver opens a reference produced by the matching Store.
type Resolver interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

type Backend interface {
	Store
	Resolver
}

var (
	ErrNoMedia = errors.New("no media reference")
	// ErrUnknownRef is returned for references that this backend did not produce.
	ErrUnknownRef = errors.New("unknown media reference")
)

type MaterializationError struct {
	Source string
	Err    error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("failed to materialize media %q: %v", e.Source, e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}

const (
	fallbackExtension = ".jpg"
	fileTimeLayout    = "20060102_150405"
)

// FileName builds POST_<yyyyMMdd_HHmmss>_<uuid8><ext>.
func FileName(now time.Time, ext string) string {
	return "POST_" + now.Format(fileTimeLayout) + "_" + uuid.NewString()[:8] + ext
}

// Extension picks the file suffix for sniffed content: the image or video
// extension when known, .mp4 for other video, .jpg for everything else.
func Extension(m *mimetype.MIME) string {
	if m == nil {
		return fallbackExtension
	}
	kind := m.String()
	isImage := strings.HasPrefix(kind, "image/")
	isVideo := strings.HasPrefix(kind, "video/")
	if ext := m.Extension(); ext != "" && (isImage || isVideo) {
		return ext
	}
	if isVideo {
		return ".mp4"
	}
	return fallbackExtension
}

// contentType strips mimetype parameters such as charset.
func contentType(m *mimetype.MIME) string {
	if m == nil {
		return "application/octet-stream"
	}
	kind, _, _ := strings.Cut(m.String(), ";")
	return kind
}
