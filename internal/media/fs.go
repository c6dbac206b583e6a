package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// FSStore keeps media as flat files in one directory. References are the bare file names.
type FSStore struct {
	dir string
	now func() time.Time
}

var _ Backend = (*FSStore)(nil)

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &FSStore{dir: dir, now: time.Now}, nil
}

func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) Materialize(ctx context.Context, source string) (string, error) {
	ref, err := s.materialize(ctx, source)
	if err != nil {
		mediaLogger.Error().Err(err).Str("source", source).Msg("Media copy failed")
		return "", &MaterializationError{Source: source, Err: err}
	}
	mediaLogger.Debug().Str("source", source).Str("ref", ref).Msg("Media stored")
	return ref, nil
}

func (s *FSStore) materialize(ctx context.Context, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	in, err := os.Open(source)
	if err != nil {
		return "", err
	}
	defer in.Close()

	kind, err := mimetype.DetectReader(in)
	if err != nil {
		return "", fmt.Errorf("failed to sniff content type: %w", err)
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	name := FileName(s.now(), Extension(kind))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to copy media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", err
	}
	return name, nil
}

func (s *FSStore) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if ref == "" {
		return nil, "", ErrNoMedia
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}

	path := filepath.Join(s.dir, ref)
	kind, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, contentType(kind), nil
}
