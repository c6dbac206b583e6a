package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
)

var fileNamePattern = regexp.MustCompile(`^POST_\d{8}_\d{6}_[0-9a-f]{8}\.[a-z0-9]+$`)

func writeSource(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	return path
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 30, 5, 0, time.UTC)
	name := FileName(now, ".png")

	if !strings.HasPrefix(name, "POST_20240601_143005_") {
		t.Errorf("Unexpected prefix in %q", name)
	}
	if !fileNamePattern.MatchString(name) {
		t.Errorf("FileName() = %q does not match %s", name, fileNamePattern)
	}
	if FileName(now, ".png") == name {
		t.Error("Expected names taken in the same second to differ")
	}
}

func TestExtension(t *testing.T) {
	testCases := []struct {
		name     string
		content  []byte
		expected string
	}{
		{name: "PNG", content: pngBytes, expected: ".png"},
		{name: "GIF", content: gifBytes, expected: ".gif"},
		{name: "Text falls back", content: []byte("just some words"), expected: ".jpg"},
		{name: "Empty falls back", content: nil, expected: ".jpg"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extension(mimetype.Detect(tc.content))
			if got != tc.expected {
				t.Errorf("Extension() = %q, want %q", got, tc.expected)
			}
		})
	}

	if Extension(nil) != ".jpg" {
		t.Error("Expected nil MIME to fall back to .jpg")
	}
}

func TestMaterializationError(t *testing.T) {
	err := error(&MaterializationError{Source: "/tmp/a.jpg", Err: fs.ErrNotExist})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("Expected MaterializationError to unwrap")
	}
	if !strings.Contains(err.Error(), "/tmp/a.jpg") {
		t.Errorf("Expected source in message, got %q", err.Error())
	}
}

func TestFSStoreMaterialize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	ctx := context.Background()

	t.Run("Copies and names by content", func(t *testing.T) {
		src := writeSource(t, "upload.bin", pngBytes)
		ref, err := store.Materialize(ctx, src)
		if err != nil {
			t.Fatalf("Materialize() error = %v", err)
		}
		if !fileNamePattern.MatchString(ref) || !strings.HasSuffix(ref, ".png") {
			t.Errorf("Unexpected reference %q", ref)
		}

		got, err := os.ReadFile(filepath.Join(dir, ref))
		if err != nil {
			t.Fatalf("Expected file in media dir: %v", err)
		}
		if !bytes.Equal(got, pngBytes) {
			t.Error("Expected stored bytes to match the source")
		}
		if _, err := os.Stat(src); err != nil {
			t.Error("Expected the source to be left in place")
		}
	})

	t.Run("Missing source", func(t *testing.T) {
		_, err := store.Materialize(ctx, filepath.Join(t.TempDir(), "nope.jpg"))
		var merr *MaterializationError
		if !errors.As(err, &merr) {
			t.Fatalf("Expected *MaterializationError, got %v", err)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Expected wrapped not-exist error, got %v", err)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		src := writeSource(t, "x.png", pngBytes)
		if _, err := store.Materialize(cancelled, src); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})

	t.Run("Leaves no temp files behind", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				t.Errorf("Unexpected leftover %q", e.Name())
			}
		}
	})
}

func TestFSStoreOpen(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	ctx := context.Background()

	ref, err := store.Materialize(ctx, writeSource(t, "a", gifBytes))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	t.Run("Resolves stored media", func(t *testing.T) {
		rc, ct, err := store.Open(ctx, ref)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer rc.Close()

		if ct != "image/gif" {
			t.Errorf("Expected image/gif, got %q", ct)
		}
		data, _ := io.ReadAll(rc)
		if !bytes.Equal(data, gifBytes) {
			t.Error("Expected resolved bytes to match")
		}
	})

	testCases := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{name: "Empty reference", ref: "", wantErr: ErrNoMedia},
		{name: "Traversal", ref: "../etc/passwd", wantErr: ErrUnknownRef},
		{name: "Hidden file", ref: ".upload-123", wantErr: ErrUnknownRef},
		{name: "Missing file", ref: "POST_20240101_000000_deadbeef.jpg", wantErr: fs.ErrNotExist},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := store.Open(ctx, tc.ref)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Open(%q) error = %v, want %v", tc.ref, err, tc.wantErr)
			}
		})
	}
}
