package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/debemdeboas/adventure/internal/app"
	"github.com/debemdeboas/adventure/internal/media"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func TestImportDir(t *testing.T) {
	src := t.TempDir()
	modTime := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	files := map[string][]byte{
		"Trailhead.png": pngBytes,
		"notes.txt":     []byte("not a photo"),
		".hidden.png":   pngBytes,
	}
	for name, data := range files {
		path := filepath.Join(src, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("Failed to set times on %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(src, "nested"), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()

	mediaStore, err := media.NewFSStore(filepath.Join(t.TempDir(), "media"))
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	imported, err := importDir(ctx, src, []string{"hiking"}, mediaStore, store.Posts)
	if err != nil {
		t.Fatalf("importDir() error = %v", err)
	}
	if imported != 1 {
		t.Fatalf("Expected 1 imported post, got %d", imported)
	}

	posts := store.Posts.GetAll()
	if len(posts) != 1 {
		t.Fatalf("Expected 1 stored post, got %d", len(posts))
	}
	p := posts[0]
	if p.Title != "Trailhead" {
		t.Errorf("Expected title from file name, got %q", p.Title)
	}
	if p.Timestamp != modTime.UnixMilli() {
		t.Errorf("Expected timestamp from modification time, got %d", p.Timestamp)
	}
	if !reflect.DeepEqual(p.Tags, []string{"hiking"}) {
		t.Errorf("Unexpected tags %v", p.Tags)
	}
	if _, err := os.Stat(filepath.Join(mediaStore.Dir(), p.MediaRef)); err != nil {
		t.Errorf("Expected media to be copied: %v", err)
	}
}

func TestImportDirMissing(t *testing.T) {
	_, err := importDir(context.Background(), filepath.Join(t.TempDir(), "nope"), nil, nil, nil)
	if err == nil {
		t.Error("Expected error for a missing directory")
	}
}
