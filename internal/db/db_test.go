package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)
	SetLogger(zerolog.Nop())
}

func TestNewSQLite(t *testing.T) {
	db := NewSQLite(":memory:")

	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}
	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}
	if db.path != ":memory:" {
		t.Errorf("Expected path ':memory:', got %q", db.path)
	}
}

func TestSQLiteInitDb(t *testing.T) {
	db := NewSQLite(":memory:")
	if err := db.InitDb(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	defer db.Close()

	t.Run("Creates posts table", func(t *testing.T) {
		var count int
		err := db.Get().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='posts'").Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query sqlite_master: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected posts table to exist")
		}
	})

	t.Run("Creates no other application tables", func(t *testing.T) {
		var count int
		err := db.Get().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query sqlite_master: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected exactly one table, got %d", count)
		}
	})

	t.Run("Records schema version", func(t *testing.T) {
		var version int
		if err := db.Get().QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			t.Fatalf("Failed to read user_version: %v", err)
		}
		if version != SchemaVersion {
			t.Errorf("Expected user_version %d, got %d", SchemaVersion, version)
		}
	})

	t.Run("Autoincrement ids", func(t *testing.T) {
		ctx := context.Background()
		res, err := db.ExecContext(ctx, "INSERT INTO posts (title, timestamp) VALUES (?, ?)", "a", 1)
		if err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
		first, _ := res.LastInsertId()

		if _, err := db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", first); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}

		res, err = db.ExecContext(ctx, "INSERT INTO posts (title, timestamp) VALUES (?, ?)", "b", 2)
		if err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
		second, _ := res.LastInsertId()
		if second <= first {
			t.Errorf("Expected id after delete to be greater than %d, got %d", first, second)
		}
	})

	t.Run("Second init fails", func(t *testing.T) {
		if err := db.InitDb(); err == nil {
			t.Error("Expected error when initializing twice")
		}
	})
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adventure.db")

	first := NewSQLite(path)
	if err := first.InitDb(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	if _, err := first.ExecContext(context.Background(), "INSERT INTO posts (title, timestamp) VALUES ('kept', 1)"); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	first.Close()

	second := NewSQLite(path)
	if err := second.InitDb(); err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer second.Close()

	var title string
	if err := second.Get().QueryRow("SELECT title FROM posts").Scan(&title); err != nil {
		t.Fatalf("Failed to read post: %v", err)
	}
	if title != "kept" {
		t.Errorf("Expected title 'kept', got %q", title)
	}
}

func TestSQLiteRejectsIncompatibleSchema(t *testing.T) {
	testCases := []struct {
		name  string
		setup string
	}{
		{
			name:  "Newer version",
			setup: "PRAGMA user_version = 99",
		},
		{
			name:  "Legacy posts table without tags",
			setup: "CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, media_uri TEXT, timestamp INTEGER)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "legacy.db")

			raw, err := sql.Open("sqlite3", path)
			if err != nil {
				t.Fatalf("Failed to open raw database: %v", err)
			}
			if _, err := raw.Exec(tc.setup); err != nil {
				t.Fatalf("Failed to prepare database: %v", err)
			}
			raw.Close()

			db := NewSQLite(path)
			err = db.InitDb()
			if !errors.Is(err, ErrSchemaVersion) {
				t.Fatalf("Expected ErrSchemaVersion, got %v", err)
			}
			if db.Get() != nil {
				t.Error("Expected no connection after failed init")
			}
		})
	}
}

func TestSQLiteClose(t *testing.T) {
	db := NewSQLite(":memory:")

	if err := db.Close(); err != nil {
		t.Errorf("Close() without init error = %v", err)
	}

	if err := db.InitDb(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if db.Get() != nil {
		t.Error("Expected Get() to return nil after Close()")
	}

	if _, err := db.ExecContext(context.Background(), "SELECT 1"); !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("Expected sql.ErrConnDone after close, got %v", err)
	}
}

func TestSQLiteInterfaceCompliance(t *testing.T) {
	var _ Db = (*SQLite)(nil)
}
