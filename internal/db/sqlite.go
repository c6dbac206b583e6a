package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is stored in PRAGMA user_version.
const SchemaVersion = 1

const createPostsTable = `
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL DEFAULT '',
    description TEXT,
    media_ref TEXT NOT NULL DEFAULT '',
    latitude REAL,
    longitude REAL,
    tags TEXT NOT NULL DEFAULT '[]',
    directions TEXT,
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_timestamp ON posts(timestamp DESC);`

type SQLite struct {
	path string
	conn *sql.DB
}

// NewSQLite returns an unopened database at path. ":memory:" is accepted.
func NewSQLite(path string) *SQLite {
	return &SQLite{
		path: path,
		conn: nil,
	}
}

func (s *SQLite) InitDb() error {
	if s.conn != nil {
		return fmt.Errorf("database already initialized")
	}

	conn, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes the single writer.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	dbLogger.Info().Str("path", s.path).Int("schema_version", SchemaVersion).Msg("Database initialized")
	return nil
}

// migrate creates the schema on a fresh database and rejects files from other schema versions.
func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	switch {
	case version == SchemaVersion:
		return nil
	case version > SchemaVersion:
		return fmt.Errorf("%w: database is at version %d, this build supports %d", ErrSchemaVersion, version, SchemaVersion)
	}

	// Unversioned. A posts table without tags predates the current schema and cannot be upgraded in place.
	var existing int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='posts'").Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if existing > 0 {
		var hasTags int
		err := conn.QueryRow("SELECT COUNT(*) FROM pragma_table_info('posts') WHERE name='tags'").Scan(&hasTags)
		if err != nil {
			return fmt.Errorf("failed to inspect posts table: %w", err)
		}
		if hasTags == 0 {
			return fmt.Errorf("%w: posts table has no tags column, a fresh database is required", ErrSchemaVersion)
		}
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	if _, err := tx.Exec(createPostsTable); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	dbLogger.Info().Int("schema_version", SchemaVersion).Msg("Schema created")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *SQLite) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	dbLogger.Debug().Str("query", query).Msg("Query")
	if s.conn == nil {
		return nil, sql.ErrConnDone
	}
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *SQLite) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	dbLogger.Debug().Str("query", query).Msg("Exec")
	if s.conn == nil {
		return nil, sql.ErrConnDone
	}
	return s.conn.ExecContext(ctx, query, args...)
}
