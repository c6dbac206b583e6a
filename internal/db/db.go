// Package db owns the sqlite connection and the posts schema.
package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"
)

type Db interface {
	InitDb() error

	Get() *sql.DB
	Close() error

	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ErrSchemaVersion is returned when the database file was written by an incompatible schema.
var ErrSchemaVersion = errors.New("incompatible database schema")

var dbLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	dbLogger = l
}
