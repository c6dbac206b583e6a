// Package app wires the stores shared by the host binaries.
package app

import (
	"context"
	"fmt"

	"github.com/debemdeboas/adventure/internal/api"
	"github.com/debemdeboas/adventure/internal/config"
	"github.com/debemdeboas/adventure/internal/db"
	"github.com/debemdeboas/adventure/internal/editor"
	"github.com/debemdeboas/adventure/internal/logger"
	"github.com/debemdeboas/adventure/internal/media"
	"github.com/debemdeboas/adventure/internal/render"
	"github.com/debemdeboas/adventure/internal/repository"
	"github.com/debemdeboas/adventure/internal/sse"
	"github.com/rs/zerolog"
)

// SetLoggers hands every package a sub-logger tagged with its name.
func SetLoggers(root zerolog.Logger) {
	config.SetLogger(logger.Component(root, "config"))
	db.SetLogger(logger.Component(root, "db"))
	repository.SetLogger(logger.Component(root, "repository"))
	media.SetLogger(logger.Component(root, "media"))
	editor.SetLogger(logger.Component(root, "editor"))
	render.SetLogger(logger.Component(root, "render"))
	sse.SetLogger(logger.Component(root, "sse"))
	api.SetLogger(logger.Component(root, "api"))
}

// Store is an opened database with its post repository loaded.
type Store struct {
	DB    *db.SQLite
	Posts *repository.DBPostRepository
}

func OpenStore(ctx context.Context, path string) (*Store, error) {
	database := db.NewSQLite(path)
	if err := database.InitDb(); err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}

	posts := repository.NewDBPostRepository(database)
	if err := posts.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	return &Store{DB: database, Posts: posts}, nil
}

func (s *Store) Close() error {
	s.Posts.Close()
	return s.DB.Close()
}

// NewMediaBackend builds the media store selected by cfg.Backend.
func NewMediaBackend(ctx context.Context, cfg config.MediaConfig) (media.Backend, error) {
	switch cfg.Backend {
	case config.MediaBackendFS:
		store, err := media.NewFSStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.MediaBackendS3:
		client, err := media.NewS3Client(ctx, media.S3ClientOptions{
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return media.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}
