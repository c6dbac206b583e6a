package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/adventure/internal/app"
	"github.com/debemdeboas/adventure/internal/config"
	"github.com/debemdeboas/adventure/internal/logger"
	"github.com/debemdeboas/adventure/internal/media"
	"github.com/debemdeboas/adventure/internal/model"
)

var log = zerolog.Nop()

// main creates one post per photo or video found in a directory.
func main() {
	path := flag.String("path", "", "Directory containing photos and videos")
	tagText := flag.String("tags", "", "Comma separated tags applied to every imported post")
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the yaml config file")
	flag.Parse()

	log = logger.New("info")
	if *path == "" {
		log.Fatal().Msg("The --path flag is required")
	}

	_ = godotenv.Load(config.DefaultEnvFile)
	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal().Msgf(config.ErrLoadConfigFmt, err)
	}
	cfg := config.AppConfig

	log = logger.New(cfg.Logging.Level)
	app.SetLoggers(log)

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg.Storage.Path)
	if err != nil {
		log.Fatal().Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer store.Close()

	backend, err := app.NewMediaBackend(ctx, cfg.Media)
	if err != nil {
		log.Fatal().Msgf(config.ErrCreateMediaStoreFmt, err)
	}

	imported, err := importDir(ctx, *path, model.ParseTags(*tagText), backend, store.Posts)
	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("Import failed")
	}
	log.Info().Int("imported", imported).Msg("Import finished")
}

type inserter interface {
	Insert(ctx context.Context, post model.Post) (model.PostID, error)
}

// importDir imports every media file directly under dir. Files that fail are logged and skipped.
func importDir(ctx context.Context, dir string, tags []string, mediaStore media.Store, posts inserter) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		id, err := importFile(ctx, dir, entry, tags, mediaStore, posts)
		if err != nil {
			log.Error().Err(err).Str("file", entry.Name()).Msg("Error processing file")
			continue
		}
		if id == 0 {
			log.Debug().Str("file", entry.Name()).Msg("Skipping non-media file")
			continue
		}
		imported++
		log.Info().Str("file", entry.Name()).Int64("post_id", int64(id)).Msg("Imported post")
	}
	return imported, nil
}

// importFile returns 0 without error for files that are not photos or videos.
func importFile(ctx context.Context, dir string, entry os.DirEntry, tags []string, mediaStore media.Store, posts inserter) (model.PostID, error) {
	filePath := filepath.Join(dir, entry.Name())

	kind, err := mimetype.DetectFile(filePath)
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(kind.String(), "image/") && !strings.HasPrefix(kind.String(), "video/") {
		return 0, nil
	}

	info, err := entry.Info()
	if err != nil {
		return 0, err
	}

	ref, err := mediaStore.Materialize(ctx, filePath)
	if err != nil {
		return 0, err
	}

	return posts.Insert(ctx, model.Post{
		Title:     strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
		MediaRef:  ref,
		Tags:      append([]string{}, tags...),
		Timestamp: info.ModTime().UnixMilli(),
	})
}
