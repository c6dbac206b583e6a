package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/debemdeboas/adventure/internal/app"
	"github.com/debemdeboas/adventure/internal/config"
	"github.com/debemdeboas/adventure/internal/logger"
	"github.com/debemdeboas/adventure/internal/model"
	"github.com/debemdeboas/adventure/internal/util"
	"github.com/debemdeboas/adventure/internal/util/compression"
)

// main writes every post as compressed JSON.
func main() {
	out := flag.String("out", "", "Output file (default adventure-export-<date>.json plus the format extension)")
	format := flag.String("format", "zstd", "Compression format: zstd or gzip")
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the yaml config file")
	flag.Parse()

	log := logger.New("info")

	compressor, err := compression.ForFormat(*format)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --format")
	}

	_ = godotenv.Load(config.DefaultEnvFile)
	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal().Msgf(config.ErrLoadConfigFmt, err)
	}
	cfg := config.AppConfig

	log = logger.New(cfg.Logging.Level)
	app.SetLoggers(log)

	store, err := app.OpenStore(context.Background(), cfg.Storage.Path)
	if err != nil {
		log.Fatal().Msgf(config.ErrLoadPostsFmt, err)
	}
	defer store.Close()

	posts := store.Posts.GetAll()
	data, err := export(posts, compressor)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("adventure-export-%s.json%s", time.Now().Format("20060102"), compressor.Extension())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write export")
	}

	log.Info().
		Str("path", path).
		Int("posts", len(posts)).
		Int("bytes", len(data)).
		Str("sha256", util.ContentHash(data)).
		Msg("Export written")
}

type exportRecord struct {
	ID          model.PostID `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	MediaRef    string       `json:"media_ref"`
	Latitude    *float64     `json:"latitude"`
	Longitude   *float64     `json:"longitude"`
	Tags        []string     `json:"tags"`
	Directions  *string      `json:"directions"`
	Timestamp   int64        `json:"timestamp"`
}

func toRecord(p model.Post, _ int) exportRecord {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return exportRecord{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		MediaRef:    p.MediaRef,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Tags:        tags,
		Directions:  p.Directions,
		Timestamp:   p.Timestamp,
	}
}

func export(posts []model.Post, compressor compression.Compressor) ([]byte, error) {
	raw, err := json.MarshalIndent(lo.Map(posts, toRecord), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode posts: %w", err)
	}
	return compressor.Compress(raw)
}
