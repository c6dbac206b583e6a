package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/adventure/internal/api"
	"github.com/debemdeboas/adventure/internal/app"
	"github.com/debemdeboas/adventure/internal/config"
	"github.com/debemdeboas/adventure/internal/editor"
	"github.com/debemdeboas/adventure/internal/logger"
	"github.com/debemdeboas/adventure/internal/media"
	"github.com/debemdeboas/adventure/internal/metrics"
	"github.com/debemdeboas/adventure/internal/repository"
	"github.com/debemdeboas/adventure/internal/routes"
	"github.com/debemdeboas/adventure/internal/sse"
	"github.com/debemdeboas/adventure/internal/tags"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the yaml config file")
	flag.Parse()

	bootLogger := logger.New("info")
	if err := godotenv.Load(config.DefaultEnvFile); err != nil {
		bootLogger.Debug().Err(err).Msg("No .env file loaded")
	}

	config.SetLogger(logger.Component(bootLogger, "config"))
	if err := config.LoadConfig(*configPath); err != nil {
		bootLogger.Fatal().Msgf(config.ErrLoadConfigFmt, err)
	}
	cfg := config.AppConfig

	log := logger.New(cfg.Logging.Level)
	app.SetLoggers(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg.Storage.Path)
	if err != nil {
		log.Fatal().Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer store.Close()

	backend, err := app.NewMediaBackend(ctx, cfg.Media)
	if err != nil {
		log.Fatal().Msgf(config.ErrCreateMediaStoreFmt, err)
	}

	srv := newServer(cfg, store.Posts, backend, log)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Int("posts", len(store.Posts.GetAll())).Msg("Listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Open SSE streams only end once their clients are closed.
	srv.clients.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

type server struct {
	handler http.Handler

	clients *sse.SSEClients
	index   *tags.Index
	drafts  *editor.MemoryRepository
	editor  *editor.Handler
}

func newServer(cfg *config.Config, posts repository.PostRepository, backend media.Backend, log zerolog.Logger) *server {
	clients := sse.NewSSEClients()
	clients.Follow(posts)

	index := tags.NewIndex(posts)
	drafts := editor.NewMemoryRepository(posts, backend)
	editorHandler := editor.NewHandler(drafts, posts, cfg.Uploads.MaxBytes)

	mux := http.NewServeMux()
	api.NewHandler(posts, index, backend).Register(mux)
	editorHandler.Register(mux)
	mux.Handle(routes.SSEPath, clients)
	mux.Handle(routes.Metrics, metrics.Handler())

	log.Debug().Msg("Routes registered")

	return &server{
		handler: api.LogRequests(api.SecureHeaders(api.NoCache(mux))),
		clients: clients,
		index:   index,
		drafts:  drafts,
		editor:  editorHandler,
	}
}

func (s *server) Close() {
	s.drafts.Close()
	s.editor.Close()
	s.index.Close()
	s.clients.Close()
}
