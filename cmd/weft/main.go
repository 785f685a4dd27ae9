package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kode4food/timebox"

	app "github.com/weftlabs/weft"
	"github.com/weftlabs/weft/internal/archive"
	"github.com/weftlabs/weft/internal/builder"
	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/llm"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/internal/server"
	"github.com/weftlabs/weft/pkg/log"
)

type weft struct {
	cfg           *config.Config
	timebox       *timebox.Timebox
	sessionStore  *timebox.Store
	registry      registry.Service
	model         llm.Client
	orchestrator  *builder.Orchestrator
	archiveWorker *archive.Worker
	apiServer     *server.Server
	httpServer    *http.Server
	quit          chan os.Signal
}

var (
	ErrCreateTimebox      = errors.New("failed to create timebox")
	ErrCreateSessionStore = errors.New("failed to create session store")
	ErrCreateArchive      = errors.New("failed to create archive exporter")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &weft{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *weft) run() error {
	if err := s.initializeStores(); err != nil {
		return err
	}
	if err := s.initializeBuilder(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *weft) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Weft starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("session_redis_addr", s.cfg.SessionStore.Addr),
		slog.Int("session_redis_db", s.cfg.SessionStore.DB),
		slog.String("registry_url", s.cfg.Registry.URL),
		slog.String("model_endpoint", s.cfg.Model.Endpoint),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *weft) initializeStores() error {
	var err error

	s.timebox, err = timebox.NewTimebox(timebox.Config{
		MaxRetries: timebox.DefaultMaxRetries,
		CacheSize:  s.cfg.SessionCacheSize,
		Workers:    true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateTimebox, err)
	}

	s.sessionStore, err = s.timebox.NewStore(s.cfg.SessionStore)
	if err != nil {
		_ = s.timebox.Close()
		return fmt.Errorf("%w: %w", ErrCreateSessionStore, err)
	}

	return nil
}

func (s *weft) initializeBuilder() error {
	s.registry = registry.NewMCPService(s.cfg.Registry)
	s.model = llm.NewHTTPClient(&s.cfg.Model)
	s.orchestrator = builder.New(
		s.sessionStore, s.registry, s.model, s.cfg,
	)

	if s.cfg.Archive.BucketURL == "" {
		return nil
	}
	exporter, err := archive.NewExporter(
		context.Background(), &s.cfg.Archive,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateArchive, err)
	}
	s.archiveWorker = archive.NewWorker(
		s.orchestrator.Manager(), exporter, s.cfg,
	)
	s.archiveWorker.Start()
	return nil
}

func (s *weft) startServer() {
	s.apiServer = server.NewServer(
		s.orchestrator, s.registry, s.timebox.GetHub(),
	)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *weft) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	if s.archiveWorker != nil {
		s.archiveWorker.Stop()
	}

	s.orchestrator.Close()
	if err := s.registry.Close(); err != nil {
		slog.Error("Registry shutdown failed", log.Error(err))
	}

	_ = s.timebox.Close()

	slog.Info("Server exited")
}
