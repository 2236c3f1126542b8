package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"plugin-exec-engine/internal/api"
	"plugin-exec-engine/internal/config"
	"plugin-exec-engine/internal/engine"
	"plugin-exec-engine/internal/monitor"
	"plugin-exec-engine/internal/registry"
	"plugin-exec-engine/internal/sandbox"
	"plugin-exec-engine/internal/storage"
	"plugin-exec-engine/pkg/pluginsdk"
	"plugin-exec-engine/pkg/pluginsdk/builtin"
)

func main() {
	// Worker mode: this process was re-executed by the engine to run one
	// isolated plugin invocation. Nothing else may run before this check.
	if sandbox.IsWorker() {
		resolver := pluginsdk.NewResolver()
		if err := builtin.RegisterAll(resolver); err != nil {
			log.Fatal().Err(err).Msg("worker: registering plugins")
		}
		if err := sandbox.RunWorker(resolver); err != nil {
			log.Fatal().Err(err).Msg("worker failed")
		}
		return
	}

	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
		}
	} else {
		log.Info().Msg("no config file found, using defaults")
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics := monitor.NewMetrics()

	// Plugin registry: built-in reference plugins plus manifests discovered
	// on disk.
	store := registry.NewMemoryStore()
	resolver := pluginsdk.NewResolver()
	if err := builtin.RegisterAll(resolver); err != nil {
		log.Fatal().Err(err).Msg("registering built-in plugins")
	}
	if cfg.Engine.PluginDir != "" {
		if n, err := store.Discover(cfg.Engine.PluginDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Engine.PluginDir).Msg("plugin discovery failed")
		} else {
			log.Info().Int("plugins", n).Str("dir", cfg.Engine.PluginDir).Msg("plugins discovered")
		}
	}

	// Initialize database (optional, runs without it for development)
	var db *storage.DB
	if cfg.Database.DSN != "" {
		db, err = storage.New(ctx, cfg.Database.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, audit logging disabled")
		} else {
			defer db.Close()
		}
	}

	// Initialize audit writer (buffered, reliable logging)
	var auditWriter *storage.AuditWriter
	var audit engine.AuditSink
	if db != nil {
		auditWriter = storage.NewAuditWriter(db, cfg.Database.AuditBufferSize)
		auditWriter.Start()
		defer auditWriter.Flush(10 * time.Second)
		audit = auditWriter
	}

	defaultMode, err := engine.ParseMode(cfg.Engine.DefaultMode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid default execution mode")
	}

	eng, err := engine.New(engine.Options{
		Store:                  store,
		Resolver:               resolver,
		DefaultMode:            defaultMode,
		DefaultTimeout:         cfg.Engine.DefaultTimeout,
		MaxTimeout:             cfg.Engine.MaxTimeout,
		HistorySize:            cfg.Engine.HistorySize,
		ThreadPoolSize:         cfg.Engine.ThreadPoolSize,
		ThreadQueueDepth:       cfg.Engine.ThreadQueueDepth,
		MaxConcurrentProcesses: cfg.Engine.MaxConcurrentProcesses,
		Limits:                 cfg.Limits,
		Policy:                 cfg.Policy,
		Metrics:                metrics,
		Tracer:                 monitor.NewTracer(),
		Audit:                  audit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("creating engine")
	}

	// Create and start HTTP server
	server := api.NewServer(cfg, eng, store, db, metrics)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		eng.Close()
		cancel()
	}()

	log.Info().
		Str("addr", cfg.Address()).
		Str("default_mode", cfg.Engine.DefaultMode).
		Bool("db_enabled", db != nil).
		Msg("server starting")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}
