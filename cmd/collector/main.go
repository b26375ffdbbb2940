package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/api"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/auth"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/config"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/pipeline"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/probe"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/source"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/store"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/ws"
)

// evictInterval is how often the store sweeps expired sessions.
const evictInterval = 10 * time.Minute

// streamInterval is how often the WebSocket hub pushes pool summaries.
const streamInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("collector starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"listen_port", cfg.Collector.ListenPort,
		"sources", len(cfg.Collector.Sources),
		"schedule_interval", cfg.Collector.ScheduleInterval,
		"storage_backend", cfg.Collector.Storage.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, err := openStore(cfg.Collector.Storage)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer kv.Close()

	// Background sweep of expired session entries.
	switch st := kv.(type) {
	case *store.Memory:
		go st.Run(ctx, evictInterval)
	case *store.SQLite:
		go st.Run(ctx, evictInterval)
	}

	manager := auth.New(kv, cfg.Collector.Admin.Password())

	fetcher := source.New(cfg.Collector.FetchTimeout)
	prober := probe.New(probe.Config{
		Timeout:      cfg.Collector.Probe.Timeout,
		Concurrency:  cfg.Collector.Probe.Concurrency,
		MaxAddresses: cfg.Collector.Probe.MaxAddresses,
	})

	orch := pipeline.New(fetcher, prober, kv, pipeline.Config{
		Sources:   cfg.Collector.Sources,
		FastCount: cfg.Collector.FastCount,
	})

	// Scheduled full runs; zero interval disables them.
	if cfg.Collector.ScheduleInterval > 0 {
		go orch.Run(ctx, cfg.Collector.ScheduleInterval)
	}

	// Hot-reload the harvest list and ranking size on config file changes.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			orch.UpdateConfig(pipeline.Config{
				Sources:   next.Collector.Sources,
				FastCount: next.Collector.FastCount,
			})
			slog.Info("config reloaded",
				"sources", len(next.Collector.Sources),
				"fast_count", next.Collector.FastCount)
		})
		if err != nil {
			slog.Warn("config watch stopped", "err", err)
		}
	}()

	// WebSocket hub — streams pool summaries to connected clients.
	hub := ws.New(orch, streamInterval)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", api.New(orch, manager))
	mux.Handle("/ws/stream", hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Collector.ListenPort),
		Handler: mux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Collector.ListenPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("collector shutting down")
	srv.Shutdown(context.Background()) //nolint:errcheck
}

// openStore builds the configured persistence backend.
func openStore(cfg config.StorageConfig) (store.KV, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return store.NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
