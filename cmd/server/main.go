package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/coach/internal/config"
	"github.com/JonMunkholm/coach/internal/core"
	"github.com/JonMunkholm/coach/internal/logging"
	"github.com/JonMunkholm/coach/internal/metrics"
	"github.com/JonMunkholm/coach/internal/store"
	"github.com/JonMunkholm/coach/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_driver", cfg.Database.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"results_fetch", cfg.Results.URL != "",
		"metrics_enabled", cfg.Metrics.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.CreateSchema(ctx); err != nil {
		slog.Error("failed to create schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database", "driver", cfg.Database.Driver)

	opts := core.Options{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		ImportTimeout: cfg.Import.Timeout,
		NameCacheTTL:  cfg.Import.NameCacheTTL,
	}
	if cfg.Results.URL != "" {
		opts.Fetcher = core.NewResultsFetcher(cfg.Results.URL, cfg.Results.UserAgent, cfg.Results.FetchTimeout)
	}

	deps := web.Deps{DB: st}
	if cfg.Metrics.Enabled {
		m := metrics.New()
		opts.Recorder = m
		deps.Metrics = m.Handler()
	}

	service := core.NewService(st, opts)
	server := web.NewServer(service, cfg, deps)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first; in-flight imports keep their slot.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
