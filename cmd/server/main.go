package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/paystub/internal/config"
	"github.com/JonMunkholm/paystub/internal/logging"
	"github.com/JonMunkholm/paystub/internal/payroll"
	"github.com/JonMunkholm/paystub/internal/store/jsonfile"
	"github.com/JonMunkholm/paystub/internal/store/postgres"
	"github.com/JonMunkholm/paystub/internal/web"
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
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"data_dir", cfg.Storage.DataDir,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	if cfg.Security.UsesDefaultCredentials() {
		slog.Warn("admin password is the built-in default, set ADMIN_PASSWORD before exposing this server")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	opts := payroll.Options{
		MaxFileSize: cfg.Upload.MaxFileSize,
		Timeout:     cfg.Upload.Timeout,
	}
	if cfg.Upload.KeepFiles {
		opts.KeepDir = cfg.Storage.DataDir
	}
	limiter := payroll.NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	service := payroll.NewService(store, limiter, opts)

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active imports so no month is left half written.
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		store.Close()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (payroll.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.Storage.DatabaseURL,
			MaxConns:        int32(cfg.Storage.MaxConns),
			MinConns:        int32(cfg.Storage.MinConns),
			MaxConnLifetime: cfg.Storage.MaxConnLifetime,
			MaxConnIdleTime: cfg.Storage.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		if u, err := url.Parse(cfg.Storage.DatabaseURL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}
		return store, nil
	default:
		store, err := jsonfile.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		slog.Info("using JSON file store", "dir", cfg.Storage.DataDir)
		return store, nil
	}
}
