package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowsync/internal/config"
	"flowsync/internal/server/handlers"
	"flowsync/internal/server/middleware"
	"flowsync/internal/server/storage/sqlite"
	syncsvc "flowsync/internal/server/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "flowsync-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting flowsync server",
		"version", Version,
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Path,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlite.New(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	jwtConfig := handlers.JWTConfig{
		Secret:          []byte(cfg.Auth.JWTSecret),
		AccessTokenTTL:  cfg.AccessTokenTTL(),
		RefreshTokenTTL: cfg.RefreshTokenTTL(),
	}

	coordinator := syncsvc.NewCoordinator(logger, store)
	resolver := syncsvc.NewResolver(logger, store)

	authHandler := handlers.NewAuthHandler(logger, store, store, jwtConfig)
	syncHandler := handlers.NewSyncHandler(logger, coordinator, resolver,
		cfg.Sync.MaxBatchSize, cfg.BatchTimeout())
	flowsHandler := handlers.NewFlowsHandler(logger, store)
	healthHandler := handlers.NewHealthHandler(logger, Version)

	authMW := middleware.AuthMiddleware(logger, jwtConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.Handle("POST /api/v1/sync/batch", authMW(http.HandlerFunc(syncHandler.HandleBatch)))
	mux.Handle("POST /api/v1/sync/resolve-conflicts", authMW(http.HandlerFunc(syncHandler.HandleResolveConflicts)))
	mux.Handle("GET /api/v1/flows", authMW(http.HandlerFunc(flowsHandler.List)))
	mux.Handle("GET /api/v1/flows/changes", authMW(http.HandlerFunc(flowsHandler.Changes)))
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	var handler http.Handler = mux
	if cfg.RateLimit.Enabled {
		handler = middleware.RateLimitMiddleware(cfg.RateLimit.Rate, cfg.RateLimitWindow(), logger)(handler)
	}
	handler = middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func printVersion() {
	fmt.Printf("flowsync server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
