package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/bluesky-extract/internal/app"
	"github.com/blackmichael/bluesky-extract/internal/config"
	"github.com/blackmichael/bluesky-extract/internal/httpserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("BSKY_EXTRACT_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer a.Close()
	logger.Info("host ready", "host", cfg.Host, "media_store", cfg.Media.Store)

	var store httpserver.BlockStore
	if a.Store != nil {
		store = a.Store
	}
	server := httpserver.NewServer(cfg.Port, a.Extractor, store, logger)

	// Register commands and run auto extraction before serving
	if err := a.Plugin.Setup(ctx, server); err != nil {
		return fmt.Errorf("load plugin: %w", err)
	}
	defer a.Plugin.Teardown(server)

	// Follow accounts on the firehose when configured
	if len(cfg.Firehose.Follow) > 0 {
		watcher, err := a.NewWatcher(ctx)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		go func() {
			if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("firehose watcher exited with error", "error", err)
			}
		}()
	}

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
