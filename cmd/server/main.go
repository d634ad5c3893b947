// Package main is the entry point for the smartwork server.
//
// main stays small: read configuration, build the logger, hand both to
// internal/server and block until shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/smartwork/internal/config"
	"github.com/sakif/smartwork/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// Connecting to a remote store or bucket must not hang start-up forever.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
