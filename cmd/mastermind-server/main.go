package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/server"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/storage/sqlite"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/logging"
)

func main() {
	logger := logging.New(logging.ParseLevel(os.Getenv("MASTERMIND_LOG_LEVEL")))
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("Failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := server.NewApp(logger, ctx, cfg, store)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
