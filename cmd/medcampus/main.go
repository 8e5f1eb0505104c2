// Package main содержит точку входа клиентского ядра.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/medcampus/medcampus-client/internal/app"
	"github.com/medcampus/medcampus-client/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found", slog.Any("err", err))
	}

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting medcampus client core", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize client core", slog.Any("err", err))
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("client core stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("client core stopped gracefully")
}
