// Package main runs the check-in stream processor service.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/venuepulse/venuepulse/internal/config"
	"github.com/venuepulse/venuepulse/internal/keys"
	"github.com/venuepulse/venuepulse/internal/processor"
	"github.com/venuepulse/venuepulse/internal/store"
	"github.com/venuepulse/venuepulse/internal/stream"
)

func main() {
	cfg, err := config.ParseProcessor(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlx.Connect("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	checkins, err := stream.Open(db, keys.Checkins())
	if err != nil {
		logger.Error("failed to open check-in stream", "error", err)
		os.Exit(1)
	}
	records, err := store.Open(db)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}

	p := processor.New(processor.Config{
		Stream:       checkins,
		Records:      records,
		Positions:    store.NewPositionStore(db),
		Logger:       logger,
		WaitInterval: cfg.WaitInterval,
	})

	logger.Info("check-in processor starting", "db", cfg.DBPath, "waitInterval", cfg.WaitInterval.String())
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("check-in processor terminated", "error", err)
		os.Exit(1)
	}
	logger.Info("check-in processor stopped")
}
