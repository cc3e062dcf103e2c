// Package main runs the one-time bulk loader: it seeds reference data and
// sample check-ins from a JSON file, then exits.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/venuepulse/venuepulse/internal/config"
	"github.com/venuepulse/venuepulse/internal/keys"
	"github.com/venuepulse/venuepulse/internal/loader"
	"github.com/venuepulse/venuepulse/internal/store"
	"github.com/venuepulse/venuepulse/internal/stream"
)

func main() {
	cfg, err := config.ParseLoader(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	seed, err := loader.ReadSeed(cfg.SeedPath)
	if err != nil {
		logger.Error("failed to read seed", "path", cfg.SeedPath, "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	records, err := store.Open(db)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	checkins, err := stream.Open(db, keys.Checkins())
	if err != nil {
		logger.Error("failed to open check-in stream", "error", err)
		os.Exit(1)
	}

	logger.Info("bulk load starting", "seed", cfg.SeedPath, "db", cfg.DBPath)
	if err := loader.New(records, checkins, logger).Run(context.Background(), seed); err != nil {
		logger.Error("bulk load failed", "error", err)
		os.Exit(1)
	}
}
