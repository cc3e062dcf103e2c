// Package config parses environment variables and command-line flags for the
// venuepulse binaries. Environment values provide defaults; flags override.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Processor holds the stream processor service configuration.
type Processor struct {
	DBPath       string        `env:"VENUEPULSE_DB_PATH" envDefault:"data/venuepulse.db"`
	WaitInterval time.Duration `env:"VENUEPULSE_WAIT_INTERVAL" envDefault:"5s"`
	LogLevel     string        `env:"VENUEPULSE_LOG_LEVEL" envDefault:"info"`
}

// Loader holds the bulk loader configuration.
type Loader struct {
	DBPath   string `env:"VENUEPULSE_DB_PATH" envDefault:"data/venuepulse.db"`
	SeedPath string `env:"VENUEPULSE_SEED_PATH" envDefault:"data/seed.json"`
	LogLevel string `env:"VENUEPULSE_LOG_LEVEL" envDefault:"info"`
}

// ParseProcessor parses environment and flags into a Processor config.
func ParseProcessor(fs *flag.FlagSet, args []string) (Processor, error) {
	var cfg Processor
	if err := env.Parse(&cfg); err != nil {
		return Processor{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The sqlite database path")
	fs.DurationVar(&cfg.WaitInterval, "wait-interval", cfg.WaitInterval, "Bounded wait per blocking stream read")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Processor{}, err
	}
	return cfg, nil
}

// ParseLoader parses environment and flags into a Loader config.
func ParseLoader(fs *flag.FlagSet, args []string) (Loader, error) {
	var cfg Loader
	if err := env.Parse(&cfg); err != nil {
		return Loader{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The sqlite database path")
	fs.StringVar(&cfg.SeedPath, "seed-path", cfg.SeedPath, "The JSON seed file to load")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Loader{}, err
	}
	return cfg, nil
}

// ParseLevel maps a level name onto slog's levels, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
