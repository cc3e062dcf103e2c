package config

import (
	"flag"
	"log/slog"
	"testing"
	"time"
)

func TestParseProcessorDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	t.Setenv("VENUEPULSE_DB_PATH", "/tmp/env.db")

	cfg, err := ParseProcessor(fs, []string{"-wait-interval", "2s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("db path = %q, want /tmp/env.db", cfg.DBPath)
	}
	if cfg.WaitInterval != 2*time.Second {
		t.Fatalf("wait interval = %v, want 2s", cfg.WaitInterval)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q, want info", cfg.LogLevel)
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	t.Setenv("VENUEPULSE_DB_PATH", "/tmp/env.db")

	cfg, err := ParseProcessor(fs, []string{"-db-path", "/tmp/flag.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/flag.db" {
		t.Fatalf("db path = %q, want the flag value", cfg.DBPath)
	}
}

func TestParseLoaderDefaults(t *testing.T) {
	fs := flag.NewFlagSet("loader", flag.ContinueOnError)

	cfg, err := ParseLoader(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.SeedPath != "data/seed.json" {
		t.Fatalf("seed path = %q, want data/seed.json", cfg.SeedPath)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
