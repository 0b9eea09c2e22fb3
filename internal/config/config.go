// Package config reads process settings from flags, falling back to
// DYNTABLE_* environment variables and then to defaults.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

type Config struct {
	Addr        string
	DataDir     string
	Backend     string
	Journal     bool
	LockTimeout time.Duration
	SeqURL      string
	LogLevel    string

	// Check runs a reconciliation report instead of serving
	Check bool
	// Ack writes a journal checkpoint after a clean check
	Ack bool
}

func Default() Config {
	return Config{
		Addr:        ":8080",
		DataDir:     "data",
		Backend:     BackendSQLite,
		Journal:     true,
		LockTimeout: 5 * time.Second,
		LogLevel:    "info",
	}
}

// Load parses args (without the program name) on top of the environment
func Load(args []string) (Config, error) {
	return load(args, os.LookupEnv, os.Stderr)
}

func load(args []string, lookup func(string) (string, bool), output io.Writer) (Config, error) {
	cfg := Default()
	if err := fromEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("dyntable", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: sqlite or file")
	fs.BoolVar(&cfg.Journal, "journal", cfg.Journal, "journal schema migrations")
	fs.DurationVar(&cfg.LockTimeout, "lock-timeout", cfg.LockTimeout, "table lock wait before reporting busy (0 waits for the request)")
	fs.StringVar(&cfg.SeqURL, "seq", cfg.SeqURL, "Seq server URL for log shipping")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.Check, "check", false, "report catalog/storage drift and exit")
	fs.BoolVar(&cfg.Ack, "ack", false, "with -check, checkpoint the journal when storage is consistent")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("DYNTABLE_ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := lookup("DYNTABLE_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := lookup("DYNTABLE_BACKEND"); ok {
		cfg.Backend = v
	}
	if v, ok := lookup("DYNTABLE_JOURNAL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DYNTABLE_JOURNAL: %w", err)
		}
		cfg.Journal = b
	}
	if v, ok := lookup("DYNTABLE_LOCK_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DYNTABLE_LOCK_TIMEOUT: %w", err)
		}
		cfg.LockTimeout = d
	}
	if v, ok := lookup("DYNTABLE_SEQ_URL"); ok {
		cfg.SeqURL = v
	}
	if v, ok := lookup("DYNTABLE_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendFile)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock timeout must not be negative, got %s", c.LockTimeout)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Ack && !c.Check {
		return fmt.Errorf("-ack requires -check")
	}
	return nil
}

// Level returns the slog level named by LogLevel
func (c Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
