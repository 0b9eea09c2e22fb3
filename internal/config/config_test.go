package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := load(nil, env(nil), io.Discard)
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, Default())
	assert.Equal(t, cfg.Level(), slog.LevelInfo)
}

func TestEnvironmentFallback(t *testing.T) {
	cfg, err := load(nil, env(map[string]string{
		"DYNTABLE_ADDR":         ":9090",
		"DYNTABLE_BACKEND":      "file",
		"DYNTABLE_JOURNAL":      "false",
		"DYNTABLE_LOCK_TIMEOUT": "250ms",
		"DYNTABLE_LOG_LEVEL":    "debug",
	}), io.Discard)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Addr, ":9090")
	assert.Equal(t, cfg.Backend, BackendFile)
	assert.Equal(t, cfg.Journal, false)
	assert.Equal(t, cfg.LockTimeout, 250*time.Millisecond)
	assert.Equal(t, cfg.Level(), slog.LevelDebug)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	cfg, err := load(
		[]string{"-addr", ":7000", "-data", "/tmp/dt", "-lock-timeout", "0", "-check"},
		env(map[string]string{"DYNTABLE_ADDR": ":9090"}),
		io.Discard,
	)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Addr, ":7000")
	assert.Equal(t, cfg.DataDir, "/tmp/dt")
	assert.Equal(t, cfg.LockTimeout, time.Duration(0))
	assert.Assert(t, cfg.Check)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"backend", []string{"-backend", "postgres"}, nil, "unknown backend"},
		{"level", []string{"-log-level", "loud"}, nil, "unknown log level"},
		{"negative timeout", []string{"-lock-timeout", "-1s"}, nil, "must not be negative"},
		{"ack alone", []string{"-ack"}, nil, "-ack requires -check"},
		{"bad env bool", nil, map[string]string{"DYNTABLE_JOURNAL": "maybe"}, "DYNTABLE_JOURNAL"},
		{"bad env duration", nil, map[string]string{"DYNTABLE_LOCK_TIMEOUT": "soon"}, "DYNTABLE_LOCK_TIMEOUT"},
		{"unknown flag", []string{"-nope"}, nil, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.args, env(tt.env), io.Discard)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
