// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config selects level, encoding and the fields stamped on every entry.
type Config struct {
	Level   string    // zerolog level name, default info
	Format  string    // json (default) or console
	Output  io.Writer // default os.Stdout
	Service string    // default "timeshift"
	Version string
}

var base atomic.Pointer[zerolog.Logger]

// Configure replaces the process logger. Binaries call it once with defaults
// and again after the configuration has loaded.
func Configure(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	if cfg.Service == "" {
		cfg.Service = "timeshift"
	}

	ctx := zerolog.New(out).With().Timestamp().Str(FieldService, cfg.Service)
	if cfg.Version != "" {
		ctx = ctx.Str(FieldVersion, cfg.Version)
	}
	l := ctx.Logger()
	base.Store(&l)
}

func logger() zerolog.Logger {
	if l := base.Load(); l != nil {
		return *l
	}
	Configure(Config{})
	return *base.Load()
}

// Base returns the process logger.
func Base() zerolog.Logger {
	return logger()
}

// L is shorthand for one-off entries.
func L() *zerolog.Logger {
	l := logger()
	return &l
}

func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}
