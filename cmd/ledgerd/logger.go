// logger.go - Structured logging for the ledger daemon
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates the daemon's root logger. Format "console" writes
// human-readable output; anything else writes JSON lines.
func NewLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if format == "console" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "ledgerd").Logger()
}
