// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pandeptwidyaop/deploy-manager/internal/config"
)

// Setup points the global logger at stderr with the configured level and
// format ("console" or "json").
func Setup(cfg config.LogConfig) {
	SetupWriter(os.Stderr, cfg)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, cfg config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
