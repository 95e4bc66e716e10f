// Package logging configures the global zerolog logger and summarizes
// service configuration at startup.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by Init.
const (
	LevelEnv  = "PRACHAR_LOG_LEVEL"
	FormatEnv = "PRACHAR_LOG_FORMAT"
)

// Init initializes the global logger from the environment.
// PRACHAR_LOG_LEVEL: trace, debug, info, warn, error (default: info).
// PRACHAR_LOG_FORMAT: console (default) or json for CloudWatch.
func Init() {
	InitWith(os.Stderr, os.Getenv(LevelEnv), os.Getenv(FormatEnv))
}

// InitWith configures the global logger to write to out.
func InitWith(out io.Writer, level, format string) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
