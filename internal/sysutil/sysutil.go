// Package sysutil holds process-level helpers shared by the command line
// entry points: log setup and flag/env fallbacks.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var levels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"panic":   zerolog.PanicLevel,
}

// ParseLevel maps a case-insensitive level name to a zerolog level.
// Empty or unknown names yield info.
func ParseLevel(lvl string) zerolog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(lvl))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// SetupLogging sets the global level and replaces the global logger with
// one writing to w. Pretty output uses zerolog's console writer.
func SetupLogging(lvl string, pretty bool, w io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(lvl))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	logger := zerolog.New(w).With().Timestamp().Str("service", "botbuilder").Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger
}

// FirstNonEmpty returns the first value that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
