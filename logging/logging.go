// Package logging wires the process-wide slog default to a zerolog backend.
//
// Hosts activate a workflow many times over its life; adapters call Init at
// every entry point and the latch makes sure the handler is installed only
// once per activation.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

var initOnce sync.Once

// Init installs a zerolog-backed slog default handler. The level comes from
// LOOM_LOG (trace|debug|info|warn|error, default info); LOOM_LOG_PRETTY=1
// switches to the console writer.
func Init() {
	initOnce.Do(func() {
		logger := newLogger()
		slog.SetDefault(slog.New(
			zeroslog.NewHandler(logger, &zeroslog.HandlerOptions{Level: levelFromEnv()}),
		))
	})
}

func newLogger() zerolog.Logger {
	if os.Getenv("LOOM_LOG_PRETTY") == "1" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOOM_LOG")) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
