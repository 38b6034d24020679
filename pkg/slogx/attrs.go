// Package slogx provides slog attribute constructors shared across the
// module so log fields stay consistently named.
package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr with key "error" and the error's message as the
// value.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer returns a slog.Attr holding the string representation of value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// KeyLoggerName is the attribute key identifying the component a log record
// originates from.
const KeyLoggerName = "logger"

// LoggerName returns the component-name attribute.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
