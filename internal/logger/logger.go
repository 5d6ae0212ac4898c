// Package logger provides the process-wide structured logger.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger writing JSON to stdout.
// It ensures that the logger is initialized only once.
func Init(level string) {
	once.Do(func() {
		lvl := parseLevel(level)
		defaultLogger = zerolog.New(os.Stdout).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	})
}

// Get returns the initialized default logger. It falls back to info level
// when Init was never called explicitly.
func Get() *zerolog.Logger {
	Init("info")
	return &defaultLogger
}

// With returns a logger tagged with a component name.
func With(component string) *zerolog.Logger {
	tagged := Get().With().Str("component", component).Logger()
	return &tagged
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
