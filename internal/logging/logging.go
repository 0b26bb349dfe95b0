// Package logging configures the process-wide zerolog logger, matching
// ws/internal/single/monitoring/logger.go's level/format handling.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger for the given component ("server" or "client"),
// honoring level and format the way the teacher's NewLogger does.
func New(component, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var logger zerolog.Logger
	switch format {
	case "pretty", "text":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	default:
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return logger.With().Str("component", component).Logger()
}
