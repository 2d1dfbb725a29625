package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. In dev the output is a human-readable console
// writer; everywhere else it is JSON on stdout.
func New(env, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	var logger zerolog.Logger
	if env == "dev" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.With().
		Timestamp().
		Str("service", service).
		Logger()
}
