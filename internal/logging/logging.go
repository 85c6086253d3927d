// Package logging builds the zerolog loggers shared by the CLI, the HTTP
// server and the scan engine.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a human-readable console logger. Debug level is enabled when
// verbose is set, info otherwise.
func New(w io.Writer, verbose bool) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return zerolog.New(cw).Level(level(verbose)).With().Timestamp().Logger()
}

// NewJSON returns a structured JSON logger, used by long-running processes.
func NewJSON(w io.Writer, verbose bool) zerolog.Logger {
	return zerolog.New(w).Level(level(verbose)).With().Timestamp().Logger()
}

func level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
