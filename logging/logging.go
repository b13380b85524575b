// Package logging builds the zerolog loggers used across the application.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Options configures a logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `json:"level" yaml:"level"`
	// JSON switches from the human console format to one JSON object per line.
	JSON bool `json:"json" yaml:"json"`
	// Writer defaults to os.Stdout.
	Writer io.Writer `json:"-" yaml:"-"`
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "log level %q", level)
	}
	return l, nil
}

// New creates a timestamped logger.
//
// Arguments:
//   - opts: Level, format and destination
//
// Returns:
//   - zerolog.Logger: The configured logger
//   - error: When the level is unknown
func New(opts Options) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// init keeps durations readable in every logger built here.
func init() {
	zerolog.DurationFieldUnit = time.Millisecond
}
