// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config selects the log level, format and destinations.
type Config struct {
	Level      string
	Format     string
	File       string
	WithCaller bool
}

// ErrInvalidConfig is returned for an unknown level or format.
var ErrInvalidConfig = errors.New("invalid log config")

// Validate checks Level and Format. Empty values are accepted and mean the
// defaults, info and json.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", FormatJSON, FormatText:
		return nil
	}
	return errors.Wrapf(ErrInvalidConfig, "unknown log format %q", c.Format)
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch level {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	}
	return zerolog.NoLevel, errors.Wrapf(ErrInvalidConfig, "unknown log level %q", level)
}

// Writer returns the destination for cfg, writing to stderr and, if
// cfg.File is set, to a rotated log file.
func Writer(cfg Config, stderr io.Writer) io.Writer {
	var w io.Writer = stderr
	if cfg.Format == FormatText {
		w = zerolog.ConsoleWriter{Out: stderr}
	}
	if cfg.File != "" {
		w = io.MultiWriter(w, zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			},
		})
	}
	return w
}

// Init replaces the global logger and level.
func Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := ParseLevel(cfg.Level)

	logger := log.Output(Writer(cfg, os.Stderr))
	if cfg.WithCaller {
		logger = logger.With().Caller().Logger()
	}
	log.Logger = logger
	zerolog.SetGlobalLevel(level)
	return nil
}
