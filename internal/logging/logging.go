package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects level and output format. Output defaults to stderr.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds the application logger. An unknown level falls back to info.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var zl zerolog.Logger
	if strings.EqualFold(cfg.Format, FormatJSON) {
		zl = zerolog.New(out)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}

	return zl.Level(level).With().Timestamp().Str("service", "subtitle-studio").Logger()
}
