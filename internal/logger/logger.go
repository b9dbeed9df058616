// Package logger configures the global zerolog logger from CLI options.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a go-flags option group shared by all commands.
type Logger struct {
	Level  string `long:"log-level"  env:"LOG_LEVEL"  description:"Log level"  choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Log format" choice:"text" choice:"json" default:"text"`
	Output string `long:"log-output" env:"LOG_OUTPUT" description:"Log output: stderr, stdout or file path" default:"stderr"`
}

// Setup applies the options to the global logger.
// An unknown level falls back to info, an unwritable file falls back to stderr.
func (l Logger) Setup() {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil || l.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer
	var fileErr error
	switch l.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(l.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			out = os.Stderr
			fileErr = err
		} else {
			out = f
		}
	}

	if l.Format == "text" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", l.Output).Msg("Cannot open log file, writing to stderr")
	}
}
