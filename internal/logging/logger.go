package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger = zerolog.Logger

// Initialize sets up the global logger. Output goes to w through a console
// writer; pass a file when a TUI owns the terminal.
func Initialize(level string, w io.Writer) error {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)

	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}

	ctx := zerolog.New(output).With().Timestamp()
	if lvl <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	log.Debug().Str("level", lvl.String()).Msg("Logger initialized")
	return nil
}

// ParseLevel maps a config level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "off", "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// Get returns a configured logger for a specific component
func Get(component string) Logger {
	return log.With().Str("component", component).Logger()
}

// Nop returns a logger that discards everything; handy for tests and
// optional dependencies.
func Nop() Logger {
	return zerolog.Nop()
}

func isTerminal(w io.Writer) bool {
	return w == os.Stdout || w == os.Stderr
}
