// Package logging configures the engine's single zerolog logger: pretty
// console output on an interactive terminal, structured JSON otherwise.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options controls logger construction.
type Options struct {
	Level  string // "debug", "info", "warn", "error"; defaults to "info"
	Pretty bool   // force console writer regardless of TTY detection
	Output io.Writer
}

// New builds a zerolog.Logger per opts. When opts.Output is nil it writes to
// stderr, switching to a color console writer when stderr is a terminal
// (matching the behavior of interactive CLI runs) and to raw JSON lines
// otherwise (matching what a supervised/piped process or log shipper wants).
func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := opts.Output
	isTerminal := false
	if out == nil {
		out = os.Stderr
		isTerminal = term.IsTerminal(int(os.Stderr.Fd()))
	}

	if opts.Pretty || isTerminal {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	level := parseLevel(opts.Level)
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
