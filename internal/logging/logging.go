// Package logging builds the pterm structured loggers used across the client.
package logging

import (
	"io"
	"os"

	"github.com/pterm/pterm"
)

// Options control the logger returned by New.
type Options struct {
	Debug bool
	JSON  bool
	// Writer defaults to stderr so logs never mix with command output.
	Writer io.Writer
}

// New returns a logger configured by opts.
func New(opts Options) *pterm.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := pterm.LogLevelInfo
	if opts.Debug {
		level = pterm.LogLevelDebug
	}
	l := pterm.DefaultLogger.WithLevel(level).WithWriter(w)
	if opts.JSON {
		l = l.WithFormatter(pterm.LogFormatterJSON)
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard)
}
