// Package logging builds the slog loggers shared by the onelane server and CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text" // human-readable key=value
	FormatJSON Format = "json" // one JSON object per line
)

// Options configures a logger.
type Options struct {
	Level   slog.Level
	Format  Format
	Service string    // Added as a "service" attribute when set
	Writer  io.Writer // Defaults to stderr
}

// New creates a logger from opts.
//
// Output goes to stderr unless a writer is given, so CLI output on stdout
// stays machine-readable.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}
	return logger
}

// FromStrings builds a stderr logger for service from textual level and
// format settings. Unknown values fall back to info and text.
func FromStrings(service, level, format string) *slog.Logger {
	f, err := ParseFormat(format)
	if err != nil {
		f = FormatText
	}
	return New(Options{Level: ParseLevel(level), Format: f, Service: service})
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LookupLevel converts a level name to slog.Level, rejecting unknown names.
func LookupLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseLevel is LookupLevel with unknown names mapped to info.
func ParseLevel(s string) slog.Level {
	level, _ := LookupLevel(s)
	return level
}

// ParseFormat validates a log format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}
