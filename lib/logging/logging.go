// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by the parley binaries.
//
// Output is human-readable text when the destination is a terminal and
// JSON when it is piped, redirected, or a file. The TUI owns the
// terminal while it runs, so the client sends logs to a file or
// discards them.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Options selects where and how much to log.
type Options struct {
	// Level is debug, info, warn, or error. Empty means info.
	Level string

	// Format is auto, text, or json. Empty means auto.
	Format string

	// File, when set, receives the log instead of Output.
	File string

	// Output is the default destination. Nil means os.Stderr.
	Output io.Writer

	// Discard drops every record unless File is set.
	Discard bool
}

// New returns a logger for options and a function that closes any file
// it opened.
func New(options Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, nil, err
	}

	output := options.Output
	if output == nil {
		output = os.Stderr
	}
	closer := func() error { return nil }

	switch {
	case options.File != "":
		if err := os.MkdirAll(filepath.Dir(options.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		file, err := os.OpenFile(options.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		output = file
		closer = file.Close
	case options.Discard:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closer, nil
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch options.Format {
	case "", "auto":
		if isTerminal(output) {
			handler = slog.NewTextHandler(output, handlerOptions)
		} else {
			handler = slog.NewJSONHandler(output, handlerOptions)
		}
	case "text":
		handler = slog.NewTextHandler(output, handlerOptions)
	case "json":
		handler = slog.NewJSONHandler(output, handlerOptions)
	default:
		closer()
		return nil, nil, fmt.Errorf("unknown log format %q", options.Format)
	}
	return slog.New(handler), closer, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
