package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newLogger builds the run logger. Logs go to stderr, as text on a terminal
// and as JSON otherwise, or to logFile which the returned closer closes.
func newLogger(logFile string, verbosity int, runID string) (*slog.Logger, io.Closer, error) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer
		tty    = term.IsTerminal(int(os.Stderr.Fd()))
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		w, closer, tty = f, f, false
	}

	options := &slog.HandlerOptions{Level: level(verbosity)}
	var handler slog.Handler
	if tty {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler).With("run", runID), closer, nil
}

func level(verbosity int) slog.Level {
	if verbosity > 0 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
