package main

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

var logger *slog.Logger

func ResolveLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger writes text to an interactive stderr and JSON otherwise.
func InitLogger(level string) error {
	logLevel, err := ResolveLogLevel(level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger = slog.New(handler)
	return nil
}
