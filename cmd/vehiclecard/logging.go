package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dshills/vehiclecard/internal/config"
)

// parseLevel parses a log level name. Unknown names mean info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process logger. With the terminal UI running, logs
// go to path or nowhere, since stderr shares the screen.
func newLogger(cfg config.LoggingConfig, path string, headless bool) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closer := func() {}
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closer = func() { _ = f.Close() }
	case !headless:
		return slog.New(slog.DiscardHandler), closer, nil
	}

	hopts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}
	return slog.New(h), closer, nil
}
