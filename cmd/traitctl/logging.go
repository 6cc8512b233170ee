package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/c360/traitstore/config"
)

func setupLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level := cfg.SlogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
