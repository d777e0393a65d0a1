package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MatusOllah/slogcolor"
)

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// setupLogging installs a colored handler on stderr as the default logger.
func setupLogging(level string) *slog.Logger {
	lvl, err := parseLevel(level)

	opts := *slogcolor.DefaultOptions
	opts.Level = lvl
	opts.TimeFormat = time.DateTime
	logger := slog.New(slogcolor.NewHandler(os.Stderr, &opts))
	slog.SetDefault(logger)

	if err != nil {
		logger.Warn("falling back to info logging", "error", err)
	}
	return logger
}
