// Package logging implements the logging plane (component H): a named
// logger per component, writing to both stdout and a timestamped file
// under ADSB_LOG_DIR, with a level configurable per component from the
// environment.
//
// No third-party structured logger appears anywhere in this pipeline's
// dependency pack, so this one ambient concern is built on the standard
// library's log/slog rather than an ecosystem logging library — see
// DESIGN.md for the justification this repository's conventions require
// before reaching for the standard library over a pack dependency.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// New creates a named logger for component, writing to both stdout and
// tmp/logs/<component>_<YYYYMMDD_HHMMSS>.log under cfg's log directory. The
// level defaults to the pipeline-wide default and can be overridden per
// component via <COMPONENT>_LOG_LEVEL.
func New(logDir, component string, levels map[string]string, defaultLevel string) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", component, timestamp))

	//nolint:gosec // logPath is built entirely from application-controlled inputs
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level := defaultLevel
	if override, ok := levels[component]; ok {
		level = override
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})

	logger := slog.New(handler).With("component", component)
	return logger, file.Close, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
