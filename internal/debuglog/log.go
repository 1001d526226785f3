// Package debuglog routes the application's diagnostics to a leveled slog
// logger writing to a file, so a running scheduler can be inspected without
// polluting command output.
package debuglog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const levelOff = slog.Level(127)

// ParseLogLevel maps a config string onto a slog level. Unknown values
// default to INFO; "OFF" disables output entirely.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "OFF":
		return levelOff
	default:
		return slog.LevelInfo
	}
}

var (
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File
)

// Setup configures the package logger with the given level and file path.
// An empty path defaults to ~/.newsroom/newsroom.log; the OFF level keeps
// the discarding logger in place.
func Setup(level slog.Level, filePath string) error {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if level == levelOff {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	if filePath == "" {
		home, _ := os.UserHomeDir()
		filePath = filepath.Join(home, ".newsroom", "newsroom.log")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", filePath, err)
	}

	logFile = f
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return nil
}

// Logger returns the configured logger. Safe to call before Setup; output
// is discarded until then.
func Logger() *slog.Logger {
	return logger
}

// Close closes the log file if open
func Close() error {
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return err
	}
	return nil
}
