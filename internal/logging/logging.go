// ABOUTME: Default logger configuration
// ABOUTME: Installs an slog handler by level, to stdout or a log file
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
)

// ErrUnknownLevel is returned for a log level outside none|error|warn|info|debug
var ErrUnknownLevel = errors.New("unexpected log level")

// ConfigureDefaultLogger configures the slog default logger with a level and an optional output file.
//
// Valid log levels are "none", "error", "warn", "info", "debug". Any other value returns an error.
// logFile may name a file (text goes to stdout when it is empty); file output is JSON.
//
// Returns the opened file so the caller can close it:
//
//	f, err := logging.ConfigureDefaultLogger("info", path, slog.HandlerOptions{})
//	if f != nil {
//		defer f.Close()
//	}
func ConfigureDefaultLogger(logLevel string, logFile string, opts slog.HandlerOptions) (*os.File, error) {
	switch logLevel {
	case "none":
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	case "error":
		opts.Level = slog.LevelError
	case "warn":
		opts.Level = slog.LevelWarn
	case "info":
		opts.Level = slog.LevelInfo
	case "debug":
		opts.Level = slog.LevelDebug
	default:
		return nil, ErrUnknownLevel
	}

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &opts)))
		return nil, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &opts)))
	return f, nil
}

