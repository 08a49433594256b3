// Package log configures the process-wide slog logger.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dotse/slug"
	slogmulti "github.com/samber/slog-multi"
)

type Level string

const (
	Debug Level = "debug"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// ParseLevel accepts a level name in any case. Unknown names return false.
func ParseLevel(s string) (Level, bool) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case Debug, Info, Warn, Error:
		return l, true
	default:
		return "", false
	}
}

// ToSlogLevel maps our levels to the equivalent slog level.
func ToSlogLevel(level Level) slog.Level {
	switch level {
	case Debug:
		return slog.LevelDebug
	case Info:
		return slog.LevelInfo
	case Warn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// NewLogger builds a logger writing to console and, when logPath is
// non-empty, also appending to that file. The returned function closes the
// file.
func NewLogger(console io.Writer, logPath string, level Level) (*slog.Logger, func(), error) {
	var (
		closer = func() {}
		opts   = slug.HandlerOptions{
			HandlerOptions: slog.HandlerOptions{
				Level: ToSlogLevel(level),
			},
		}
		handlers = []slog.Handler{slug.NewHandler(opts, console)}
	)

	if logPath != "" {
		logFile, errLogFile := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if errLogFile != nil {
			return nil, nil, fmt.Errorf("open log file: %w", errLogFile)
		}

		closer = func() {
			if errClose := logFile.Close(); errClose != nil {
				fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", errClose)
			}
		}

		handlers = append(handlers, slug.NewHandler(opts, logFile))
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// Setup installs a logger from NewLogger as the slog default, tagged with
// runID when set.
func Setup(console io.Writer, logPath string, level Level, runID string) (func(), error) {
	logger, closer, err := NewLogger(console, logPath, level)
	if err != nil {
		return nil, err
	}
	if runID != "" {
		logger = logger.With(slog.String("run_id", runID))
	}
	slog.SetDefault(logger)

	return closer, nil
}

// Closer closes c and logs any failure.
func Closer(c io.Closer) {
	if errClose := c.Close(); errClose != nil {
		slog.Error("Failed to close", slog.String("error", errClose.Error()))
	}
}
