package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options selects level, handler format and an optional file tee.
type Options struct {
	Level  string
	Format string
	File   string
}

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return slog.New(newHandler(os.Stdout, Options{Level: level}))
}

// Open builds a logger writing to stdout and, when opts.File is set, to that
// file as well. The returned closer releases the file.
func Open(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.File == "" {
		return slog.New(newHandler(os.Stdout, opts)), io.NopCloser(nil), nil
	}

	if dir := filepath.Dir(opts.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(newHandler(io.MultiWriter(os.Stdout, f), opts)), f, nil
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: levelFromString(opts.Level)}
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
