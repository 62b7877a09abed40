package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup routes slog to a rotating file and installs it as the default
// logger. The TUI owns stdout, so nothing is written to the terminal.
//
// If the log directory can't be created, logs are discarded.
func Setup(path string, debug bool) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.WriteCloser = nopCloser{io.Discard}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, w
}

// Discard is a logger for tests and one-shot commands that want silence.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
