// v1
// internal/logging/logging.go
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Init builds the process logger writing to both stdout and the given log
// file. It returns the logger and the opened file so the caller can
// Close() on shutdown; when the file cannot be opened the logger falls
// back to stdout only.
func Init(logPath string) (*slog.Logger, *os.File) {
	if dir := filepath.Dir(logPath); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
		logger.Error("failed to open log file; falling back to stdout only", "path", logPath, "err", err)
		return logger, nil
	}

	mw := io.MultiWriter(os.Stdout, f)
	handler := slog.NewTextHandler(mw, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler)
	logger.Info("logger initialized", "file", logPath)
	return logger, f
}
