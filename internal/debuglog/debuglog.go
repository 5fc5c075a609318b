// Package debuglog provides optional file-based debug logging. A
// logger built from an empty path is a no-op, so callers log
// unconditionally.
package debuglog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger wraps file-based debug logging with thread-safe access.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a logger writing to the specified path, creating parent
// directories if needed. An empty path returns a no-op logger.
func New(logPath string) (*Logger, error) {
	if logPath == "" {
		return &Logger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &Logger{file: f}
	logger.Log("=== Debug log started at %s ===", time.Now().Format(time.RFC3339))
	return logger, nil
}

// NewForProject creates a debug logger under the project's
// .stagehand/logs directory, falling back to a no-op logger on error.
func NewForProject(projectRoot string) *Logger {
	logPath := filepath.Join(projectRoot, ".stagehand", "logs", "debug.log")
	logger, err := New(logPath)
	if err != nil {
		return &Logger{}
	}
	return logger
}

// Log writes a timestamped message. No-op loggers discard it.
func (l *Logger) Log(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.file, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
