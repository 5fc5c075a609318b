package debuglog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Log("delegating task %s", "task-0")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "delegating task task-0") {
		t.Errorf("log content = %q", data)
	}
}

func TestNoOpLogger(t *testing.T) {
	l, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Logging and closing a no-op logger must not panic.
	l.Log("discarded %d", 1)
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
