package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinReadWrite(t *testing.T) {
	dir := t.TempDir()
	reg := NewBuiltin(dir, nil)

	res := reg.Execute(context.Background(), "write_file", json.RawMessage(`{"path":"notes/hello.txt","content":"hi there"}`))
	if !res.Success {
		t.Fatalf("write_file failed: %s", res.Error)
	}

	data, err := os.ReadFile(filepath.Join(dir, "notes", "hello.txt"))
	if err != nil || string(data) != "hi there" {
		t.Fatalf("file not written correctly: %q, %v", data, err)
	}

	res = reg.Execute(context.Background(), "read_file", json.RawMessage(`{"path":"notes/hello.txt"}`))
	if !res.Success {
		t.Fatalf("read_file failed: %s", res.Error)
	}
	if !strings.Contains(res.Output, "hi there") {
		t.Errorf("read output missing content: %q", res.Output)
	}
	if !strings.Contains(res.Output, "1\t") {
		t.Errorf("read output missing line numbers: %q", res.Output)
	}
}

func TestBuiltinListDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	reg := NewBuiltin(dir, nil)
	res := reg.Execute(context.Background(), "list_dir", json.RawMessage(`{}`))
	if !res.Success {
		t.Fatalf("list_dir failed: %s", res.Error)
	}
	if !strings.Contains(res.Output, "a.txt") || !strings.Contains(res.Output, "sub/") {
		t.Errorf("unexpected listing: %q", res.Output)
	}
}

func TestBuiltinUnknownTool(t *testing.T) {
	reg := NewBuiltin(t.TempDir(), nil)
	res := reg.Execute(context.Background(), "teleport", nil)
	if res.Success {
		t.Fatal("unknown tool should not succeed")
	}
	if !strings.Contains(res.Error, "teleport") {
		t.Errorf("error should name the unknown tool: %q", res.Error)
	}
}

func TestBuiltinShellEmptyCommand(t *testing.T) {
	reg := NewBuiltin(t.TempDir(), nil)
	res := reg.Execute(context.Background(), "shell", json.RawMessage(`{"command":"  "}`))
	if res.Success {
		t.Fatal("empty command should fail")
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	if !policy.Destructive("shell", nil) || !policy.Destructive("write_file", nil) {
		t.Error("shell and write_file should be gated")
	}
	if policy.Destructive("read_file", nil) || policy.Destructive("list_dir", nil) {
		t.Error("read-only tools should not be gated")
	}
}

func TestResultContent(t *testing.T) {
	if (Result{Success: true, Output: "ok"}).Content() != "ok" {
		t.Error("successful result should surface output")
	}
	if (Result{Error: "boom"}).Content() != "boom" {
		t.Error("failed result should surface error")
	}
}
