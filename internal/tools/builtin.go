package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stagehand/internal/exec"
	"stagehand/internal/llm"
)

// maxOutputBytes caps tool output fed back into the conversation.
const maxOutputBytes = 64 * 1024

// Builtin is the default tool registry: shell plus basic file access,
// rooted at a working directory.
type Builtin struct {
	workDir string
	runner  exec.CommandRunner
}

// NewBuiltin creates the builtin registry for the given working
// directory. A nil runner defaults to os/exec with a 5 minute bound.
func NewBuiltin(workDir string, runner exec.CommandRunner) *Builtin {
	if runner == nil {
		runner = exec.NewRunner(5 * time.Minute)
	}
	return &Builtin{workDir: workDir, runner: runner}
}

// Definitions implements Registry.
func (b *Builtin) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        "shell",
			Description: "Run a shell command in the working directory and return combined stdout/stderr.",
			Properties: map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The command line to run through sh -c",
				},
			},
			Required: []string{"command"},
		},
		{
			Name:        "read_file",
			Description: "Read a file relative to the working directory. Returns contents with line numbers.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the file to read",
				},
			},
			Required: []string{"path"},
		},
		{
			Name:        "write_file",
			Description: "Write content to a file relative to the working directory, creating parent directories as needed.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write",
				},
			},
			Required: []string{"path", "content"},
		},
		{
			Name:        "list_dir",
			Description: "List the entries of a directory relative to the working directory.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory to list (defaults to the working directory)",
				},
			},
		},
	}
}

// Execute implements Registry.
func (b *Builtin) Execute(ctx context.Context, name string, input json.RawMessage) Result {
	start := time.Now()
	var res Result
	switch name {
	case "shell":
		res = b.execShell(ctx, input)
	case "read_file":
		res = b.execRead(input)
	case "write_file":
		res = b.execWrite(input)
	case "list_dir":
		res = b.execList(input)
	default:
		res = Result{Error: fmt.Sprintf("unknown tool %q", name)}
	}
	res.Duration = time.Since(start)
	res.Output = truncate(res.Output)
	return res
}

func (b *Builtin) execShell(ctx context.Context, input json.RawMessage) Result {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return Result{Error: fmt.Sprintf("invalid parameters: %v", err)}
	}
	if strings.TrimSpace(params.Command) == "" {
		return Result{Error: "command must not be empty"}
	}

	out, err := b.runner.RunShell(ctx, b.workDir, params.Command)
	if err != nil {
		return Result{Error: fmt.Sprintf("%v\n%s", err, truncate(string(out)))}
	}
	return Result{Success: true, Output: string(out)}
}

func (b *Builtin) execRead(input json.RawMessage) Result {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return Result{Error: fmt.Sprintf("invalid parameters: %v", err)}
	}

	content, err := os.ReadFile(b.resolve(params.Path))
	if err != nil {
		return Result{Error: fmt.Sprintf("read file: %v", err)}
	}

	var sb strings.Builder
	for i, line := range strings.Split(string(content), "\n") {
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, line)
	}
	return Result{Success: true, Output: sb.String()}
}

func (b *Builtin) execWrite(input json.RawMessage) Result {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return Result{Error: fmt.Sprintf("invalid parameters: %v", err)}
	}

	path := b.resolve(params.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Result{Error: fmt.Sprintf("create directory: %v", err)}
	}
	if err := os.WriteFile(path, []byte(params.Content), 0644); err != nil {
		return Result{Error: fmt.Sprintf("write file: %v", err)}
	}
	return Result{Success: true, Output: fmt.Sprintf("wrote %d bytes to %s", len(params.Content), params.Path)}
}

func (b *Builtin) execList(input json.RawMessage) Result {
	var params struct {
		Path string `json:"path"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return Result{Error: fmt.Sprintf("invalid parameters: %v", err)}
		}
	}

	entries, err := os.ReadDir(b.resolve(params.Path))
	if err != nil {
		return Result{Error: fmt.Sprintf("list directory: %v", err)}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return Result{Success: true, Output: strings.Join(names, "\n")}
}

// resolve anchors relative paths at the working directory.
func (b *Builtin) resolve(path string) string {
	if path == "" {
		return b.workDir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.workDir, path)
}

func truncate(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes] + "\n... (output truncated)"
	}
	return s
}

// Compile-time interface check.
var _ Registry = (*Builtin)(nil)
