// Package tools provides the tool registry consumed by the turn loop,
// plus a builtin set of file and shell tools.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"stagehand/internal/llm"
)

// Result is the outcome of one tool execution.
type Result struct {
	// Success is false when the tool reported an error.
	Success bool `json:"success"`
	// Output is the tool's output on success.
	Output string `json:"output,omitempty"`
	// Error is the failure text when Success is false.
	Error string `json:"error,omitempty"`
	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`
}

// Content returns the text to feed back to the model.
func (r Result) Content() string {
	if r.Success {
		return r.Output
	}
	return r.Error
}

// Registry is the tool surface the turn loop depends on.
type Registry interface {
	// Definitions returns the tool schemas to advertise to the model.
	Definitions() []llm.ToolDefinition
	// Execute runs a tool by name with JSON input. Unknown tools and
	// tool failures are reported in the Result, not as errors.
	Execute(ctx context.Context, name string, input json.RawMessage) Result
}

// DestructivePolicy decides which tools need confirmation before running.
type DestructivePolicy interface {
	// Destructive reports whether a call may modify state outside the
	// conversation (write files, run commands).
	Destructive(name string, input json.RawMessage) bool
}

// defaultPolicy gates the builtin tools that mutate the workspace.
type defaultPolicy struct{}

// Destructive implements DestructivePolicy.
func (defaultPolicy) Destructive(name string, input json.RawMessage) bool {
	switch name {
	case "shell", "write_file":
		return true
	default:
		return false
	}
}

// DefaultPolicy returns the policy used when a caller supplies none:
// shell and write_file are gated, read-only tools are not.
func DefaultPolicy() DestructivePolicy {
	return defaultPolicy{}
}
