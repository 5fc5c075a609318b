// Package exec abstracts external command execution so tool tests can
// fake it.
package exec

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CommandRunner runs external commands on behalf of the shell tool.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a command line through "sh -c".
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)
}

// Runner implements CommandRunner using os/exec.
type Runner struct {
	// Timeout bounds each command when the caller's context has no
	// earlier deadline. Zero means no additional bound.
	Timeout time.Duration
}

// NewRunner creates a Runner with the given per-command timeout.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *Runner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("command %s timed out after %s", name, r.Timeout)
	}
	return out, err
}

// RunShell executes a command line through "sh -c".
func (r *Runner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	return r.Run(ctx, workDir, "sh", "-c", command)
}

// Compile-time interface check.
var _ CommandRunner = (*Runner)(nil)
