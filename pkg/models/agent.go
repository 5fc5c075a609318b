package models

import (
	"fmt"
	"time"
)

// AgentRole is the role a delegated sub-agent assumes for a task.
// The set is closed; unknown roles are rejected at delegation time.
type AgentRole string

const (
	// RoleCoder implements code changes.
	RoleCoder AgentRole = "coder"
	// RoleReviewer reviews existing work and reports issues.
	RoleReviewer AgentRole = "reviewer"
	// RoleTester writes and runs tests.
	RoleTester AgentRole = "tester"
	// RoleResearcher explores the codebase and gathers context.
	RoleResearcher AgentRole = "researcher"
)

// Valid returns true if the role is a known value.
func (r AgentRole) Valid() bool {
	switch r {
	case RoleCoder, RoleReviewer, RoleTester, RoleResearcher:
		return true
	default:
		return false
	}
}

// ParseRole converts a string to an AgentRole, rejecting unknown values.
func ParseRole(s string) (AgentRole, error) {
	r := AgentRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown agent role %q", s)
	}
	return r, nil
}

// SystemPrompt returns the base system prompt for the role.
func (r AgentRole) SystemPrompt() string {
	switch r {
	case RoleCoder:
		return "You are a software engineer. Implement the requested change using the available tools. Keep edits minimal and verify your work."
	case RoleReviewer:
		return "You are a code reviewer. Inspect the relevant files with the available tools and report concrete problems with file and line references."
	case RoleTester:
		return "You are a test engineer. Write tests for the requested behavior and run them with the available tools."
	case RoleResearcher:
		return "You are a codebase researcher. Explore with the available tools and summarize what you find. Do not modify files."
	default:
		return ""
	}
}

// DelegationStatus is the outcome category of one delegated task.
type DelegationStatus string

const (
	// DelegationCompleted indicates the sub-agent converged on a result.
	DelegationCompleted DelegationStatus = "completed"
	// DelegationFailed indicates the sub-agent exhausted its turn budget
	// or hit an execution error.
	DelegationFailed DelegationStatus = "failed"
	// DelegationError indicates the delegation request itself was invalid.
	DelegationError DelegationStatus = "error"
	// DelegationUnavailable indicates no provider or tool registry is wired up.
	DelegationUnavailable DelegationStatus = "unavailable"
)

// DelegationResult is the outcome of delegating one task to a sub-agent.
type DelegationResult struct {
	// AgentID identifies the sub-agent instance.
	AgentID string `json:"agent_id"`
	// TaskID is the task that was delegated.
	TaskID string `json:"task_id"`
	// Role is the role the sub-agent ran under.
	Role AgentRole `json:"role"`
	// Status categorizes the outcome.
	Status DelegationStatus `json:"status"`
	// Output is the sub-agent's final text output.
	Output string `json:"output,omitempty"`
	// Error describes the failure, if any.
	Error string `json:"error,omitempty"`
	// Turns is the number of model iterations the sub-agent consumed.
	Turns int `json:"turns"`
	// InputTokens and OutputTokens are the accumulated usage for the run.
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	// Duration is the wall-clock time of the delegation.
	Duration time.Duration `json:"duration"`
}

// Succeeded returns true if the delegation completed normally.
func (r DelegationResult) Succeeded() bool {
	return r.Status == DelegationCompleted
}
