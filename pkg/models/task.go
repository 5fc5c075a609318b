package models

import "time"

// TaskStatus represents the current state of a task.
// Transitions form a one-way lattice: pending -> in_progress -> completed|failed.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition returns true if moving from s to next respects the lattice.
// Backward moves and transitions out of a terminal state are rejected.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// Priority represents the scheduling priority of a task.
type Priority string

const (
	// PriorityHigh orders the task before medium and low ones.
	PriorityHigh Priority = "high"
	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"
	// PriorityLow orders the task after high and medium ones.
	PriorityLow Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank returns a sortable rank where a lower number means higher priority.
// Unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Task represents a unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Description is what the task should accomplish.
	Description string `json:"description"`
	// Priority is the scheduling priority of the task.
	Priority Priority `json:"priority"`
	// EstimatedDurationMs is a caller-supplied duration hint in milliseconds.
	EstimatedDurationMs int64 `json:"estimated_duration_ms,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result contains the output of a completed task.
	Result string `json:"result,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was added to the queue.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskSpec describes a task to be added to a queue.
type TaskSpec struct {
	// Description is what the task should accomplish.
	Description string `json:"description" yaml:"description"`
	// Priority is the scheduling priority; empty defaults to medium.
	Priority Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	// EstimatedDurationMs is an optional duration hint in milliseconds.
	EstimatedDurationMs int64 `json:"estimated_duration_ms,omitempty" yaml:"estimated_duration_ms,omitempty"`
	// DependsOn lists ids (or insertion indexes as numeric strings) of
	// tasks that must complete first.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}
