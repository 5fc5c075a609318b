// Package queue provides the in-memory task store backing the coordinator.
package queue

import (
	"fmt"
	"sync"
	"time"

	"stagehand/pkg/models"
)

// Queue is an in-memory store of task records plus dependency edges.
// It is the single writer of task status: callers signal completion
// through Complete and Fail rather than mutating tasks directly.
type Queue struct {
	mu sync.RWMutex
	// tasks maps task ID to the task record.
	tasks map[string]*models.Task
	// order holds task IDs in insertion order.
	order []string
	// completionOrder holds task IDs in the order Complete was called.
	completionOrder []string
	// next is the index used for auto-assigned IDs.
	next int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		tasks: make(map[string]*models.Task),
	}
}

// Add inserts a task and returns its id. When idOverride is empty, an
// id of the form task-<index> is assigned in insertion order; these are
// stable and unique within a queue instance.
func (q *Queue) Add(spec models.TaskSpec, idOverride string) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := idOverride
	if id == "" {
		// Skip indexes whose task-<n> id was already taken by an override.
		for {
			id = fmt.Sprintf("task-%d", q.next)
			q.next++
			if _, taken := q.tasks[id]; !taken {
				break
			}
		}
	}

	priority := spec.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	deps := make([]string, len(spec.DependsOn))
	copy(deps, spec.DependsOn)

	q.tasks[id] = &models.Task{
		ID:                  id,
		Description:         spec.Description,
		Priority:            priority,
		EstimatedDurationMs: spec.EstimatedDurationMs,
		DependsOn:           deps,
		Status:              models.TaskStatusPending,
		CreatedAt:           time.Now(),
	}
	q.order = append(q.order, id)
	return id
}

// Start moves a pending task to in_progress. It is a no-op for unknown
// ids and for tasks already past pending.
func (q *Queue) Start(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok || !task.Status.CanTransition(models.TaskStatusInProgress) {
		return
	}
	task.Status = models.TaskStatusInProgress
}

// Complete marks a task completed with the given result and appends it
// to the completion order. Unknown ids are a no-op: late or duplicate
// signals from concurrent completions are tolerated, not errors.
func (q *Queue) Complete(id string, result string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok || task.Status.Terminal() {
		return
	}
	if task.Status == models.TaskStatusPending {
		// Direct completion without an explicit Start is still forward motion.
		task.Status = models.TaskStatusInProgress
	}
	now := time.Now()
	task.Status = models.TaskStatusCompleted
	task.Result = result
	task.CompletedAt = &now
	q.completionOrder = append(q.completionOrder, id)
}

// Fail marks a task failed with the given error. Unknown ids and tasks
// already in a terminal state are a no-op.
func (q *Queue) Fail(id string, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok || task.Status.Terminal() {
		return
	}
	if task.Status == models.TaskStatusPending {
		task.Status = models.TaskStatusInProgress
	}
	now := time.Now()
	task.Status = models.TaskStatusFailed
	task.Error = errMsg
	task.CompletedAt = &now
}

// Ready returns all pending tasks whose every dependency is completed,
// in insertion order. A dependency that does not exist in the queue is
// never satisfied, so its dependent never becomes ready.
func (q *Queue) Ready() []*models.Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var ready []*models.Task
	for _, id := range q.order {
		task := q.tasks[id]
		if task.Status != models.TaskStatusPending {
			continue
		}
		satisfied := true
		for _, depID := range task.DependsOn {
			dep, exists := q.tasks[depID]
			if !exists || dep.Status != models.TaskStatusCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, task)
		}
	}
	return ready
}

// Pending returns all tasks still in the pending state, in insertion order.
func (q *Queue) Pending() []*models.Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var pending []*models.Task
	for _, id := range q.order {
		if task := q.tasks[id]; task.Status == models.TaskStatusPending {
			pending = append(pending, task)
		}
	}
	return pending
}

// CompletionOrder returns task ids in the order Complete was called.
func (q *Queue) CompletionOrder() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]string, len(q.completionOrder))
	copy(out, q.completionOrder)
	return out
}

// Get returns the task for an id, or nil if not found.
func (q *Queue) Get(id string) *models.Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.tasks[id]
}

// Tasks returns all tasks in insertion order.
func (q *Queue) Tasks() []*models.Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*models.Task, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.tasks[id])
	}
	return out
}

// Len returns the number of tasks in the queue.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// Done returns true when every task has reached a terminal state.
func (q *Queue) Done() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, task := range q.tasks {
		if !task.Status.Terminal() {
			return false
		}
	}
	return true
}
