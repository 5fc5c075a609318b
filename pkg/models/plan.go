package models

import "time"

// Strategy selects how the planner orders tasks and bounds concurrency.
type Strategy string

const (
	// StrategyParallel runs every task at once, in input order.
	StrategyParallel Strategy = "parallel"
	// StrategySequential runs tasks one at a time, in input order.
	StrategySequential Strategy = "sequential"
	// StrategyPriority orders tasks high > medium > low, ties in input order.
	StrategyPriority Strategy = "priority-based"
	// StrategyPipeline orders tasks topologically over the dependency graph.
	StrategyPipeline Strategy = "pipeline"
)

// Valid returns true if the strategy is a known value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyParallel, StrategySequential, StrategyPriority, StrategyPipeline:
		return true
	default:
		return false
	}
}

// UnresolvedDependency records a dependency reference that points at a
// task id not present in the planned set.
type UnresolvedDependency struct {
	// TaskID is the task carrying the dangling reference.
	TaskID string `json:"task_id"`
	// Dependency is the id that could not be resolved.
	Dependency string `json:"dependency"`
}

// ExecutionPlan is the planner's output: an ordering, a concurrency
// bound, and a rough duration estimate.
type ExecutionPlan struct {
	// Order holds every task id exactly once, in execution order.
	// Tasks with unresolved dependencies are still included here.
	Order []string `json:"order"`
	// MaxParallelism is the number of tasks that may run at once.
	MaxParallelism int `json:"max_parallelism"`
	// EstimatedTime is the heuristic duration estimate for the whole plan.
	EstimatedTime time.Duration `json:"estimated_time_ms"`
	// Unresolved lists dependency references that point outside the task set.
	Unresolved []UnresolvedDependency `json:"unresolved_dependencies,omitempty"`
}
