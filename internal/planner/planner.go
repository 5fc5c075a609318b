// Package planner turns a task set and a strategy into an execution plan.
package planner

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"stagehand/pkg/models"
)

// ErrCircularDependency indicates the dependency graph contains a cycle.
var ErrCircularDependency = errors.New("circular dependency detected")

// Per-task weights for the duration heuristic. The time model is a
// deliberately simple estimate, not a simulator.
const (
	parallelTaskWeight   = 100 * time.Millisecond
	sequentialTaskWeight = 100 * time.Millisecond
	priorityTaskWeight   = 80 * time.Millisecond
	pipelineTaskWeight   = 90 * time.Millisecond

	// pipelineParallelism models a pipeline as two-stage overlap. It is a
	// fixed constant, not the graph's maximum antichain; downstream
	// callers depend on this literal value.
	pipelineParallelism = 2
)

// Plan produces an execution plan for the given tasks. It is a pure
// function: tasks are not mutated and the same input yields the same plan.
func Plan(tasks []*models.Task, strategy models.Strategy) (*models.ExecutionPlan, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}

	ids, deps, unresolved := normalize(tasks)

	plan := &models.ExecutionPlan{
		MaxParallelism: len(tasks),
		Unresolved:     unresolved,
	}

	switch strategy {
	case models.StrategyParallel:
		plan.Order = ids
		if len(tasks) > 0 {
			// All tasks assumed to run simultaneously: the estimate is the
			// maximum single-task weight.
			plan.EstimatedTime = parallelTaskWeight
		}

	case models.StrategySequential:
		plan.Order = ids
		plan.MaxParallelism = 1
		plan.EstimatedTime = time.Duration(len(tasks)) * sequentialTaskWeight

	case models.StrategyPriority:
		order := make([]string, len(ids))
		copy(order, ids)
		ranks := make(map[string]int, len(tasks))
		for i, task := range tasks {
			ranks[ids[i]] = task.Priority.Rank()
		}
		sort.SliceStable(order, func(i, j int) bool {
			return ranks[order[i]] < ranks[order[j]]
		})
		plan.Order = order
		plan.EstimatedTime = time.Duration(len(tasks)) * priorityTaskWeight

	case models.StrategyPipeline:
		order, err := topologicalSort(ids, deps)
		if err != nil {
			return nil, err
		}
		plan.Order = order
		plan.MaxParallelism = pipelineParallelism
		plan.EstimatedTime = time.Duration(len(tasks)) * pipelineTaskWeight
	}

	return plan, nil
}

// normalize assigns auto ids to tasks without one, resolves numeric
// dependency references ("0" -> "task-0"), and splits dependencies into
// resolvable edges and unresolved references. Unresolved references are
// reported, never silently dropped, and are excluded from the graph used
// for topological sorting.
func normalize(tasks []*models.Task) (ids []string, deps map[string][]string, unresolved []models.UnresolvedDependency) {
	ids = make([]string, len(tasks))
	for i, task := range tasks {
		if task.ID != "" {
			ids[i] = task.ID
		} else {
			ids[i] = fmt.Sprintf("task-%d", i)
		}
	}

	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	deps = make(map[string][]string, len(tasks))
	for i, task := range tasks {
		id := ids[i]
		for _, ref := range task.DependsOn {
			dep := ref
			// Purely numeric references address tasks by insertion index.
			if n, err := strconv.Atoi(ref); err == nil {
				auto := fmt.Sprintf("task-%d", n)
				if present[auto] {
					dep = auto
				}
			}
			if !present[dep] {
				unresolved = append(unresolved, models.UnresolvedDependency{TaskID: id, Dependency: ref})
				continue
			}
			deps[id] = append(deps[id], dep)
		}
	}
	return ids, deps, unresolved
}

// topologicalSort orders ids so every task appears after all of its
// dependencies, using Kahn's algorithm. Among tasks whose dependencies
// are satisfied, input order is preserved. A cycle fails the whole plan.
func topologicalSort(ids []string, deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		indegree[id] = len(deps[id])
		for _, dep := range deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	// Frontier is kept in input order for determinism.
	var frontier []string
	for _, id := range ids {
		if indegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	position := make(map[string]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	order := make([]string, 0, len(ids))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var releasing []string
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				releasing = append(releasing, dependent)
			}
		}
		sort.Slice(releasing, func(i, j int) bool {
			return position[releasing[i]] < position[releasing[j]]
		})
		frontier = append(frontier, releasing...)
	}

	if len(order) != len(ids) {
		return nil, ErrCircularDependency
	}
	return order, nil
}
