package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stagehand/internal/planner"
	"stagehand/internal/queue"
	"stagehand/pkg/models"
)

var planStrategy string

var planCmd = &cobra.Command{
	Use:   "plan <task-file.yaml>",
	Short: "Show the execution plan for a task set without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  showPlan,
}

func init() {
	planCmd.Flags().StringVar(&planStrategy, "strategy", "", "Execution strategy: parallel, sequential, priority-based, pipeline")
}

func showPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tf, err := loadTasks(args)
	if err != nil {
		return err
	}

	strategy := models.Strategy(cfg.Execution.Strategy)
	if tf.Strategy != "" {
		strategy = models.Strategy(tf.Strategy)
	}
	if planStrategy != "" {
		strategy = models.Strategy(planStrategy)
	}

	q := queue.New()
	for _, spec := range tf.Tasks {
		q.Add(spec, "")
	}
	plan, err := planner.Plan(q.Tasks(), strategy)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("Strategy:       %s\n", strategy)
	fmt.Printf("Parallelism:    %d\n", plan.MaxParallelism)
	fmt.Printf("Estimated time: %s\n", plan.EstimatedTime)
	fmt.Println("Order:")
	for i, id := range plan.Order {
		task := q.Get(id)
		desc := ""
		if task != nil {
			desc = task.Description
		}
		fmt.Printf("  %2d. %s  %s\n", i+1, id, desc)
	}
	if len(plan.Unresolved) > 0 {
		yellow := color.New(color.FgYellow)
		yellow.Println("Unresolved dependencies:")
		for _, u := range plan.Unresolved {
			fmt.Printf("  %s -> %s\n", u.TaskID, u.Dependency)
		}
	}
	return nil
}
