package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Autonomous coding-agent orchestrator",
	Long: `Stagehand coordinates autonomous coding agents over a dependency-aware
task queue. It plans an execution order, delegates each ready task to a
sub-agent backed by an LLM provider, gates destructive tool calls through
trust and confirmation, and recovers from transient failures.

Strategies:
  parallel        all tasks at once, bounded only by the task count
  sequential      one task at a time, in submission order
  priority-based  high before medium before low priority
  pipeline        topological order over declared dependencies`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: XDG lookup)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}
