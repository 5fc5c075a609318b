package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stagehand/internal/config"
	"stagehand/internal/coordinator"
	"stagehand/internal/debuglog"
	"stagehand/internal/exec"
	"stagehand/internal/llm"
	"stagehand/internal/state"
	"stagehand/internal/tools"
	"stagehand/internal/turn"
	"stagehand/pkg/models"
)

var (
	runStrategy  string
	runRole      string
	runProvider  string
	runModel     string
	runAggregate string
	runMaxTurns  int
	runYes       bool
	runNoState   bool
	runResume    string
)

var runCmd = &cobra.Command{
	Use:   "run <task-file.yaml | task description>",
	Short: "Plan and execute a task set with coordinated agents",
	Long: `Run executes a task set. Pass a YAML task file, or free text for a
single ad-hoc task.

Task file format:

  strategy: pipeline
  role: coder
  tasks:
    - description: build the data layer
    - description: build the API on top
      depends_on: ["0"]
      priority: high

Dependencies may name task ids (task-0) or submission indexes ("0").`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTasks,
}

func init() {
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Execution strategy: parallel, sequential, priority-based, pipeline")
	runCmd.Flags().StringVar(&runRole, "role", "", "Agent role: coder, reviewer, tester, researcher")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider: anthropic, openai, google")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model override for the provider")
	runCmd.Flags().StringVar(&runAggregate, "aggregate", "merge", "Result aggregation: merge, vote, best, summary")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "Turn budget per delegated task")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Skip destructive-tool confirmations")
	runCmd.Flags().BoolVar(&runNoState, "no-state", false, "Do not persist session state")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume a session from its latest checkpoint")
}

func runTasks(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tf, err := loadTasks(args)
	if err != nil {
		return err
	}

	strategy := pickStrategy(tf, cfg)
	role, err := pickRole(tf, cfg)
	if err != nil {
		return err
	}
	aggStrategy := coordinator.AggregationStrategy(runAggregate)
	if !aggStrategy.Valid() {
		return fmt.Errorf("unknown aggregation strategy %q", runAggregate)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	registry := tools.NewBuiltin(workDir, exec.NewRunner(cfg.Execution.ToolTimeout))

	coord := coordinator.New(provider, registry, coordinator.Options{
		MaxTurns:         pickMaxTurns(cfg),
		TaskTimeout:      cfg.Execution.TaskTimeout,
		SkipConfirmation: runYes || cfg.Agents.SkipConfirmation,
		MaxParallelism:   cfg.Execution.Parallelism,
	})
	for _, name := range []string{"anthropic", "openai", "google"} {
		if name == provider.Name() {
			continue
		}
		if fallback := buildFallback(cfg, name); fallback != nil {
			coord.RegisterProvider(fallback)
		}
	}
	if !runYes && !cfg.Agents.SkipConfirmation {
		coord.SetConfirmer(newTerminalConfirmer())
	}
	if os.Getenv("STAGEHAND_DEBUG") != "" {
		dbg := debuglog.NewForProject(workDir)
		defer dbg.Close()
		coord.SetDebugLogger(dbg)
	}

	var db *state.DB
	var completed []string
	sessionID := uuid.New().String()[:8]
	if !runNoState {
		db, err = openStateDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := wireTrust(db, coord); err != nil {
			return err
		}
		if runResume != "" {
			sessionID = runResume
			cp, err := db.LatestCheckpoint(sessionID)
			if err != nil {
				return err
			}
			if cp != nil {
				completed = cp.CompletedTasks
				fmt.Printf("Resuming session %s: %d tasks already completed\n", sessionID, len(completed))
			}
			if err := db.UpdateSessionStatus(sessionID, state.SessionActive); err != nil {
				return err
			}
		} else if err := db.CreateSession(sessionID, args[0], provider.Name(), string(strategy)); err != nil {
			return err
		}

		// Snapshot after every batch so an interrupted run can resume.
		coord.SetBatchFunc(func(tasks []*models.Task, completionOrder []string) {
			cp := &state.Checkpoint{
				SessionID:      sessionID,
				Phase:          "execution",
				Tasks:          tasks,
				CompletedTasks: completionOrder,
			}
			if err := db.SaveCheckpoint(cp); err != nil {
				fmt.Fprintf(os.Stderr, "warning: saving checkpoint: %v\n", err)
			}
			if err := db.PruneCheckpoints(sessionID, cfg.State.CheckpointsKept); err != nil {
				fmt.Fprintf(os.Stderr, "warning: pruning checkpoints: %v\n", err)
			}
		})
	}

	run, err := coord.RunResumed(ctx, tf.Tasks, strategy, role, completed)
	if err != nil {
		if db != nil {
			status := state.SessionFailed
			if ctx.Err() != nil {
				status = state.SessionAborted
			}
			db.UpdateSessionStatus(sessionID, status)
		}
		return err
	}

	if db != nil {
		if err := recordRun(db, sessionID, run, ctx.Err() != nil); err != nil {
			fmt.Fprintf(os.Stderr, "warning: persisting session state: %v\n", err)
		}
	}

	printRun(run, aggStrategy)
	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted")
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

func pickStrategy(tf *taskFile, cfg *config.Config) models.Strategy {
	switch {
	case runStrategy != "":
		return models.Strategy(runStrategy)
	case tf.Strategy != "":
		return models.Strategy(tf.Strategy)
	default:
		return models.Strategy(cfg.Execution.Strategy)
	}
}

func pickRole(tf *taskFile, cfg *config.Config) (models.AgentRole, error) {
	name := cfg.Execution.Role
	if tf.Role != "" {
		name = tf.Role
	}
	if runRole != "" {
		name = runRole
	}
	return models.ParseRole(name)
}

func pickMaxTurns(cfg *config.Config) int {
	if runMaxTurns > 0 {
		return runMaxTurns
	}
	return cfg.Agents.MaxTurns
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	name := cfg.Provider.Name
	if runProvider != "" {
		name = runProvider
	}
	key, err := config.APIKey(cfg, name)
	if err != nil {
		return nil, err
	}
	model := cfg.Provider.Model
	if runModel != "" {
		model = runModel
	}
	return llm.New(name, llm.Options{APIKey: key, Model: model, MaxTokens: cfg.Provider.MaxTokens})
}

// buildFallback constructs a secondary provider if a key is available,
// so overload recovery has somewhere to switch to.
func buildFallback(cfg *config.Config, name string) llm.Provider {
	key, err := config.APIKey(cfg, name)
	if err != nil {
		return nil
	}
	p, err := llm.New(name, llm.Options{APIKey: key})
	if err != nil {
		return nil
	}
	return p
}

func openStateDB(cfg *config.Config) (*state.DB, error) {
	path := cfg.State.DBPath
	if path == "" {
		path = state.GlobalDBPath()
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// wireTrust replays persisted trust patterns into the coordinator's
// store and wires write-through for new project and global grants.
func wireTrust(db *state.DB, coord *coordinator.Coordinator) error {
	store := turn.NewTrustStore()
	patterns, err := db.TrustedPatterns()
	if err != nil {
		return err
	}
	for pattern, scope := range patterns {
		store.Trust(pattern, turn.TrustScope(scope))
	}
	store.SetPersistFunc(func(scope turn.TrustScope, pattern string) {
		if err := db.TrustPattern(pattern, string(scope)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: persisting trust pattern: %v\n", err)
		}
	})
	coord.SetTrustStore(store)
	return nil
}

// recordRun persists usage, outcome, and a resumable checkpoint. An
// interrupted run records the aborted status so a later `sessions`
// listing distinguishes it from a genuine failure.
func recordRun(db *state.DB, sessionID string, run *coordinator.RunResult, interrupted bool) error {
	var in, out int64
	failed := 0
	for _, r := range run.Results {
		in += r.InputTokens
		out += r.OutputTokens
		if !r.Succeeded() {
			failed++
		}
	}
	if err := db.AddSessionUsage(sessionID, in, out); err != nil {
		return err
	}

	status := state.SessionCompleted
	if failed > 0 {
		status = state.SessionFailed
	}
	if interrupted {
		status = state.SessionAborted
	}
	if err := db.UpdateSessionStatus(sessionID, status); err != nil {
		return err
	}

	return db.SaveCheckpoint(&state.Checkpoint{
		SessionID:      sessionID,
		Phase:          "done",
		Tasks:          run.Tasks,
		CompletedTasks: run.CompletionOrder,
	})
}

func printRun(run *coordinator.RunResult, aggStrategy coordinator.AggregationStrategy) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, r := range run.Results {
		if r.Succeeded() {
			green.Printf("✓ %s", r.TaskID)
		} else {
			red.Printf("✗ %s", r.TaskID)
		}
		fmt.Printf("  agent=%s role=%s turns=%d tokens=%d/%d (%s)\n",
			r.AgentID, r.Role, r.Turns, r.InputTokens, r.OutputTokens, r.Duration.Round(10*time.Millisecond))
		if r.Error != "" {
			fmt.Printf("    %s\n", r.Error)
		}
	}

	aggregated := coordinator.Aggregate(run.Results, aggStrategy)
	if aggregated != "" {
		fmt.Printf("\n%s\n", aggregated)
	}
}
