// Package coordinator schedules ready tasks from the queue, delegates
// each to an isolated sub-agent turn loop, records completions, and
// collapses the agents' outputs into one result.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stagehand/internal/debuglog"
	"stagehand/internal/llm"
	"stagehand/internal/planner"
	"stagehand/internal/queue"
	"stagehand/internal/recovery"
	"stagehand/internal/tools"
	"stagehand/internal/turn"
	"stagehand/pkg/models"
)

// DefaultMaxTurns is the per-delegation turn budget when the caller
// does not set one.
const DefaultMaxTurns = 10

// maxDelegationRetries bounds recovery-driven re-delegations of one
// task, independent of the classifier's own per-classification budget.
const maxDelegationRetries = 5

// Options configures a Coordinator.
type Options struct {
	// MaxTurns bounds each delegated sub-agent's iterations. Zero
	// means DefaultMaxTurns.
	MaxTurns int
	// TaskTimeout bounds one delegation attempt. Zero disables it;
	// recovery may still install one on retry.
	TaskTimeout time.Duration
	// SkipConfirmation disables destructive-tool gating for all
	// delegated agents.
	SkipConfirmation bool
	// MaxParallelism, when positive, caps concurrent delegations below
	// the plan's own bound.
	MaxParallelism int
}

// Coordinator fans tasks out to sub-agents. All delegated loops share
// one trust store and one recovery system so confirmation decisions
// and retry budgets hold across agents.
type Coordinator struct {
	providers map[string]llm.Provider
	primary   string
	registry  tools.Registry
	recovery  *recovery.System
	trust     *turn.TrustStore
	confirmer turn.Confirmer
	opts      Options
	logger    *log.Logger
	debug     *debuglog.Logger
	onBatch   func(tasks []*models.Task, completionOrder []string)
}

// New builds a Coordinator. Both provider and registry may be nil, in
// which case delegations report unavailable instead of failing.
func New(provider llm.Provider, registry tools.Registry, opts Options) *Coordinator {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	c := &Coordinator{
		providers: make(map[string]llm.Provider),
		registry:  registry,
		recovery:  recovery.NewSystem(nil),
		trust:     turn.NewTrustStore(),
		opts:      opts,
		logger:    log.New(log.Writer(), "[coordinator] ", log.LstdFlags),
		debug:     &debuglog.Logger{},
	}
	if provider != nil {
		c.primary = provider.Name()
		c.providers[c.primary] = provider
	}
	return c
}

// RegisterProvider adds a fallback provider the recovery system can
// switch to when the primary reports overload.
func (c *Coordinator) RegisterProvider(p llm.Provider) {
	if p != nil {
		c.providers[p.Name()] = p
	}
}

// SetRecovery replaces the recovery system, normally to share a ledger
// with other components.
func (c *Coordinator) SetRecovery(r *recovery.System) {
	if r != nil {
		c.recovery = r
	}
}

// SetTrustStore shares a trust store with interactive components.
func (c *Coordinator) SetTrustStore(s *turn.TrustStore) {
	if s != nil {
		c.trust = s
	}
}

// SetConfirmer installs the user confirmation gate for delegated
// agents.
func (c *Coordinator) SetConfirmer(cf turn.Confirmer) { c.confirmer = cf }

// SetDebugLogger installs a file-backed debug logger.
func (c *Coordinator) SetDebugLogger(l *debuglog.Logger) {
	if l != nil {
		c.debug = l
	}
}

// SetBatchFunc installs a hook invoked after each batch's completions
// are recorded, typically to checkpoint the run.
func (c *Coordinator) SetBatchFunc(fn func(tasks []*models.Task, completionOrder []string)) {
	c.onBatch = fn
}

// providerFor resolves a provider by name, falling back to the primary
// when the requested one is not registered.
func (c *Coordinator) providerFor(name string) llm.Provider {
	if p, ok := c.providers[name]; ok {
		return p
	}
	return c.providers[c.primary]
}

// Delegate runs one task under a fresh sub-agent. A missing provider
// or registry yields an unavailable status without error; an unknown
// role yields an error status naming it. Exhausting the turn budget
// reports failed, not aborted.
func (c *Coordinator) Delegate(ctx context.Context, task *models.Task, role models.AgentRole) models.DelegationResult {
	return c.delegate(ctx, task, role, c.primary)
}

func (c *Coordinator) delegate(ctx context.Context, task *models.Task, role models.AgentRole, providerName string) models.DelegationResult {
	res := models.DelegationResult{
		AgentID: uuid.New().String()[:8],
		TaskID:  task.ID,
		Role:    role,
	}

	provider := c.providerFor(providerName)
	if provider == nil || c.registry == nil {
		res.Status = models.DelegationUnavailable
		return res
	}
	if !role.Valid() {
		res.Status = models.DelegationError
		res.Error = fmt.Sprintf("unknown agent role %q", role)
		return res
	}

	loop := turn.NewLoop(provider, c.registry, turn.Options{
		System:            role.SystemPrompt(),
		MaxToolIterations: c.opts.MaxTurns,
		SkipConfirmation:  c.opts.SkipConfirmation,
	})
	loop.SetTrustStore(c.trust)
	if c.confirmer != nil {
		loop.SetConfirmer(c.confirmer)
	}

	c.debug.Log("delegating %s to agent %s (role=%s provider=%s)", task.ID, res.AgentID, role, provider.Name())
	start := time.Now()
	turnRes, err := loop.Execute(ctx, turn.NewSession(), task.Description)
	res.Duration = time.Since(start)
	if turnRes != nil {
		res.Turns = turnRes.Iterations
		res.InputTokens = turnRes.Usage.InputTokens
		res.OutputTokens = turnRes.Usage.OutputTokens
		res.Output = turnRes.Content
	}
	switch {
	case err != nil:
		res.Status = models.DelegationError
		res.Error = err.Error()
	case turnRes.Aborted:
		res.Status = models.DelegationFailed
		res.Error = "turn aborted before completion"
	case turnRes.HitIterationCap:
		res.Status = models.DelegationFailed
		res.Error = fmt.Sprintf("turn budget of %d exhausted without convergence", c.opts.MaxTurns)
	default:
		res.Status = models.DelegationCompleted
	}
	c.debug.Log("delegation %s finished: status=%s turns=%d tokens=%d/%d",
		task.ID, res.Status, res.Turns, res.InputTokens, res.OutputTokens)
	return res
}

// delegateWithRecovery retries a failed delegation under the recovery
// system's verdicts, threading mutated timeouts and provider switches
// into each attempt.
func (c *Coordinator) delegateWithRecovery(ctx context.Context, task *models.Task, role models.AgentRole) models.DelegationResult {
	rctx := &recovery.Context{
		Phase:    "delegation",
		Task:     task.ID,
		Provider: c.primary,
		Timeout:  c.opts.TaskTimeout,
	}

	var res models.DelegationResult
	for attempt := 0; attempt <= maxDelegationRetries; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if rctx.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, rctx.Timeout)
		}
		res = c.delegate(attemptCtx, task, role, rctx.Provider)
		if cancel != nil {
			cancel()
		}
		if res.Succeeded() || res.Status == models.DelegationUnavailable || ctx.Err() != nil {
			return res
		}

		verdict := c.recovery.Recover(errors.New(res.Error), rctx)
		if !verdict.Recovered {
			c.logger.Printf("task %s escalated: %s", task.ID, verdict.Message)
			return res
		}
		c.logger.Printf("task %s retrying after %s (%s)", task.ID, verdict.Classification, verdict.Action)
		if verdict.NewContext != nil {
			rctx = verdict.NewContext
		}
		rctx.Iteration = attempt + 1
	}
	return res
}

// RunResult is the outcome of coordinating one task set.
type RunResult struct {
	// Plan is the execution plan the run followed.
	Plan *models.ExecutionPlan
	// Results holds one delegation result per dispatched task, in
	// completion order.
	Results []models.DelegationResult
	// CompletionOrder lists the ids of tasks that completed, in the
	// order their completions were recorded.
	CompletionOrder []string
	// Tasks is the final state of every task.
	Tasks []*models.Task
}

// Run plans the task set, then repeatedly dispatches batches of ready
// tasks up to the plan's parallelism bound until no progress is
// possible. Newly-ready tasks unlock only after a batch's completions
// are recorded.
func (c *Coordinator) Run(ctx context.Context, specs []models.TaskSpec, strategy models.Strategy, role models.AgentRole) (*RunResult, error) {
	return c.RunResumed(ctx, specs, strategy, role, nil)
}

// RunResumed is Run with a set of already-completed task ids from an
// earlier checkpoint. Those tasks are recorded as completed up front
// and never delegated again; their dependents unblock normally.
func (c *Coordinator) RunResumed(ctx context.Context, specs []models.TaskSpec, strategy models.Strategy, role models.AgentRole, completed []string) (*RunResult, error) {
	q := queue.New()
	for _, spec := range specs {
		q.Add(spec, "")
	}
	for _, id := range completed {
		q.Start(id)
		q.Complete(id, "")
	}

	plan, err := planner.Plan(q.Tasks(), strategy)
	if err != nil {
		return nil, fmt.Errorf("planning %d tasks: %w", q.Len(), err)
	}

	run := &RunResult{Plan: plan}

	for {
		if ctx.Err() != nil {
			break
		}
		batch := orderByPlan(q.Ready(), plan.Order)
		if len(batch) == 0 {
			break
		}
		limit := plan.MaxParallelism
		if c.opts.MaxParallelism > 0 && c.opts.MaxParallelism < limit {
			limit = c.opts.MaxParallelism
		}
		if limit > 0 && len(batch) > limit {
			batch = batch[:limit]
		}

		g, gctx := errgroup.WithContext(ctx)
		type outcome struct {
			id  string
			res models.DelegationResult
		}
		outcomes := make([]outcome, len(batch))
		for i, task := range batch {
			q.Start(task.ID)
			i, task := i, task
			g.Go(func() error {
				outcomes[i] = outcome{id: task.ID, res: c.delegateWithRecovery(gctx, task, role)}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return run, err
		}

		// Record the whole batch before recomputing the ready set.
		for _, o := range outcomes {
			run.Results = append(run.Results, o.res)
			if o.res.Succeeded() {
				q.Complete(o.id, o.res.Output)
			} else {
				q.Fail(o.id, o.res.Error)
			}
		}
		if c.onBatch != nil {
			c.onBatch(q.Tasks(), q.CompletionOrder())
		}
	}

	run.CompletionOrder = q.CompletionOrder()
	run.Tasks = q.Tasks()
	for _, t := range q.Pending() {
		c.logger.Printf("task %s never became ready (blocked dependencies)", t.ID)
	}
	return run, nil
}

// orderByPlan reorders the ready set to follow the plan's order.
// Tasks absent from the plan keep their queue order at the end.
func orderByPlan(ready []*models.Task, order []string) []*models.Task {
	if len(ready) == 0 {
		return ready
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	out := make([]*models.Task, len(ready))
	copy(out, ready)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, aok := pos[out[j-1].ID]
			b, bok := pos[out[j].ID]
			if aok && bok && b < a || !aok && bok {
				out[j-1], out[j] = out[j], out[j-1]
			} else {
				break
			}
		}
	}
	return out
}
