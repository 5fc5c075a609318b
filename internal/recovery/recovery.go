package recovery

import (
	"fmt"
	"log"
	"regexp"
	"time"
)

// Action is what the caller should do next after a failure.
type Action int

const (
	// ActionRetry re-runs the failed operation with the same context.
	ActionRetry Action = iota
	// ActionExtendTimeout re-runs with a doubled timeout.
	ActionExtendTimeout
	// ActionInstallDependency installs the named module, then re-runs.
	ActionInstallDependency
	// ActionAnalyzeFailure asks the model to analyze the failure before retrying.
	ActionAnalyzeFailure
	// ActionSwitchProvider re-runs against the next provider in the ring.
	ActionSwitchProvider
	// ActionBackoff waits before re-running (rate limits).
	ActionBackoff
	// ActionEscalate hands the failure to the caller or human.
	ActionEscalate
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionExtendTimeout:
		return "extend_timeout"
	case ActionInstallDependency:
		return "install_dependency"
	case ActionAnalyzeFailure:
		return "analyze_failure"
	case ActionSwitchProvider:
		return "switch_provider"
	case ActionBackoff:
		return "backoff"
	case ActionEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// DefaultTimeout is the base timeout assumed when the context has none.
const DefaultTimeout = 120 * time.Second

// providerRing is the fallback order when a provider reports overload.
var providerRing = []string{"anthropic", "openai", "google"}

// Context describes the execution context in which a failure occurred.
// It carries the mutable knobs a recovery can adjust for the next attempt.
type Context struct {
	// Phase names the orchestration phase (e.g. "delegation", "turn").
	Phase string
	// Task is the id of the task being executed, if any.
	Task string
	// Iteration is the turn-loop iteration at failure time, if relevant.
	Iteration int
	// Timeout is the timeout the failed attempt ran under.
	Timeout time.Duration
	// Provider is the LLM provider the failed attempt used.
	Provider string
}

// Result is the recovery verdict for one failure.
type Result struct {
	// Action is what to do next.
	Action Action
	// Classification is the bucket the error fell into.
	Classification Classification
	// Recovered is true when the failure is locally recoverable.
	Recovered bool
	// Message explains the verdict.
	Message string
	// NewContext, when set, fully replaces the mutable fields of the
	// failed attempt's context. It is never a partial patch.
	NewContext *Context
}

// System decides whether failures are locally recoverable. The ledger is
// injected so callers share one budget across a session and tests can
// construct isolated instances.
type System struct {
	ledger *Ledger
}

// NewSystem creates a recovery system over the given ledger.
func NewSystem(ledger *Ledger) *System {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &System{ledger: ledger}
}

// Ledger returns the retry ledger backing this system.
func (s *System) Ledger() *Ledger { return s.ledger }

// moduleNamePattern extracts a module name from dependency errors such as
// `Cannot find module 'left-pad'`, `module not found: "left-pad"`, or
// `cannot find package "left-pad"`.
var moduleNamePattern = regexp.MustCompile(`(?i)(?:cannot find module|cannot find package|module not found[:]?|no required module provides package)\s*['"]?([^'"\s]+)['"]?`)

// Recover classifies the error and returns a verdict. Recoverable
// classifications consume one attempt from the (classification, phase)
// retry budget; once the budget of 3 is exhausted the verdict is forced
// to escalate regardless of the classification's normal recoverability.
func (s *System) Recover(err error, ctx *Context) *Result {
	if ctx == nil {
		ctx = &Context{}
	}
	message := ""
	if err != nil {
		message = err.Error()
	}
	class := Classify(message, "")

	res := s.classify(class, message, ctx)
	if !res.Recovered {
		return res
	}

	attempts := s.ledger.Increment(class, ctx.Phase)
	if attempts > MaxAttempts {
		log.Printf("[recovery] %s in phase %q exhausted retry budget (%d attempts), escalating", class, ctx.Phase, attempts-1)
		return &Result{
			Action:         ActionEscalate,
			Classification: class,
			Recovered:      false,
			Message:        fmt.Sprintf("retry budget exhausted for %s in phase %q: %s", class, ctx.Phase, message),
		}
	}

	log.Printf("[recovery] %s in phase %q: %s (attempt %d/%d)", class, ctx.Phase, res.Action, attempts, MaxAttempts)
	return res
}

// classify maps a classification to its fixed action and context
// transform, before the retry budget is applied.
func (s *System) classify(class Classification, message string, ctx *Context) *Result {
	switch class {
	case ClassSyntaxError, ClassBuildError, ClassTypeError, ClassNetworkError:
		next := *ctx
		return &Result{
			Action:         ActionRetry,
			Classification: class,
			Recovered:      true,
			Message:        fmt.Sprintf("%s is locally recoverable, retrying", class),
			NewContext:     &next,
		}

	case ClassTimeout:
		next := *ctx
		if next.Timeout <= 0 {
			next.Timeout = DefaultTimeout
		}
		next.Timeout *= 2
		return &Result{
			Action:         ActionExtendTimeout,
			Classification: class,
			Recovered:      true,
			Message:        fmt.Sprintf("timed out, retrying with timeout %s", next.Timeout),
			NewContext:     &next,
		}

	case ClassDependencyMissing:
		m := moduleNamePattern.FindStringSubmatch(message)
		if len(m) < 2 {
			return &Result{
				Action:         ActionEscalate,
				Classification: class,
				Recovered:      false,
				Message:        "dependency missing but no module name could be extracted: " + message,
			}
		}
		next := *ctx
		return &Result{
			Action:         ActionInstallDependency,
			Classification: class,
			Recovered:      true,
			Message:        fmt.Sprintf("install missing module %q and retry", m[1]),
			NewContext:     &next,
		}

	case ClassTestFailure:
		next := *ctx
		return &Result{
			Action:         ActionAnalyzeFailure,
			Classification: class,
			Recovered:      true,
			Message:        "test failure, requesting model-driven analysis",
			NewContext:     &next,
		}

	case ClassRateLimit:
		next := *ctx
		return &Result{
			Action:         ActionBackoff,
			Classification: class,
			Recovered:      true,
			Message:        "rate limited, backing off before retry",
			NewContext:     &next,
		}

	case ClassOverloaded:
		next := *ctx
		next.Provider = nextProvider(ctx.Provider)
		return &Result{
			Action:         ActionSwitchProvider,
			Classification: class,
			Recovered:      true,
			Message:        fmt.Sprintf("provider overloaded, switching to %s", next.Provider),
			NewContext:     &next,
		}

	case ClassInvalidRequest:
		return &Result{
			Action:         ActionEscalate,
			Classification: class,
			Recovered:      false,
			Message:        "invalid request cannot be retried: " + message,
		}

	default:
		return &Result{
			Action:         ActionEscalate,
			Classification: ClassUnknown,
			Recovered:      false,
			Message:        fmt.Sprintf("unrecognized failure in phase %q: %s", ctx.Phase, message),
		}
	}
}

// nextProvider cycles through the provider ring. Unknown providers enter
// the ring at its head.
func nextProvider(current string) string {
	for i, p := range providerRing {
		if p == current {
			return providerRing[(i+1)%len(providerRing)]
		}
	}
	return providerRing[0]
}
