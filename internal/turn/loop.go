package turn

import (
	"context"
	"fmt"
	"log"
	"strings"

	"stagehand/internal/llm"
	"stagehand/internal/tools"
)

// DefaultMaxToolIterations bounds how many model/tool rounds a single
// turn may take before it is stopped.
const DefaultMaxToolIterations = 25

// SkipReason says why a requested tool call was not executed.
type SkipReason string

const (
	// SkipDeclined means the user answered no at the confirmation gate.
	SkipDeclined SkipReason = "declined"
	// SkipAborted means the turn stopped before the call could run.
	SkipAborted SkipReason = "aborted"
)

// ExecutedToolCall is one tool call that ran to completion, paired
// with its result.
type ExecutedToolCall struct {
	ID     string
	Name   string
	Input  []byte
	Result tools.Result
}

// SkippedToolCall is a requested call that never reached the registry.
type SkippedToolCall struct {
	ID     string
	Name   string
	Reason SkipReason
}

// Result is the outcome of one turn.
type Result struct {
	// Content is the accumulated assistant text across all iterations.
	Content string
	// ToolCalls lists every call that actually executed, in execution
	// order.
	ToolCalls []ExecutedToolCall
	// Skipped lists calls that were declined or cut off by an abort.
	Skipped []SkippedToolCall
	// Usage is the token total across all provider streams this turn,
	// reported even when the turn aborts partway.
	Usage llm.Usage
	// Iterations counts provider round trips made.
	Iterations int
	// Aborted is set when the turn stopped early on cancellation or an
	// abort decision. Content holds whatever text had streamed so far.
	Aborted bool
	// HitIterationCap is set when the turn ended because the model was
	// still requesting tools at the iteration limit. This is a normal
	// stop, not an error.
	HitIterationCap bool
}

// Events carries optional streaming callbacks so a caller can render
// progress live. Any field may be nil.
type Events struct {
	OnText       func(text string)
	OnToolStart  func(name string)
	OnToolResult func(name string, result tools.Result)
}

// Options configures a Loop.
type Options struct {
	// System is the system prompt sent on every stream.
	System string
	// MaxToolIterations caps model round trips. Zero means the default.
	MaxToolIterations int
	// SkipConfirmation disables the destructive-tool gate entirely.
	SkipConfirmation bool
}

// Loop drives one agent's turns against a provider and tool registry.
type Loop struct {
	provider  llm.Provider
	registry  tools.Registry
	policy    tools.DestructivePolicy
	confirmer Confirmer
	trust     *TrustStore
	opts      Options
	events    Events
	logger    *log.Logger
}

// NewLoop builds a turn loop. The policy, confirmer, and trust store
// may be nil; a nil confirmer means gated calls proceed without asking,
// which is the non-interactive mode.
func NewLoop(provider llm.Provider, registry tools.Registry, opts Options) *Loop {
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = DefaultMaxToolIterations
	}
	return &Loop{
		provider: provider,
		registry: registry,
		policy:   tools.DefaultPolicy(),
		trust:    NewTrustStore(),
		opts:     opts,
		logger:   log.New(log.Writer(), "[turn] ", log.LstdFlags),
	}
}

// SetConfirmer installs the user confirmation gate.
func (l *Loop) SetConfirmer(c Confirmer) { l.confirmer = c }

// SetTrustStore replaces the loop's trust store, normally with one
// shared across agents.
func (l *Loop) SetTrustStore(s *TrustStore) {
	if s != nil {
		l.trust = s
	}
}

// SetPolicy replaces the destructive-tool policy.
func (l *Loop) SetPolicy(p tools.DestructivePolicy) {
	if p != nil {
		l.policy = p
	}
}

// SetEvents installs streaming callbacks.
func (l *Loop) SetEvents(ev Events) { l.events = ev }

// Execute runs one turn: append the user message, then alternate
// provider streams and tool execution until the model stops requesting
// tools, the iteration cap is reached, or the turn is cancelled or
// aborted. A cancelled context observed on entry returns an aborted
// result without contacting the provider.
func (l *Loop) Execute(ctx context.Context, session *Session, userMessage string) (*Result, error) {
	res := &Result{}
	if ctx.Err() != nil {
		res.Aborted = true
		return res, nil
	}

	session.Append(llm.UserMessage(userMessage))

	for res.Iterations < l.opts.MaxToolIterations {
		if ctx.Err() != nil {
			res.Aborted = true
			return res, nil
		}
		res.Iterations++

		text, calls, err := l.stream(ctx, session, res)
		if err != nil {
			return res, err
		}

		session.Append(llm.Message{
			Role:      llm.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})

		if len(calls) == 0 {
			if ctx.Err() != nil {
				res.Aborted = true
			}
			return res, nil
		}

		results, aborted := l.runToolCalls(ctx, calls, res)
		session.Append(llm.Message{
			Role:        llm.RoleUser,
			ToolResults: results,
		})
		if aborted {
			res.Aborted = true
			return res, nil
		}
	}

	res.HitIterationCap = true
	l.logger.Printf("turn stopped at iteration cap (%d)", l.opts.MaxToolIterations)
	return res, nil
}

// stream runs one provider round and folds its chunks into the result.
func (l *Loop) stream(ctx context.Context, session *Session, res *Result) (string, []llm.ToolCall, error) {
	ch, err := l.provider.StreamWithTools(ctx, l.opts.System, session.History(), l.registry.Definitions())
	if err != nil {
		return "", nil, fmt.Errorf("starting stream: %w", err)
	}

	var text strings.Builder
	var calls []llm.ToolCall
	var streamErr error
	for chunk := range ch {
		switch chunk.Kind {
		case llm.ChunkText:
			text.WriteString(chunk.Text)
			res.Content += chunk.Text
			if l.events.OnText != nil {
				l.events.OnText(chunk.Text)
			}
		case llm.ChunkToolUseEnd:
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
		case llm.ChunkDone:
			res.Usage.Add(chunk.Usage)
		case llm.ChunkError:
			streamErr = chunk.Err
		}
	}
	if streamErr != nil {
		if ctx.Err() != nil {
			return text.String(), nil, nil
		}
		return "", nil, fmt.Errorf("stream: %w", streamErr)
	}
	return text.String(), calls, nil
}

// runToolCalls gates and executes the calls of one iteration in arrival
// order. It returns the tool results to feed back and whether the turn
// must stop. Calls completed before an abort stay in res.ToolCalls.
func (l *Loop) runToolCalls(ctx context.Context, calls []llm.ToolCall, res *Result) ([]llm.ToolResult, bool) {
	var results []llm.ToolResult
	for i, call := range calls {
		if ctx.Err() != nil {
			l.skipFrom(calls[i:], SkipAborted, res, &results)
			return results, true
		}

		switch l.gate(call) {
		case DecisionNo:
			res.Skipped = append(res.Skipped, SkippedToolCall{ID: call.ID, Name: call.Name, Reason: SkipDeclined})
			results = append(results, llm.ToolResult{
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    "Tool call declined by user.",
				IsError:    true,
			})
			continue
		case DecisionAbort:
			l.skipFrom(calls[i:], SkipAborted, res, &results)
			return results, true
		}

		if l.events.OnToolStart != nil {
			l.events.OnToolStart(call.Name)
		}
		result := l.registry.Execute(ctx, call.Name, call.Input)
		if l.events.OnToolResult != nil {
			l.events.OnToolResult(call.Name, result)
		}
		res.ToolCalls = append(res.ToolCalls, ExecutedToolCall{
			ID:     call.ID,
			Name:   call.Name,
			Input:  call.Input,
			Result: result,
		})
		results = append(results, llm.ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    result.Content(),
			IsError:    !result.Success,
		})
	}
	return results, false
}

// gate decides whether one call may run. Trust decisions record the
// pattern before proceeding, so parallel agents hitting the same
// pattern converge on it being trusted.
func (l *Loop) gate(call llm.ToolCall) Decision {
	if l.opts.SkipConfirmation || !l.policy.Destructive(call.Name, call.Input) {
		return DecisionYes
	}
	pattern := PatternFor(call.Name, call.Input)
	if l.trust.Trusted(pattern) {
		return DecisionYes
	}
	if l.confirmer == nil {
		return DecisionYes
	}
	decision := l.confirmer.Confirm(call.Name, call.Input)
	if scope, ok := decision.scope(); ok {
		l.trust.Trust(pattern, scope)
		return DecisionYes
	}
	return decision
}

// skipFrom records calls from an abort point as skipped and answers
// them so the transcript stays well formed.
func (l *Loop) skipFrom(calls []llm.ToolCall, reason SkipReason, res *Result, results *[]llm.ToolResult) {
	for _, call := range calls {
		res.Skipped = append(res.Skipped, SkippedToolCall{ID: call.ID, Name: call.Name, Reason: reason})
		*results = append(*results, llm.ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    "Turn aborted before this tool call ran.",
			IsError:    true,
		})
	}
}
