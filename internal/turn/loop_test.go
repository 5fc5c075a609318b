package turn

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"stagehand/internal/llm"
	"stagehand/internal/tools"
)

// scriptedTurn is one provider round the fake will play back.
type scriptedTurn struct {
	text  string
	calls []llm.ToolCall
	usage llm.Usage
}

type fakeProvider struct {
	mu      sync.Mutex
	turns   []scriptedTurn
	next    int
	streams int
	// repeatLast keeps replaying the final scripted turn, for testing
	// the iteration cap.
	repeatLast bool
}

func (p *fakeProvider) Name() string            { return "fake" }
func (p *fakeProvider) Available() bool         { return true }
func (p *fakeProvider) ContextWindow() int      { return 100000 }
func (p *fakeProvider) CountTokens(s string) int { return len(s) / 4 }

func (p *fakeProvider) StreamWithTools(ctx context.Context, system string, messages []llm.Message, defs []llm.ToolDefinition) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.streams++
	idx := p.next
	if idx >= len(p.turns) {
		if p.repeatLast && len(p.turns) > 0 {
			idx = len(p.turns) - 1
		} else {
			p.mu.Unlock()
			return nil, context.Canceled
		}
	} else {
		p.next++
	}
	t := p.turns[idx]
	p.mu.Unlock()

	ch := make(chan llm.Chunk, 2*len(t.calls)+2)
	if t.text != "" {
		ch <- llm.Chunk{Kind: llm.ChunkText, Text: t.text}
	}
	for i := range t.calls {
		call := t.calls[i]
		ch <- llm.Chunk{Kind: llm.ChunkToolUseStart, ToolCall: &llm.ToolCall{ID: call.ID, Name: call.Name}}
		ch <- llm.Chunk{Kind: llm.ChunkToolUseEnd, ToolCall: &call}
	}
	ch <- llm.Chunk{Kind: llm.ChunkDone, Usage: t.usage}
	close(ch)
	return ch, nil
}

type fakeRegistry struct {
	mu       sync.Mutex
	executed []string
	// onExecute runs before each execution, keyed by call count.
	onExecute func(n int)
	fail      map[string]bool
}

func (r *fakeRegistry) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{Name: "shell", Description: "run a command"},
		{Name: "read_file", Description: "read a file"},
	}
}

func (r *fakeRegistry) Execute(ctx context.Context, name string, input json.RawMessage) tools.Result {
	r.mu.Lock()
	r.executed = append(r.executed, name)
	n := len(r.executed)
	hook := r.onExecute
	fail := r.fail[name]
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if fail {
		return tools.Result{Success: false, Error: "tool blew up"}
	}
	return tools.Result{Success: true, Output: "ok:" + name}
}

func (r *fakeRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executed)
}

func shellCall(id, command string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: "shell", Input: json.RawMessage(`{"command":` + jsonString(command) + `}`)}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestExecuteNoToolCallsConvergesInOneIteration(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{text: "all done", usage: llm.Usage{InputTokens: 10, OutputTokens: 5}},
	}}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{})

	res, err := loop.Execute(context.Background(), NewSession(), "do the thing")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", res.Iterations)
	}
	if res.Content != "all done" {
		t.Errorf("content = %q, want %q", res.Content, "all done")
	}
	if res.HitIterationCap || res.Aborted {
		t.Errorf("res = %+v, want clean convergence", res)
	}
	if registry.count() != 0 {
		t.Errorf("registry executed %d calls, want 0", registry.count())
	}
	if res.Usage.InputTokens != 10 || res.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v, want 10/5", res.Usage)
	}
}

func TestExecuteToolCallThenConverge(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{text: "reading", calls: []llm.ToolCall{{ID: "c1", Name: "read_file", Input: json.RawMessage(`{"path":"a.go"}`)}}, usage: llm.Usage{InputTokens: 4, OutputTokens: 2}},
		{text: " finished", usage: llm.Usage{InputTokens: 6, OutputTokens: 3}},
	}}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{})
	session := NewSession()

	res, err := loop.Execute(context.Background(), session, "read a.go")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", res.Iterations)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Name != "read_file" {
		t.Fatalf("tool calls = %+v, want one read_file", res.ToolCalls)
	}
	if !res.ToolCalls[0].Result.Success {
		t.Errorf("tool result not successful: %+v", res.ToolCalls[0].Result)
	}
	if res.Content != "reading finished" {
		t.Errorf("content = %q", res.Content)
	}
	// Usage accumulates monotonically across both streams.
	if res.Usage.InputTokens != 10 || res.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v, want 10/5", res.Usage)
	}
	// History: user, assistant+call, tool results, final assistant.
	if session.Len() != 4 {
		t.Errorf("session length = %d, want 4", session.Len())
	}
}

func TestExecuteStopsAtIterationCap(t *testing.T) {
	provider := &fakeProvider{
		turns: []scriptedTurn{
			{calls: []llm.ToolCall{{ID: "c", Name: "read_file", Input: json.RawMessage(`{}`)}}, usage: llm.Usage{InputTokens: 1, OutputTokens: 1}},
		},
		repeatLast: true,
	}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{MaxToolIterations: 5})

	res, err := loop.Execute(context.Background(), NewSession(), "loop forever")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.HitIterationCap {
		t.Error("HitIterationCap = false, want true")
	}
	if res.Aborted {
		t.Error("Aborted = true, want false; hitting the cap is a normal stop")
	}
	if res.Iterations != 5 {
		t.Errorf("iterations = %d, want 5", res.Iterations)
	}
	if len(res.ToolCalls) != 5 {
		t.Errorf("executed tool calls = %d, want 5", len(res.ToolCalls))
	}
	if res.Usage.InputTokens != 5 {
		t.Errorf("input tokens = %d, want 5", res.Usage.InputTokens)
	}
}

func TestExecutePreCancelledContextSkipsProvider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{turns: []scriptedTurn{{text: "never"}}}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{})

	res, err := loop.Execute(ctx, NewSession(), "hello")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.Aborted {
		t.Error("Aborted = false, want true")
	}
	if provider.streams != 0 {
		t.Errorf("provider contacted %d times, want 0", provider.streams)
	}
	if res.Usage.InputTokens != 0 || res.Usage.OutputTokens != 0 {
		t.Errorf("usage = %+v, want zero", res.Usage)
	}
}

func TestExecuteCancelBetweenToolCallsPreservesCompleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	provider := &fakeProvider{turns: []scriptedTurn{
		{calls: []llm.ToolCall{
			{ID: "c1", Name: "read_file", Input: json.RawMessage(`{}`)},
			{ID: "c2", Name: "read_file", Input: json.RawMessage(`{}`)},
		}},
	}}
	registry := &fakeRegistry{}
	registry.onExecute = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	loop := NewLoop(provider, registry, Options{})

	res, err := loop.Execute(ctx, NewSession(), "two reads")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.Aborted {
		t.Error("Aborted = false, want true")
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("executed = %d, want the first call preserved", len(res.ToolCalls))
	}
	if res.ToolCalls[0].ID != "c1" {
		t.Errorf("preserved call = %q, want c1", res.ToolCalls[0].ID)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ID != "c2" || res.Skipped[0].Reason != SkipAborted {
		t.Errorf("skipped = %+v, want c2 aborted", res.Skipped)
	}
}

func TestExecuteDeclinedCallNeverReachesRegistry(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{calls: []llm.ToolCall{shellCall("c1", "rm -rf build")}},
		{text: "understood"},
	}}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{})
	loop.SetConfirmer(ConfirmFunc(func(name string, input json.RawMessage) Decision {
		return DecisionNo
	}))

	res, err := loop.Execute(context.Background(), NewSession(), "clean up")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if registry.count() != 0 {
		t.Errorf("registry executed %d calls, want 0", registry.count())
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != SkipDeclined {
		t.Fatalf("skipped = %+v, want one declined entry", res.Skipped)
	}
	// The turn continues after a decline.
	if res.Aborted {
		t.Error("Aborted = true, want false")
	}
	if res.Content != "understood" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestExecuteAbortDecisionStopsTurn(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{calls: []llm.ToolCall{
			{ID: "c1", Name: "read_file", Input: json.RawMessage(`{}`)},
			shellCall("c2", "rm -rf /tmp/x"),
			{ID: "c3", Name: "read_file", Input: json.RawMessage(`{}`)},
		}},
	}}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{})
	loop.SetConfirmer(ConfirmFunc(func(name string, input json.RawMessage) Decision {
		return DecisionAbort
	}))

	res, err := loop.Execute(context.Background(), NewSession(), "mixed batch")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.Aborted {
		t.Error("Aborted = false, want true")
	}
	// The non-destructive first call ran before the gate fired.
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].ID != "c1" {
		t.Errorf("executed = %+v, want only c1", res.ToolCalls)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %+v, want c2 and c3", res.Skipped)
	}
	for _, s := range res.Skipped {
		if s.Reason != SkipAborted {
			t.Errorf("skip reason for %s = %q, want aborted", s.ID, s.Reason)
		}
	}
}

func TestExecuteTrustDecisionSuppressesLaterPrompts(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{calls: []llm.ToolCall{shellCall("c1", "go test ./...")}},
		{calls: []llm.ToolCall{shellCall("c2", "go vet ./...")}},
		{text: "done"},
	}}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{})
	var prompts int
	loop.SetConfirmer(ConfirmFunc(func(name string, input json.RawMessage) Decision {
		prompts++
		return DecisionTrustSession
	}))

	res, err := loop.Execute(context.Background(), NewSession(), "run checks")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if prompts != 1 {
		t.Errorf("confirmer asked %d times, want 1; shell:go was trusted after the first answer", prompts)
	}
	if len(res.ToolCalls) != 2 {
		t.Errorf("executed = %d calls, want 2", len(res.ToolCalls))
	}
}

func TestExecuteToolFailureFedBackNotFatal(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{calls: []llm.ToolCall{{ID: "c1", Name: "read_file", Input: json.RawMessage(`{}`)}}},
		{text: "recovered"},
	}}
	registry := &fakeRegistry{fail: map[string]bool{"read_file": true}}
	loop := NewLoop(provider, registry, Options{})
	session := NewSession()

	res, err := loop.Execute(context.Background(), session, "read something missing")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Result.Success {
		t.Fatalf("tool calls = %+v, want one failed execution", res.ToolCalls)
	}
	history := session.History()
	var found bool
	for _, msg := range history {
		for _, tr := range msg.ToolResults {
			if tr.ToolCallID == "c1" && tr.IsError && tr.Content == "tool blew up" {
				found = true
			}
		}
	}
	if !found {
		t.Error("failed tool result not fed back into the conversation")
	}
	if res.Content != "recovered" {
		t.Errorf("content = %q, want the model's follow-up", res.Content)
	}
}

func TestSkipConfirmationBypassesGate(t *testing.T) {
	provider := &fakeProvider{turns: []scriptedTurn{
		{calls: []llm.ToolCall{shellCall("c1", "make build")}},
		{text: "built"},
	}}
	registry := &fakeRegistry{}
	loop := NewLoop(provider, registry, Options{SkipConfirmation: true})
	loop.SetConfirmer(ConfirmFunc(func(name string, input json.RawMessage) Decision {
		t.Error("confirmer called with SkipConfirmation set")
		return DecisionNo
	}))

	res, err := loop.Execute(context.Background(), NewSession(), "build it")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(res.ToolCalls) != 1 {
		t.Errorf("executed = %d calls, want 1", len(res.ToolCalls))
	}
}
