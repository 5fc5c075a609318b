// Package llm provides a provider-neutral streaming interface over the
// Anthropic, OpenAI and Google model APIs.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider names accepted by New and cycled by the recovery fallback ring.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// ToolCall identifies one model-requested tool invocation.
type ToolCall struct {
	// ID is the provider-assigned id for pairing results to calls.
	ID string `json:"id"`
	// Name is the tool name.
	Name string `json:"name"`
	// Input is the JSON-encoded tool input.
	Input json.RawMessage `json:"input"`
}

// ToolResult carries the outcome of an executed tool back to the model.
type ToolResult struct {
	// ToolCallID pairs this result with the call that produced it.
	ToolCallID string `json:"tool_call_id"`
	// Name is the tool that ran.
	Name string `json:"name"`
	// Content is the tool output or error text.
	Content string `json:"content"`
	// IsError marks failed executions.
	IsError bool `json:"is_error"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of conversation context in provider-neutral form.
type Message struct {
	// Role is RoleUser or RoleAssistant.
	Role string `json:"role"`
	// Content is the message text, if any.
	Content string `json:"content,omitempty"`
	// ToolCalls are the tool invocations an assistant message requested.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolResults are tool outcomes carried in a user message.
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// UserMessage builds a plain user text message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolDefinition describes one tool in a vendor-neutral JSON-schema shape.
type ToolDefinition struct {
	// Name is the tool name exposed to the model.
	Name string `json:"name"`
	// Description tells the model what the tool does.
	Description string `json:"description"`
	// Properties is the JSON-schema properties object for the input.
	Properties map[string]any `json:"properties"`
	// Required lists the mandatory input properties.
	Required []string `json:"required,omitempty"`
}

// Usage is token accounting for one completion.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ChunkKind discriminates streaming events.
type ChunkKind string

const (
	// ChunkText is an incremental piece of assistant text.
	ChunkText ChunkKind = "text"
	// ChunkToolUseStart announces a tool call; ID and name are known,
	// input is still streaming.
	ChunkToolUseStart ChunkKind = "tool_use_start"
	// ChunkToolUseEnd completes a tool call with its full input.
	ChunkToolUseEnd ChunkKind = "tool_use_end"
	// ChunkDone terminates a successful stream and carries final usage.
	ChunkDone ChunkKind = "done"
	// ChunkError terminates a failed stream.
	ChunkError ChunkKind = "error"
)

// Chunk is one streaming event. Exactly one terminal chunk (done or
// error) ends every stream.
type Chunk struct {
	Kind ChunkKind
	// Text is set for text chunks.
	Text string
	// ToolCall is set for tool_use_start (ID, Name) and tool_use_end
	// (ID, Name, Input).
	ToolCall *ToolCall
	// Usage is set on done.
	Usage Usage
	// Err is set on error.
	Err error
}

// Provider is the LLM surface the turn loop consumes. The core never
// assumes a specific vendor; it only depends on this shape.
type Provider interface {
	// Name returns the provider name (anthropic, openai, google).
	Name() string
	// StreamWithTools requests a streamed completion for the given
	// conversation and tool definitions. The returned channel is closed
	// after a terminal chunk.
	StreamWithTools(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (<-chan Chunk, error)
	// CountTokens estimates the token count of a text.
	CountTokens(text string) int
	// ContextWindow returns the model's context window in tokens.
	ContextWindow() int
	// Available reports whether the provider is configured and usable.
	Available() bool
}

// Options configures provider construction.
type Options struct {
	// APIKey authenticates against the vendor API.
	APIKey string
	// Model overrides the provider's default model when non-empty.
	Model string
	// MaxTokens bounds each completion; 0 uses the provider default.
	MaxTokens int
}

// New constructs a provider by name.
func New(name string, opts Options) (Provider, error) {
	switch name {
	case ProviderAnthropic:
		return NewAnthropic(opts), nil
	case ProviderOpenAI:
		return NewOpenAI(opts), nil
	case ProviderGoogle:
		return NewGoogle(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
