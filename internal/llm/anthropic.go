package llm

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = string(anthropic.ModelClaudeSonnet4_20250514)
	defaultAnthropicMaxTokens = 8192
	anthropicContextWindow    = 200000
)

// Anthropic streams completions from the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	apiKey    string
}

// NewAnthropic creates an Anthropic provider. An empty APIKey falls back
// to the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(opts Options) *Anthropic {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	model := opts.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &Anthropic{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		apiKey:    apiKey,
	}
}

// Name implements Provider.
func (a *Anthropic) Name() string { return ProviderAnthropic }

// CountTokens implements Provider.
func (a *Anthropic) CountTokens(text string) int { return EstimateTokens(text) }

// ContextWindow implements Provider.
func (a *Anthropic) ContextWindow() int { return anthropicContextWindow }

// Available implements Provider.
func (a *Anthropic) Available() bool { return a.apiKey != "" }

// StreamWithTools implements Provider. Content block start/stop events
// are paired by block index; tool input JSON is buffered from deltas
// until the block stops.
func (a *Anthropic) StreamWithTools(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (<-chan Chunk, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  convertMessagesToAnthropic(messages),
		Tools:     convertToolsToAnthropic(tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		stream := a.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var usage Usage
		pending := make(map[int64]*ToolCall)
		buffers := make(map[int64]*strings.Builder)

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.InputTokens += ev.Message.Usage.InputTokens

			case anthropic.ContentBlockStartEvent:
				block := ev.ContentBlock
				if block.Type == "tool_use" {
					call := &ToolCall{ID: block.ID, Name: block.Name}
					pending[ev.Index] = call
					buffers[ev.Index] = &strings.Builder{}
					out <- Chunk{Kind: ChunkToolUseStart, ToolCall: &ToolCall{ID: call.ID, Name: call.Name}}
				}

			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" {
						out <- Chunk{Kind: ChunkText, Text: delta.Text}
					}
				case anthropic.InputJSONDelta:
					if buf, ok := buffers[ev.Index]; ok {
						buf.WriteString(delta.PartialJSON)
					}
				}

			case anthropic.ContentBlockStopEvent:
				call, ok := pending[ev.Index]
				if !ok {
					continue
				}
				input := buffers[ev.Index].String()
				if input == "" {
					input = "{}"
				}
				call.Input = json.RawMessage(input)
				out <- Chunk{Kind: ChunkToolUseEnd, ToolCall: call}
				delete(pending, ev.Index)
				delete(buffers, ev.Index)

			case anthropic.MessageDeltaEvent:
				usage.OutputTokens += ev.Usage.OutputTokens
			}
		}

		if err := stream.Err(); err != nil {
			out <- Chunk{Kind: ChunkError, Err: err}
			return
		}
		out <- Chunk{Kind: ChunkDone, Usage: usage}
	}()

	return out, nil
}

func convertMessagesToAnthropic(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Input, call.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			var blocks []anthropic.ContentBlockParamUnion
			for _, res := range msg.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(res.ToolCallID, res.Content, res.IsError))
			}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	return out
}

func convertToolsToAnthropic(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Properties,
					Required:   tool.Required,
				},
			},
		})
	}
	return out
}

// Compile-time interface check.
var _ Provider = (*Anthropic)(nil)
