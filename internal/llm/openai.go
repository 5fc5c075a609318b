package llm

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	defaultOpenAIModel  = "gpt-4o"
	openAIContextWindow = 128000
)

// OpenAI streams completions from the OpenAI Chat Completions API.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
	apiKey    string
}

// NewOpenAI creates an OpenAI provider. An empty APIKey falls back to
// the OPENAI_API_KEY environment variable.
func NewOpenAI(opts Options) *OpenAI {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAI{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: opts.MaxTokens,
		apiKey:    apiKey,
	}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// CountTokens implements Provider.
func (o *OpenAI) CountTokens(text string) int { return EstimateTokens(text) }

// ContextWindow implements Provider.
func (o *OpenAI) ContextWindow() int { return openAIContextWindow }

// Available implements Provider.
func (o *OpenAI) Available() bool { return o.apiKey != "" }

// pendingOpenAICall accumulates tool-call argument deltas for one index.
type pendingOpenAICall struct {
	id   string
	name string
	args strings.Builder
}

// StreamWithTools implements Provider. Chat deltas announce a tool call
// with its id and name on the first fragment for an index; argument
// fragments are buffered and the call is completed when the stream ends.
func (o *OpenAI) StreamWithTools(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (<-chan Chunk, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: convertMessagesToOpenAI(system, messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxTokens))
	}
	if converted := convertToolsToOpenAI(tools); len(converted) > 0 {
		params.Tools = converted
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		stream := o.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var usage Usage
		pending := make(map[int64]*pendingOpenAICall)

		for stream.Next() {
			chunk := stream.Current()

			if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
				usage.InputTokens = chunk.Usage.PromptTokens
				usage.OutputTokens = chunk.Usage.CompletionTokens
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			if delta.Content != "" {
				out <- Chunk{Kind: ChunkText, Text: delta.Content}
			}

			for _, tc := range delta.ToolCalls {
				call, ok := pending[tc.Index]
				if !ok {
					call = &pendingOpenAICall{id: tc.ID, name: tc.Function.Name}
					pending[tc.Index] = call
					out <- Chunk{Kind: ChunkToolUseStart, ToolCall: &ToolCall{ID: call.id, Name: call.name}}
				}
				call.args.WriteString(tc.Function.Arguments)
			}
		}

		if err := stream.Err(); err != nil {
			out <- Chunk{Kind: ChunkError, Err: err}
			return
		}

		// Flush completed tool calls in index order.
		indexes := make([]int64, 0, len(pending))
		for idx := range pending {
			indexes = append(indexes, idx)
		}
		sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
		for _, idx := range indexes {
			call := pending[idx]
			args := call.args.String()
			if args == "" {
				args = "{}"
			}
			out <- Chunk{Kind: ChunkToolUseEnd, ToolCall: &ToolCall{ID: call.id, Name: call.name, Input: json.RawMessage(args)}}
		}
		out <- Chunk{Kind: ChunkDone, Usage: usage}
	}()

	return out, nil
}

func convertMessagesToOpenAI(system string, messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Input),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		default:
			for _, res := range msg.ToolResults {
				out = append(out, openai.ChatCompletionMessageParamUnion{
					OfTool: &openai.ChatCompletionToolMessageParam{
						ToolCallID: res.ToolCallID,
						Content: openai.ChatCompletionToolMessageParamContentUnion{
							OfString: openai.String(res.Content),
						},
					},
				})
			}
			if msg.Content != "" {
				out = append(out, openai.UserMessage(msg.Content))
			}
		}
	}
	return out
}

func convertToolsToOpenAI(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters: shared.FunctionParameters{
					"type":       "object",
					"properties": tool.Properties,
					"required":   tool.Required,
				},
			},
		})
	}
	return out
}

// Compile-time interface check.
var _ Provider = (*OpenAI)(nil)
