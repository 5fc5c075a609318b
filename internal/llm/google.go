package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const (
	defaultGoogleModel  = "gemini-2.0-flash"
	googleContextWindow = 1000000
)

// Google streams completions from the Gemini API.
type Google struct {
	model     string
	maxTokens int
	apiKey    string
}

// NewGoogle creates a Google provider. An empty APIKey falls back to
// the GEMINI_API_KEY environment variable. The genai client is created
// per stream because its constructor needs a context.
func NewGoogle(opts Options) *Google {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	model := opts.Model
	if model == "" {
		model = defaultGoogleModel
	}

	return &Google{model: model, maxTokens: opts.MaxTokens, apiKey: apiKey}
}

// Name implements Provider.
func (g *Google) Name() string { return ProviderGoogle }

// CountTokens implements Provider.
func (g *Google) CountTokens(text string) int { return EstimateTokens(text) }

// ContextWindow implements Provider.
func (g *Google) ContextWindow() int { return googleContextWindow }

// Available implements Provider.
func (g *Google) Available() bool { return g.apiKey != "" }

// StreamWithTools implements Provider. Gemini delivers function calls
// whole rather than as partial-JSON deltas, so each call emits its
// start and end chunks back to back.
func (g *Google) StreamWithTools(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (<-chan Chunk, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	contents := convertMessagesToGenAI(messages)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.maxTokens)
	}
	if converted := convertToolsToGenAI(tools); len(converted) > 0 {
		cfg.Tools = converted
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		var usage Usage
		for result, err := range client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				out <- Chunk{Kind: ChunkError, Err: err}
				return
			}
			if result.UsageMetadata != nil {
				usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
				usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
			}
			if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
				continue
			}
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text != "" {
					out <- Chunk{Kind: ChunkText, Text: part.Text}
				}
				if part.FunctionCall != nil {
					id := part.FunctionCall.ID
					if id == "" {
						id = "call-" + uuid.New().String()[:8]
					}
					input, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						input = []byte("{}")
					}
					out <- Chunk{Kind: ChunkToolUseStart, ToolCall: &ToolCall{ID: id, Name: part.FunctionCall.Name}}
					out <- Chunk{Kind: ChunkToolUseEnd, ToolCall: &ToolCall{ID: id, Name: part.FunctionCall.Name, Input: input}}
				}
			}
		}
		out <- Chunk{Kind: ChunkDone, Usage: usage}
	}()

	return out, nil
}

func convertMessagesToGenAI(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal(call.Input, &args); err != nil {
					args = map[string]any{}
				}
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, args))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		default:
			var parts []*genai.Part
			for _, res := range msg.ToolResults {
				parts = append(parts, genai.NewPartFromFunctionResponse(res.Name, map[string]any{"output": res.Content}))
			}
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
			}
		}
	}
	return contents
}

func convertToolsToGenAI(tools []ToolDefinition) []*genai.Tool {
	out := make([]*genai.Tool, 0, len(tools))
	for _, tool := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: convertSchemaProperties(tool.Properties),
				Required:   tool.Required,
			},
		}
		out = append(out, &genai.Tool{FunctionDeclarations: []*genai.FunctionDeclaration{decl}})
	}
	return out
}

// convertSchemaProperties maps loose JSON-schema property maps onto the
// genai typed schema. Only the scalar types the builtin tools use are
// mapped; anything else falls back to string.
func convertSchemaProperties(props map[string]any) map[string]*genai.Schema {
	out := make(map[string]*genai.Schema, len(props))
	for name, raw := range props {
		schema := &genai.Schema{Type: genai.TypeString}
		if m, ok := raw.(map[string]any); ok {
			switch m["type"] {
			case "integer":
				schema.Type = genai.TypeInteger
			case "number":
				schema.Type = genai.TypeNumber
			case "boolean":
				schema.Type = genai.TypeBoolean
			}
			if desc, ok := m["description"].(string); ok {
				schema.Description = desc
			}
		}
		out[name] = schema
	}
	return out
}

// Compile-time interface check.
var _ Provider = (*Google)(nil)
