package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"inventrack/internal/domain"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	ollamaBaseURL     = "http://localhost:11434/v1"
)

// OpenAIModel streams chat completions from any OpenAI-compatible endpoint
// (OpenAI, OpenRouter, Ollama) with function calling.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel returns a ChatModel for apiKey and model. An empty baseURL
// uses the OpenAI default.
func NewOpenAIModel(apiKey, model, baseURL string) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModel{client: openai.NewClientWithConfig(cfg), model: model}
}

// Stream implements domain.ChatModel. Tool call fragments are accumulated by
// index and emitted once the turn is complete.
func (p *OpenAIModel) Stream(ctx context.Context, req domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(req),
		Tools:    toOpenAITools(req.Tools),
	})
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	out := make(chan domain.ModelChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		calls := map[int]*openai.ToolCall{}
		var order []int
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				emit(ctx, out, domain.ModelChunk{Kind: domain.ChunkError, Err: fmt.Errorf("openai recv: %w", err)})
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content != "" {
					if !emit(ctx, out, domain.ModelChunk{Kind: domain.ChunkText, Text: choice.Delta.Content}) {
						return
					}
				}
				for _, tc := range choice.Delta.ToolCalls {
					idx := len(order)
					if tc.Index != nil {
						idx = *tc.Index
					}
					acc, ok := calls[idx]
					if !ok {
						acc = &openai.ToolCall{}
						calls[idx] = acc
						order = append(order, idx)
					}
					if tc.ID != "" {
						acc.ID = tc.ID
					}
					if tc.Function.Name != "" {
						acc.Function.Name = tc.Function.Name
					}
					acc.Function.Arguments += tc.Function.Arguments
				}
			}
		}
		for _, idx := range order {
			c := calls[idx]
			if !emit(ctx, out, domain.ModelChunk{
				Kind:   domain.ChunkToolCall,
				CallID: c.ID,
				Name:   c.Function.Name,
				Args:   rawArgs(c.Function.Arguments),
			}) {
				return
			}
		}
	}()
	return out, nil
}

func toOpenAIMessages(req domain.ModelRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text()})
		case domain.RoleAssistant:
			om := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text()}
			for _, u := range m.ToolUses() {
				om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
					ID:   u.ToolUseID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      u.Name,
						Arguments: string(rawArgs(string(u.Input))),
					},
				})
			}
			msgs = append(msgs, om)
		case domain.RoleTool:
			for _, r := range m.ToolResults() {
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    r.Content,
					ToolCallID: r.ToolUseID,
				})
			}
		}
	}
	return msgs
}

func toOpenAITools(defs []domain.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(defs))
	for i, d := range defs {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  parameterSchema(d.InputSchema),
			},
		}
	}
	return tools
}

var _ domain.ChatModel = (*OpenAIModel)(nil)
