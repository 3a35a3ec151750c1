package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"inventrack/internal/domain"
)

// GeminiModel streams from the Google Gemini API with function calling.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel returns a Gemini-backed ChatModel. Close releases the client.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// Close releases the underlying client.
func (p *GeminiModel) Close() error {
	return p.client.Close()
}

// Stream implements domain.ChatModel.
func (p *GeminiModel) Stream(ctx context.Context, req domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	contents := toGeminiContents(req.Messages)
	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return nil, errors.New("gemini: conversation must end with a user or tool message")
	}

	model := p.client.GenerativeModel(p.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if decls := toGeminiFunctions(req.Tools); len(decls) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	iter := cs.SendMessageStream(ctx, contents[len(contents)-1].Parts...)

	out := make(chan domain.ModelChunk)
	go func() {
		defer close(out)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				emit(ctx, out, domain.ModelChunk{Kind: domain.ChunkError, Err: fmt.Errorf("gemini stream: %w", err)})
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if !emitGeminiPart(ctx, out, part) {
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func emitGeminiPart(ctx context.Context, out chan<- domain.ModelChunk, part genai.Part) bool {
	switch v := part.(type) {
	case genai.Text:
		if v == "" {
			return true
		}
		return emit(ctx, out, domain.ModelChunk{Kind: domain.ChunkText, Text: string(v)})
	case genai.FunctionCall:
		args, err := json.Marshal(v.Args)
		if err != nil || v.Args == nil {
			args = []byte("{}")
		}
		return emit(ctx, out, domain.ModelChunk{Kind: domain.ChunkToolCall, Name: v.Name, Args: args})
	case *genai.FunctionCall:
		return emitGeminiPart(ctx, out, *v)
	}
	return true
}

// toGeminiContents maps the conversation onto Gemini's user/model turns.
// Tool results travel as function responses in a user turn; consecutive
// turns of the same role are merged.
func toGeminiContents(msgs []domain.Message) []*genai.Content {
	var contents []*genai.Content
	add := func(role string, parts []genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	for _, m := range msgs {
		var parts []genai.Part
		switch m.Role {
		case domain.RoleUser:
			if t := m.Text(); t != "" {
				parts = append(parts, genai.Text(t))
			}
			add("user", parts)
		case domain.RoleAssistant:
			if t := m.Text(); t != "" {
				parts = append(parts, genai.Text(t))
			}
			for _, u := range m.ToolUses() {
				args := map[string]any{}
				_ = json.Unmarshal(u.Input, &args)
				parts = append(parts, genai.FunctionCall{Name: u.Name, Args: args})
			}
			add("model", parts)
		case domain.RoleTool:
			for _, r := range m.ToolResults() {
				parts = append(parts, genai.FunctionResponse{Name: r.Name, Response: responseMap(r.Content)})
			}
			add("user", parts)
		}
	}
	return contents
}

// responseMap decodes a tool result into the object Gemini expects.
func responseMap(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	if err := json.Unmarshal([]byte(content), &v); err == nil {
		return map[string]any{"result": v}
	}
	return map[string]any{"result": content}
}

func toGeminiFunctions(defs []domain.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		fd := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
		params := parameterSchema(d.InputSchema)
		if props, _ := params["properties"].(map[string]any); len(props) > 0 {
			fd.Parameters = geminiSchema(params)
		}
		decls = append(decls, fd)
	}
	return decls
}

// geminiSchema converts the JSON schema subset used by tool inputs.
func geminiSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	switch m["type"] {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	default:
		s.Type = genai.TypeObject
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if f, ok := m["format"].(string); ok {
		s.Format = f
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = geminiSchema(items)
	}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = geminiSchema(pm)
			}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	return s
}

var _ domain.ChatModel = (*GeminiModel)(nil)
