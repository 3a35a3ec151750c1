package llm

import (
	"context"
	"fmt"
	"strings"

	"inventrack/internal/domain"
	"inventrack/internal/policy"
)

// maxLocalResult caps how much of a tool result the local model echoes.
const maxLocalResult = 600

// LocalModel is an offline, deterministic ChatModel for development without
// API keys. It maps a few keywords of the last user message to a tool call
// and then echoes the tool results back as text.
type LocalModel struct {
	Prefix string // prepended to plain echo replies
}

// NewLocalModel returns a local model with an optional reply prefix.
func NewLocalModel(prefix string) *LocalModel {
	return &LocalModel{Prefix: prefix}
}

// Stream implements domain.ChatModel.
func (p *LocalModel) Stream(ctx context.Context, req domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunks := p.respond(req)
	out := make(chan domain.ModelChunk, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (p *LocalModel) respond(req domain.ModelRequest) []domain.ModelChunk {
	if len(req.Messages) == 0 {
		return textChunks(p.Prefix + "How can I help with your inventory?")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role == domain.RoleTool {
		var sb strings.Builder
		sb.WriteString("Here is what I found:\n")
		for _, r := range last.ToolResults() {
			content := r.Content
			if len(content) > maxLocalResult {
				content = content[:maxLocalResult] + "..."
			}
			fmt.Fprintf(&sb, "- %s: %s\n", r.Name, content)
		}
		return textChunks(sb.String())
	}

	text := last.Text()
	if name, args, ok := pickTool(text, req.Tools); ok {
		return []domain.ModelChunk{{Kind: domain.ChunkToolCall, Name: name, Args: rawArgs(args)}}
	}
	return textChunks(p.Prefix + text)
}

// pickTool chooses a tool from simple keywords, only among offered tools.
func pickTool(text string, tools []domain.ToolDefinition) (string, string, bool) {
	offered := make(map[string]bool, len(tools))
	for _, t := range tools {
		offered[t.Name] = true
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "low stock") || strings.Contains(lower, "reorder"):
		if offered[policy.ToolGetLowStockItems] {
			return policy.ToolGetLowStockItems, "{}", true
		}
	case strings.Contains(lower, "top movers"):
		if offered[policy.ToolGetAnalytics] {
			return policy.ToolGetAnalytics, `{"metric_type":"top_movers"}`, true
		}
	case strings.Contains(lower, "overview") || strings.Contains(lower, "analytics"):
		if offered[policy.ToolGetAnalytics] {
			return policy.ToolGetAnalytics, `{"metric_type":"overview"}`, true
		}
	case strings.Contains(lower, "category") || strings.Contains(lower, "categories"):
		if offered[policy.ToolGetAnalytics] {
			return policy.ToolGetAnalytics, `{"metric_type":"category_breakdown"}`, true
		}
	case strings.Contains(lower, "inventory") || strings.Contains(lower, "stock"):
		if offered[policy.ToolSearchInventory] {
			return policy.ToolSearchInventory, "{}", true
		}
	}
	return "", "", false
}

// textChunks splits s into word-sized deltas to exercise streaming.
func textChunks(s string) []domain.ModelChunk {
	words := strings.SplitAfter(s, " ")
	chunks := make([]domain.ModelChunk, 0, len(words))
	for _, w := range words {
		if w != "" {
			chunks = append(chunks, domain.ModelChunk{Kind: domain.ChunkText, Text: w})
		}
	}
	return chunks
}

var _ domain.ChatModel = (*LocalModel)(nil)
