package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inventrack/internal/domain"
)

// sseServer replies to chat completions with the given data lines and
// records the decoded request body.
func sseServer(t *testing.T, lines []string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			_ = json.Unmarshal(body, got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, ch <-chan domain.ModelChunk) (string, []domain.ModelChunk, error) {
	t.Helper()
	var text strings.Builder
	var calls []domain.ModelChunk
	for c := range ch {
		switch c.Kind {
		case domain.ChunkText:
			text.WriteString(c.Text)
		case domain.ChunkToolCall:
			calls = append(calls, c)
		case domain.ChunkError:
			return text.String(), calls, c.Err
		}
	}
	return text.String(), calls, nil
}

func sampleRequest() domain.ModelRequest {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return domain.ModelRequest{
		System: "You are InvenTrack AI",
		Messages: []domain.Message{
			domain.NewMessage("1", domain.RoleUser, at, domain.TextBlock{Text: "mouse stock?"}),
			domain.NewMessage("2", domain.RoleAssistant, at, domain.ToolUseBlock{ToolUseID: "call_0", Name: "search_inventory", Input: json.RawMessage(`{"query":"mouse"}`)}),
			domain.NewMessage("3", domain.RoleTool, at, domain.ToolResultBlock{ToolUseID: "call_0", Name: "search_inventory", Content: `{"count":1}`}),
		},
		Tools: []domain.ToolDefinition{{
			Name:        "search_inventory",
			Description: "Search inventory items",
			InputSchema: json.RawMessage(`{"$schema":"https://json-schema.org/draft/2020-12/schema","type":"object","properties":{"query":{"type":"string"}}}`),
		}},
	}
}

func TestOpenAIModel_Stream_ShouldEmitTextAndAssembledToolCalls(t *testing.T) {
	// Given: a server streaming text and a tool call split over two deltas
	var body map[string]any
	srv := sseServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Check"}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"ing. "}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_stock_movements","arguments":"{\"product_"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"id\":\"p1\"}"}}]}}]}`,
	}, &body)
	m := NewOpenAIModel("sk-test", "gpt-4o-mini", srv.URL+"/v1")

	// When: streaming one turn
	ch, err := m.Stream(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, calls, err := collect(t, ch)

	// Then: text deltas and one complete call
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if text != "Checking. " {
		t.Errorf("text: %q", text)
	}
	if len(calls) != 1 || calls[0].CallID != "call_1" || calls[0].Name != "get_stock_movements" {
		t.Fatalf("calls: %+v", calls)
	}
	if string(calls[0].Args) != `{"product_id":"p1"}` {
		t.Errorf("args: %s", calls[0].Args)
	}

	// And: the request carried system, history and a cleaned tool schema
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("want 4 messages, got %d", len(msgs))
	}
	if first := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message should be system: %v", first)
	}
	if tool := msgs[3].(map[string]any); tool["role"] != "tool" || tool["tool_call_id"] != "call_0" {
		t.Errorf("tool message: %v", tool)
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("want 1 tool, got %v", body["tools"])
	}
	params := tools[0].(map[string]any)["function"].(map[string]any)["parameters"].(map[string]any)
	if _, ok := params["$schema"]; ok {
		t.Error("$schema should be stripped from tool parameters")
	}
}

func TestOpenAIModel_Stream_WhenUnauthorized_ShouldReturnError(t *testing.T) {
	srv := sseServer(t, nil, nil)
	m := NewOpenAIModel("wrong-key", "gpt-4o-mini", srv.URL+"/v1")

	_, err := m.Stream(context.Background(), sampleRequest())
	if err == nil || !strings.Contains(err.Error(), "openai stream") {
		t.Errorf("want wrapped openai error, got %v", err)
	}
}

func TestToOpenAITools_WhenEmpty_ShouldReturnNil(t *testing.T) {
	if toOpenAITools(nil) != nil {
		t.Error("no tools should produce a nil slice so the field is omitted")
	}
}
