package llm

import (
	"encoding/json"
	"testing"
	"time"

	genai "github.com/google/generative-ai-go/genai"

	"inventrack/internal/domain"
)

func TestToGeminiContents_ShouldMapRolesAndMergeTurns(t *testing.T) {
	req := sampleRequest()
	// A second user message right after the tool result merges into the same turn.
	req.Messages = append(req.Messages,
		domain.NewMessage("4", domain.RoleUser, time.Now(), domain.TextBlock{Text: "and the dock?"}))

	contents := toGeminiContents(req.Messages)

	if len(contents) != 3 {
		t.Fatalf("want 3 contents, got %d", len(contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("content %d: want role %s, got %s", i, wantRoles[i], c.Role)
		}
	}
	call, ok := contents[1].Parts[0].(genai.FunctionCall)
	if !ok || call.Name != "search_inventory" || call.Args["query"] != "mouse" {
		t.Errorf("function call part: %#v", contents[1].Parts[0])
	}
	resp, ok := contents[2].Parts[0].(genai.FunctionResponse)
	if !ok || resp.Name != "search_inventory" || resp.Response["count"] != float64(1) {
		t.Errorf("function response part: %#v", contents[2].Parts[0])
	}
	if len(contents[2].Parts) != 2 {
		t.Errorf("tool result and follow-up question should share a turn, got %d parts", len(contents[2].Parts))
	}
}

func TestResponseMap(t *testing.T) {
	tests := []struct {
		in   string
		want any
		key  string
	}{
		{`{"error":"not found"}`, "not found", "error"},
		{`[1,2]`, []any{float64(1), float64(2)}, "result"},
		{`plain text`, "plain text", "result"},
	}
	for _, tt := range tests {
		got := responseMap(tt.in)
		b1, _ := json.Marshal(got[tt.key])
		b2, _ := json.Marshal(tt.want)
		if string(b1) != string(b2) {
			t.Errorf("responseMap(%q)[%s] = %s, want %s", tt.in, tt.key, b1, b2)
		}
	}
}

func TestToGeminiFunctions_ShouldConvertSchema(t *testing.T) {
	defs := []domain.ToolDefinition{
		{
			Name: "get_analytics",
			InputSchema: json.RawMessage(`{"type":"object","properties":{
				"metric_type":{"type":"string","enum":["overview","top_movers"],"description":"metric"},
				"period_days":{"type":"integer","minimum":1}
			},"required":["metric_type"]}`),
		},
		{Name: "get_low_stock_items", InputSchema: json.RawMessage(`{"type":"object","properties":{}}`)},
	}

	decls := toGeminiFunctions(defs)

	if len(decls) != 2 {
		t.Fatalf("want 2 declarations, got %d", len(decls))
	}
	p := decls[0].Parameters
	if p == nil || p.Type != genai.TypeObject {
		t.Fatalf("parameters: %#v", p)
	}
	metric := p.Properties["metric_type"]
	if metric.Type != genai.TypeString || len(metric.Enum) != 2 || metric.Description != "metric" {
		t.Errorf("metric_type: %#v", metric)
	}
	if p.Properties["period_days"].Type != genai.TypeInteger {
		t.Errorf("period_days: %#v", p.Properties["period_days"])
	}
	if len(p.Required) != 1 || p.Required[0] != "metric_type" {
		t.Errorf("required: %v", p.Required)
	}
	if decls[1].Parameters != nil {
		t.Error("tools without inputs should omit parameters")
	}
}
