package llm

import (
	"context"
	"encoding/json"

	"inventrack/internal/domain"
)

// parameterSchema decodes a tool's JSON schema for a provider request. It
// drops "$schema" and "$id", which some providers reject, and makes sure an
// object schema carries "properties".
func parameterSchema(raw json.RawMessage) map[string]any {
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil || m == nil {
			m = map[string]any{}
		}
	}
	delete(m, "$schema")
	delete(m, "$id")
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	if m["type"] == "object" {
		if _, ok := m["properties"]; !ok {
			m["properties"] = map[string]any{}
		}
	}
	return m
}

// emit delivers c unless ctx is done first.
func emit(ctx context.Context, out chan<- domain.ModelChunk, c domain.ModelChunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// rawArgs turns a provider's argument string into JSON, defaulting to {}.
func rawArgs(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}
