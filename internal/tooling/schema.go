package tooling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"inventrack/internal/auth"
)

// SchemaTool is a tool whose arguments are described by a JSON Schema
// reflected from a Go input struct. The registry validates arguments against
// Definition before Call sees them.
type SchemaTool interface {
	Name() string
	Description() string
	Definition() string
	// Call runs the tool for caller. The result is marshaled to JSON for the model.
	Call(ctx context.Context, caller auth.Identity, args json.RawMessage) (any, error)
}

// Hook for tests.
var marshalFunc = func(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

var reflector = invopop.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
	Anonymous:                 true,
}

// GenerateSchema reflects input into a closed JSON Schema: unknown
// properties are refused and fields without omitempty are required.
// It returns "" if the schema cannot be encoded.
func GenerateSchema(input any) string {
	b, err := marshalFunc(reflector.Reflect(input))
	if err != nil {
		return ""
	}
	return string(b)
}

// InputSchema is a compiled tool input schema.
type InputSchema struct {
	compiled *jsonschema.Schema
}

// CompileSchema parses a schema document once for repeated checks.
func CompileSchema(doc string) (*InputSchema, error) {
	s, err := jsonschema.CompileString("input.json", doc)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &InputSchema{compiled: s}, nil
}

// Check validates raw tool arguments. Empty or null arguments count as {}.
func (s *InputSchema) Check(args json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(normalizeArgs(args), &doc); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateAgainstSchema compiles doc and checks args against it.
func ValidateAgainstSchema(args json.RawMessage, doc string) error {
	s, err := CompileSchema(doc)
	if err != nil {
		return err
	}
	return s.Check(args)
}

// normalizeArgs maps empty or null arguments to {}, which is how models call
// tools that take no input.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return json.RawMessage("{}")
	}
	return trimmed
}
