package tooling

import (
	"encoding/json"
	"errors"
	"fmt"

	"inventrack/internal/domain"
	"inventrack/internal/policy"
)

// ErrUnknownTool is returned for a name that is not in the registry.
var ErrUnknownTool = errors.New("unknown tool")

type entry struct {
	tool   SchemaTool
	schema *InputSchema
}

// ToolRegistry is an ordered tool catalogue. Each entry keeps its compiled
// input schema next to the tool.
type ToolRegistry struct {
	order []string
	tools map[string]entry
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]entry)}
}

// Register adds tool after compiling its schema. Names must be unique.
func (r *ToolRegistry) Register(tool SchemaTool) error {
	if tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	schema, err := CompileSchema(tool.Definition())
	if err != nil {
		return fmt.Errorf("tool %q: %w", name, err)
	}
	r.tools[name] = entry{tool: tool, schema: schema}
	r.order = append(r.order, name)
	return nil
}

func (r *ToolRegistry) Get(name string) (SchemaTool, error) {
	e, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return e.tool, nil
}

// Validate checks args against the named tool's schema. Empty or null args
// are treated as an empty object.
func (r *ToolRegistry) Validate(name string, args json.RawMessage) error {
	e, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return e.schema.Check(args)
}

func (r *ToolRegistry) List() []SchemaTool {
	out := make([]SchemaTool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *ToolRegistry) Len() int {
	return len(r.order)
}

// Definitions describes every tool for the model request.
func (r *ToolRegistry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name].tool
		out = append(out, domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: json.RawMessage(t.Definition()),
		})
	}
	return out
}

// ForRole returns a new registry holding only the tools role may see and
// call. Tools not known to the role policy are never included.
func (r *ToolRegistry) ForRole(role domain.Role) *ToolRegistry {
	out := NewToolRegistry()
	for _, name := range r.order {
		if !policy.Allowed(role, name) {
			continue
		}
		out.tools[name] = r.tools[name]
		out.order = append(out.order, name)
	}
	return out
}
