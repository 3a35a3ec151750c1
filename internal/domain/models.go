package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Agents    AgentsConfig    `json:"agents" yaml:"agents"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Infra     InfraConfig     `json:"infra" yaml:"infra"`
	Retry     RetryConfig     `json:"retry" yaml:"retry"`
}

// RetryConfig controls retry behaviour for model calls.
type RetryConfig struct {
	MaxRetries     int `json:"maxRetries" yaml:"maxRetries"`         // Maximum retry attempts (0 = no retries)
	InitialBackoff int `json:"initialBackoff" yaml:"initialBackoff"` // Initial backoff in milliseconds
	MaxBackoff     int `json:"maxBackoff" yaml:"maxBackoff"`         // Maximum backoff in milliseconds
	Multiplier     int `json:"multiplier" yaml:"multiplier"`         // Backoff multiplier (e.g. 2 for exponential doubling)
}

type GatewayConfig struct {
	Port                   int      `json:"port" yaml:"port"`
	ExchangeTimeoutSeconds int      `json:"exchangeTimeoutSeconds" yaml:"exchangeTimeoutSeconds"`
	AllowedOrigins         []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

type AgentsConfig struct {
	Provider          string           `json:"provider" yaml:"provider"` // "openai" | "gemini" | "local"
	DefaultModel      string           `json:"defaultModel" yaml:"defaultModel"`
	BaseURL           string           `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	MaxSteps          int              `json:"maxSteps" yaml:"maxSteps"`
	TokenizerEncoding string           `json:"tokenizerEncoding,omitempty" yaml:"tokenizerEncoding,omitempty"`
	ContextTokens     int              `json:"contextTokens,omitempty" yaml:"contextTokens,omitempty"` // history budget per request; 0 sends everything
	Fallbacks         []FallbackConfig `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// FallbackConfig describes an alternative model provider for failover.
type FallbackConfig struct {
	Provider     string `json:"provider" yaml:"provider"`
	DefaultModel string `json:"defaultModel" yaml:"defaultModel"`
	BaseURL      string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
}

type DatabaseConfig struct {
	URL string `json:"url" yaml:"url"` // "file:inventrack.db" or "libsql://<db>.turso.io?authToken=..."
}

type SchedulerConfig struct {
	LowStockCron string `json:"lowStockCron" yaml:"lowStockCron"` // empty disables the scan
}

type InfraConfig struct {
	LogFormat string `json:"logFormat" yaml:"logFormat"` // "json" | "text"
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
}

// =============================================================================
// Roles
// =============================================================================

// Role is the caller's permission level, resolved per request from the
// authenticated profile.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// ParseRole maps a stored role string to a Role. Anything unrecognised
// resolves to RoleViewer.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	default:
		return RoleViewer
	}
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleViewer
}

// =============================================================================
// Messaging Protocol
// =============================================================================

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one conversation entry. RawContent holds JSON; ContentBlocks
// is populated after UnmarshalJSON for polymorphic content (text, tool_use, tool_result).
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Timestamp time.Time   `json:"timestamp"`

	// Polymorphic content: string or []ContentBlock (stored as raw JSON)
	RawContent json.RawMessage `json:"content"`
	// Parsed blocks (populated after Unmarshal)
	ContentBlocks []ContentBlock `json:"-"`
}

// NewMessage builds a Message from blocks, filling RawContent so the value
// round-trips through JSON.
func NewMessage(id string, role MessageRole, at time.Time, blocks ...ContentBlock) Message {
	return Message{
		ID:            id,
		Role:          role,
		Timestamp:     at,
		RawContent:    encodeBlocks(blocks),
		ContentBlocks: blocks,
	}
}

// Text concatenates every text block of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, blk := range m.ContentBlocks {
		if t, ok := blk.(TextBlock); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ToolUses returns the tool_use blocks in order.
func (m Message) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, blk := range m.ContentBlocks {
		if u, ok := blk.(ToolUseBlock); ok {
			out = append(out, u)
		}
	}
	return out
}

// ToolResults returns the tool_result blocks in order.
func (m Message) ToolResults() []ToolResultBlock {
	var out []ToolResultBlock
	for _, blk := range m.ContentBlocks {
		if r, ok := blk.(ToolResultBlock); ok {
			out = append(out, r)
		}
	}
	return out
}

// UnmarshalJSON implements custom unmarshaling for polymorphic content.
// If content is a string, it becomes a single TextBlock; if an array, each element
// is decoded by its "type" field into the appropriate ContentBlock implementation.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	type alias struct {
		Content json.RawMessage `json:"content"`
		plain
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.ID = a.ID
	m.Role = a.Role
	m.Timestamp = a.Timestamp
	m.RawContent = a.Content
	m.ContentBlocks = nil

	if len(a.Content) == 0 {
		return nil
	}
	blocks, err := parseMessageContent(a.Content)
	if err != nil {
		return err
	}
	m.ContentBlocks = blocks
	return nil
}

// parseMessageContent decodes content (string or array of blocks) into ContentBlocks.
func parseMessageContent(content json.RawMessage) ([]ContentBlock, error) {
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return []ContentBlock{TextBlock{Text: s}}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, err
	}
	blocks := make([]ContentBlock, 0, len(raw))
	for _, r := range raw {
		var typeOnly struct {
			Type BlockType `json:"type"`
		}
		if err := json.Unmarshal(r, &typeOnly); err != nil {
			continue
		}
		switch typeOnly.Type {
		case BlockText:
			var b TextBlock
			if err := json.Unmarshal(r, &b); err == nil {
				blocks = append(blocks, b)
			}
		case BlockToolUse:
			var b ToolUseBlock
			if err := json.Unmarshal(r, &b); err == nil {
				blocks = append(blocks, b)
			}
		case BlockToolResult:
			var b ToolResultBlock
			if err := json.Unmarshal(r, &b); err == nil {
				blocks = append(blocks, b)
			}
		}
	}
	return blocks, nil
}

// encodeBlocks renders blocks as the tagged JSON array read by parseMessageContent.
func encodeBlocks(blocks []ContentBlock) json.RawMessage {
	out := make([]map[string]any, 0, len(blocks))
	for _, blk := range blocks {
		switch b := blk.(type) {
		case TextBlock:
			out = append(out, map[string]any{"type": BlockText, "text": b.Text})
		case ToolUseBlock:
			out = append(out, map[string]any{"type": BlockToolUse, "id": b.ToolUseID, "name": b.Name, "input": b.Input})
		case ToolResultBlock:
			m := map[string]any{"type": BlockToolResult, "tool_use_id": b.ToolUseID, "name": b.Name, "content": b.Content}
			if b.IsError {
				m["is_error"] = true
			}
			out = append(out, m)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

type ContentBlock interface {
	Type() BlockType
}

type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) Type() BlockType { return BlockText }

// ToolUseBlock is a model-issued tool call.
type ToolUseBlock struct {
	ToolUseID string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

func (ToolUseBlock) Type() BlockType { return BlockToolUse }

// ToolResultBlock carries the JSON output (or {"error": ...}) of one call.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name,omitempty"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

func (ToolResultBlock) Type() BlockType { return BlockToolResult }

// =============================================================================
// Tooling
// =============================================================================

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}
