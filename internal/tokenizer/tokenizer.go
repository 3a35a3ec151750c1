package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"inventrack/internal/domain"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "cl100k_base"

// TikToken wraps tiktoken-go to implement domain.Tokenizer.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

// NewTikToken creates a tokenizer for the given encoding name
// ("cl100k_base", "o200k_base"). An empty name selects DefaultEncoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: enc}, nil
}

// CountTokens returns the number of tokens in the given text.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(t.encoding.Encode(text, nil, nil)), nil
}

// CountRequest estimates the prompt size of one model invocation: the system
// prompt, every message's raw content and every tool schema.
func CountRequest(tok domain.Tokenizer, req domain.ModelRequest) (int, error) {
	total, err := tok.CountTokens(req.System)
	if err != nil {
		return 0, fmt.Errorf("tokenizer: system prompt: %w", err)
	}
	for _, m := range req.Messages {
		n, err := tok.CountTokens(string(m.RawContent))
		if err != nil {
			return 0, fmt.Errorf("tokenizer: message %s: %w", m.ID, err)
		}
		total += n
	}
	for _, d := range req.Tools {
		n, err := tok.CountTokens(d.Name + " " + d.Description + " " + string(d.InputSchema))
		if err != nil {
			return 0, fmt.Errorf("tokenizer: tool %s: %w", d.Name, err)
		}
		total += n
	}
	return total, nil
}

var _ domain.Tokenizer = (*TikToken)(nil)
