// Package window trims the history sent to the model so a request fits a
// token budget. The caller keeps the full conversation.
package window

import (
	"fmt"

	"inventrack/internal/domain"
)

// Fitter implements a sliding window: the system prompt and tool schemas are
// reserved first, then messages are kept from newest to oldest.
type Fitter struct {
	tokenizer domain.Tokenizer
	maxTokens int
}

// New returns a Fitter. Panics if tokenizer is nil or maxTokens <= 0.
func New(tokenizer domain.Tokenizer, maxTokens int) *Fitter {
	if tokenizer == nil {
		panic("window: tokenizer must not be nil")
	}
	if maxTokens <= 0 {
		panic("window: maxTokens must be > 0")
	}
	return &Fitter{tokenizer: tokenizer, maxTokens: maxTokens}
}

// Fit returns the suffix of msgs that fits beside system and tools.
//
// The window always starts at a user message, so a tool result is never
// separated from the call that produced it. When even the latest user turn
// does not fit, it is kept whole and the budget is exceeded.
func (f *Fitter) Fit(msgs []domain.Message, system string, tools []domain.ToolDefinition) ([]domain.Message, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}
	reserved, err := f.tokenizer.CountTokens(system)
	if err != nil {
		return nil, fmt.Errorf("window: system prompt: %w", err)
	}
	for _, d := range tools {
		n, err := f.tokenizer.CountTokens(d.Name + " " + d.Description + " " + string(d.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("window: tool %s: %w", d.Name, err)
		}
		reserved += n
	}
	budget := f.maxTokens - reserved

	start := len(msgs)
	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		n, err := f.tokenizer.CountTokens(string(msgs[i].RawContent))
		if err != nil {
			return nil, fmt.Errorf("window: message %d: %w", i, err)
		}
		if total+n > budget {
			break
		}
		total += n
		start = i
	}
	return msgs[alignStart(msgs, start):], nil
}

// alignStart moves start forward to the next user message, or back to the
// latest one when none remains in the window.
func alignStart(msgs []domain.Message, start int) int {
	for i := start; i < len(msgs); i++ {
		if msgs[i].Role == domain.RoleUser {
			return i
		}
	}
	for i := min(start, len(msgs)-1); i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			return i
		}
	}
	return 0
}
