package window

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"inventrack/internal/domain"
)

// wordTokenizer costs one token per space-separated word.
type wordTokenizer struct {
	err error
}

func (w wordTokenizer) CountTokens(text string) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return len(strings.Fields(text)), nil
}

var at = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func text(role domain.MessageRole, s string) domain.Message {
	return domain.NewMessage(s, role, at, domain.TextBlock{Text: s})
}

func toolTurn(id string) (domain.Message, domain.Message) {
	call := domain.NewMessage(id+"-call", domain.RoleAssistant, at,
		domain.ToolUseBlock{ToolUseID: id, Name: "search_inventory", Input: json.RawMessage(`{}`)})
	result := domain.NewMessage(id+"-result", domain.RoleTool, at,
		domain.ToolResultBlock{ToolUseID: id, Name: "search_inventory", Content: "one two three four five six"})
	return call, result
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestNew_WhenArgsInvalid_ShouldPanic(t *testing.T) {
	for name, fn := range map[string]func(){
		"nil tokenizer": func() { New(nil, 10) },
		"zero budget":   func() { New(wordTokenizer{}, 0) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}

func TestFit_WhenEverythingFits_ShouldReturnAll(t *testing.T) {
	msgs := []domain.Message{text(domain.RoleUser, "hi"), text(domain.RoleAssistant, "hello"), text(domain.RoleUser, "bye")}

	got, err := New(wordTokenizer{}, 1000).Fit(msgs, "system prompt", nil)

	if err != nil || len(got) != 3 {
		t.Fatalf("Fit = %v, %v", ids(got), err)
	}
}

func TestFit_WhenOverBudget_ShouldDropOldestWholeTurns(t *testing.T) {
	// Given: an old exchange with a tool turn, then a short new question.
	call, result := toolTurn("c1")
	msgs := []domain.Message{
		text(domain.RoleUser, "old"),
		call,
		result,
		text(domain.RoleAssistant, "old answer"),
		text(domain.RoleUser, "new"),
	}

	// When: the budget covers the new question plus a little.
	got, err := New(wordTokenizer{}, 5).Fit(msgs, "", nil)

	// Then: the window starts at the newest user message, never at a tool result.
	if err != nil {
		t.Fatal(err)
	}
	if g := ids(got); len(g) != 1 || g[0] != "new" {
		t.Errorf("window = %v, want [new]", g)
	}
}

func TestFit_WhenCurrentTurnExceedsBudget_ShouldKeepItWhole(t *testing.T) {
	call, result := toolTurn("c1")
	msgs := []domain.Message{text(domain.RoleUser, "earlier"), text(domain.RoleUser, "question"), call, result}

	got, err := New(wordTokenizer{}, 3).Fit(msgs, "", nil)

	if err != nil {
		t.Fatal(err)
	}
	if g := ids(got); len(g) != 3 || g[0] != "question" {
		t.Errorf("window = %v, want [question c1-call c1-result]", g)
	}
}

func TestFit_ShouldReserveSystemPromptAndTools(t *testing.T) {
	msgs := []domain.Message{text(domain.RoleUser, "a"), text(domain.RoleAssistant, "b"), text(domain.RoleUser, "c")}
	tools := []domain.ToolDefinition{{Name: "t", Description: "x y", InputSchema: json.RawMessage(`{}`)}}

	roomy, _ := New(wordTokenizer{}, 100).Fit(msgs, "one two", tools)
	tight, _ := New(wordTokenizer{}, 8).Fit(msgs, "one two", tools)

	if len(roomy) != 3 {
		t.Errorf("roomy window = %v", ids(roomy))
	}
	if g := ids(tight); len(g) != 1 || g[0] != "c" {
		t.Errorf("tight window = %v, want [c]", g)
	}
}

func TestFit_WhenEmpty_ShouldReturnEmpty(t *testing.T) {
	got, err := New(wordTokenizer{}, 5).Fit(nil, "sys", nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Fit(nil) = %v, %v", got, err)
	}
}

func TestFit_WhenTokenizerFails_ShouldReturnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(wordTokenizer{err: boom}, 5).Fit([]domain.Message{text(domain.RoleUser, "a")}, "sys", nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
