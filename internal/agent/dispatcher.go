package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
	"inventrack/internal/inventory"
	"inventrack/internal/tooling"
)

// toolCall is one call requested by the model in a single step.
type toolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// dispatcher runs model-issued calls against the caller's tool set. Every
// outcome, including unknown tools and invalid arguments, becomes a
// ToolResultBlock; nothing here aborts the exchange.
type dispatcher struct {
	tools  *tooling.ToolRegistry
	logger *slog.Logger
}

// handle looks up the tool, validates the arguments against its schema and
// only then calls it. Unknown or invalid calls never reach the tool.
func (d dispatcher) handle(ctx context.Context, caller auth.Identity, call toolCall) (res domain.ToolResultBlock) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", call.Name, "call_id", call.ID, "panic", r)
			res = errorResult(call, fmt.Sprintf("tool %s failed unexpectedly", call.Name))
		}
	}()

	tool, err := d.tools.Get(call.Name)
	if err != nil {
		d.logger.Warn("unknown tool requested", "tool", call.Name, "user_id", caller.UserID, "role", caller.Role)
		return errorResult(call, "unknown tool: "+call.Name)
	}
	if err := d.tools.Validate(call.Name, call.Args); err != nil {
		d.logger.Info("tool arguments rejected", "tool", call.Name, "error", err)
		return errorResult(call, fmt.Sprintf("invalid arguments for %s: %v", call.Name, err))
	}

	out, err := tool.Call(ctx, caller, call.Args)
	if err != nil {
		level := slog.LevelInfo
		if !isCallerError(err) {
			level = slog.LevelWarn
		}
		d.logger.Log(ctx, level, "tool returned error", "tool", call.Name, "call_id", call.ID, "error", err)
		return errorResult(call, err.Error())
	}
	data, err := json.Marshal(out)
	if err != nil {
		return errorResult(call, fmt.Sprintf("tool %s produced an unencodable result", call.Name))
	}
	d.logger.Debug("tool completed", "tool", call.Name, "call_id", call.ID, "duration", time.Since(start))
	return domain.ToolResultBlock{ToolUseID: call.ID, Name: call.Name, Content: string(data)}
}

// isCallerError reports failures the model caused and can correct.
func isCallerError(err error) bool {
	return errors.Is(err, inventory.ErrInvalidArgument) ||
		errors.Is(err, inventory.ErrForbidden) ||
		errors.Is(err, inventory.ErrNotFound)
}

func errorResult(call toolCall, msg string) domain.ToolResultBlock {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return domain.ToolResultBlock{ToolUseID: call.ID, Name: call.Name, Content: string(data), IsError: true}
}
