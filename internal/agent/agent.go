// Package agent drives one chat exchange: it offers the caller's tool set to
// the model, runs the calls the model asks for, feeds the results back and
// stops on a final answer, the step budget, cancellation or a model failure.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
	"inventrack/internal/injection"
	"inventrack/internal/prompt"
	"inventrack/internal/tokenizer"
	"inventrack/internal/tooling"
)

// DefaultMaxSteps bounds model invocations per exchange.
const DefaultMaxSteps = 8

// maxParallelTools caps concurrent tool calls within one step.
const maxParallelTools = 4

// ErrModelUnavailable wraps every upstream model failure.
var ErrModelUnavailable = errors.New("agent: model unavailable")

// State is a phase of one exchange.
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateDone           State = "done"
	StateError          State = "error"
)

// StopReason says why an exchange ended.
type StopReason string

const (
	StopFinal      StopReason = "final"
	StopStepBudget StopReason = "step_budget"
	StopCancelled  StopReason = "cancelled"
	StopError      StopReason = "error"
)

// EventKind tags an Event.
type EventKind int

const (
	// EventText carries a model text delta.
	EventText EventKind = iota
	// EventWorking marks tool execution; Tools names the calls in flight.
	EventWorking
	// EventState reports a state transition.
	EventState
	// EventDone carries the Result and is always the last event.
	EventDone
)

// Event is one item of an exchange's output stream.
type Event struct {
	Kind   EventKind
	Text   string
	State  State
	Tools  []string
	Result *Result
}

// Result is the outcome of one exchange.
type Result struct {
	// Conversation is the input history plus every completed turn. A tool
	// call is never present without its result.
	Conversation []domain.Message
	StopReason   StopReason
	// Text is the assistant text of all completed turns.
	Text  string
	Steps int
	Err   error
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets a structured logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxSteps sets the step budget. Values <= 0 keep DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithTokenizer enables per-step prompt size logging. Nil is ignored.
func WithTokenizer(t domain.Tokenizer) Option {
	return func(a *Agent) {
		if t != nil {
			a.tokenizer = t
		}
	}
}

// HistoryFitter trims the messages sent to the model. *window.Fitter
// implements it.
type HistoryFitter interface {
	Fit(msgs []domain.Message, system string, tools []domain.ToolDefinition) ([]domain.Message, error)
}

// WithHistoryFitter bounds the history sent on each step. The conversation
// in the Result is never trimmed. Nil is ignored.
func WithHistoryFitter(f HistoryFitter) Option {
	return func(a *Agent) {
		if f != nil {
			a.fitter = f
		}
	}
}

// WithClock overrides the time source used for the prompt date and message
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// Agent runs exchanges against one model and the full tool registry. It
// holds no per-exchange state and is safe for concurrent use.
type Agent struct {
	model     domain.ChatModel
	tools     *tooling.ToolRegistry
	logger    *slog.Logger
	tokenizer domain.Tokenizer
	fitter    HistoryFitter
	maxSteps  int
	now       func() time.Time
	newID     func() string
}

// New returns an Agent. Panics if model or tools is nil.
func New(model domain.ChatModel, tools *tooling.ToolRegistry, opts ...Option) *Agent {
	if model == nil {
		panic("agent: model must not be nil")
	}
	if tools == nil {
		panic("agent: tool registry must not be nil")
	}
	a := &Agent{
		model:    model,
		tools:    tools,
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}

// Stream runs one exchange for caller in the background and returns its
// events. The last event is always EventDone, after which the channel is
// closed. The caller must receive until the channel is closed; events other
// than EventDone are dropped once ctx is done.
func (a *Agent) Stream(ctx context.Context, caller auth.Identity, history []domain.Message) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		emit := func(ev Event) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
		res := a.exchange(ctx, caller, history, emit)
		out <- Event{Kind: EventDone, State: finalState(res), Result: &res}
	}()
	return out
}

// Run is the blocking form of Stream.
func (a *Agent) Run(ctx context.Context, caller auth.Identity, history []domain.Message) Result {
	return a.exchange(ctx, caller, history, func(Event) {})
}

func finalState(r Result) State {
	if r.Err != nil {
		return StateError
	}
	return StateDone
}

// turn is what the model produced in one step.
type turn struct {
	text  string
	calls []toolCall
}

func (a *Agent) exchange(ctx context.Context, caller auth.Identity, history []domain.Message, emit func(Event)) Result {
	conv := make([]domain.Message, len(history), len(history)+2*a.maxSteps)
	copy(conv, history)

	tools := a.tools.ForRole(caller.Role)
	defs := tools.Definitions()
	system := prompt.Build(caller.Role, tools.Names(), a.now())
	disp := dispatcher{tools: tools, logger: a.log()}
	logger := a.log().With("user_id", caller.UserID, "role", caller.Role)

	if n := len(conv); n > 0 && conv[n-1].Role == domain.RoleUser {
		injection.Report(logger, caller.UserID, conv[n-1])
	}

	var text strings.Builder
	result := func(reason StopReason, steps int, err error) Result {
		return Result{Conversation: conv, StopReason: reason, Text: text.String(), Steps: steps, Err: err}
	}

	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			logger.Info("exchange cancelled", "step", step-1)
			return result(StopCancelled, step-1, err)
		}
		emit(Event{Kind: EventState, State: StateAwaitingModel})

		req := domain.ModelRequest{System: system, Messages: a.window(logger, conv, system, defs, step), Tools: defs}
		a.logPromptSize(logger, req, step)

		t, err := a.runModel(ctx, req, emit)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("exchange cancelled", "step", step)
				return result(StopCancelled, step-1, ctx.Err())
			}
			logger.Error("model failed", "step", step, "error", err)
			emit(Event{Kind: EventState, State: StateError})
			return result(StopError, step, fmt.Errorf("%w: %w", ErrModelUnavailable, err))
		}

		if len(t.calls) == 0 {
			if err := ctx.Err(); err != nil {
				logger.Info("exchange cancelled", "step", step)
				return result(StopCancelled, step-1, err)
			}
			conv = append(conv, domain.NewMessage(a.newID(), domain.RoleAssistant, a.now(), domain.TextBlock{Text: t.text}))
			text.WriteString(t.text)
			emit(Event{Kind: EventState, State: StateDone})
			logger.Info("exchange finished", "steps", step)
			return result(StopFinal, step, nil)
		}

		names := make([]string, len(t.calls))
		for i, c := range t.calls {
			names[i] = c.Name
		}
		emit(Event{Kind: EventState, State: StateExecutingTools})
		emit(Event{Kind: EventWorking, Tools: names})

		results, err := a.executeTools(ctx, caller, disp, t.calls)
		if err != nil {
			logger.Info("exchange cancelled during tools", "step", step, "tools", names)
			return result(StopCancelled, step, err)
		}
		conv = append(conv, assistantToolMessage(a.newID(), a.now(), t), toolResultMessage(a.newID(), a.now(), results))
		text.WriteString(t.text)
	}

	logger.Warn("step budget exhausted", "max_steps", a.maxSteps)
	emit(Event{Kind: EventState, State: StateDone})
	return result(StopStepBudget, a.maxSteps, nil)
}

// runModel consumes one model turn, forwarding text deltas as they arrive.
func (a *Agent) runModel(ctx context.Context, req domain.ModelRequest, emit func(Event)) (turn, error) {
	chunks, err := a.model.Stream(ctx, req)
	if err != nil {
		return turn{}, err
	}
	var t turn
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return turn{}, ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				if err := ctx.Err(); err != nil {
					return turn{}, err
				}
				t.text = sb.String()
				return t, nil
			}
			switch c.Kind {
			case domain.ChunkText:
				if c.Text == "" {
					continue
				}
				sb.WriteString(c.Text)
				emit(Event{Kind: EventText, Text: c.Text})
			case domain.ChunkToolCall:
				t.calls = append(t.calls, a.normalizeCall(c))
			case domain.ChunkError:
				if c.Err == nil {
					return turn{}, errors.New("model stream failed")
				}
				return turn{}, c.Err
			}
		}
	}
}

// normalizeCall fills a missing call ID.
func (a *Agent) normalizeCall(c domain.ModelChunk) toolCall {
	id := c.CallID
	if id == "" {
		id = "call_" + a.newID()
	}
	return toolCall{ID: id, Name: c.Name, Args: c.Args}
}

// executeTools runs every call of one step concurrently and waits for all of
// them. Results keep call order. A cancelled ctx discards them all.
func (a *Agent) executeTools(ctx context.Context, caller auth.Identity, disp dispatcher, calls []toolCall) ([]domain.ToolResultBlock, error) {
	results := make([]domain.ToolResultBlock, len(calls))
	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i, c := range calls {
		g.Go(func() error {
			results[i] = disp.handle(ctx, caller, c)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// window applies the history fitter. A failing fitter sends the full history.
func (a *Agent) window(logger *slog.Logger, conv []domain.Message, system string, defs []domain.ToolDefinition, step int) []domain.Message {
	if a.fitter == nil {
		return conv
	}
	fitted, err := a.fitter.Fit(conv, system, defs)
	if err != nil {
		logger.Warn("history window failed, sending full history", "step", step, "error", err)
		return conv
	}
	if dropped := len(conv) - len(fitted); dropped > 0 {
		logger.Debug("history trimmed", "step", step, "dropped", dropped)
	}
	return fitted
}

func (a *Agent) logPromptSize(logger *slog.Logger, req domain.ModelRequest, step int) {
	if a.tokenizer == nil {
		return
	}
	n, err := tokenizer.CountRequest(a.tokenizer, req)
	if err != nil {
		logger.Debug("token count failed", "step", step, "error", err)
		return
	}
	logger.Debug("model request", "step", step, "messages", len(req.Messages), "prompt_tokens", n)
}

func assistantToolMessage(id string, at time.Time, t turn) domain.Message {
	blocks := make([]domain.ContentBlock, 0, len(t.calls)+1)
	if t.text != "" {
		blocks = append(blocks, domain.TextBlock{Text: t.text})
	}
	for _, c := range t.calls {
		input := c.Args
		if len(input) == 0 || !json.Valid(input) {
			input = json.RawMessage("{}")
		}
		blocks = append(blocks, domain.ToolUseBlock{ToolUseID: c.ID, Name: c.Name, Input: input})
	}
	return domain.NewMessage(id, domain.RoleAssistant, at, blocks...)
}

func toolResultMessage(id string, at time.Time, results []domain.ToolResultBlock) domain.Message {
	blocks := make([]domain.ContentBlock, len(results))
	for i, r := range results {
		blocks[i] = r
	}
	return domain.NewMessage(id, domain.RoleTool, at, blocks...)
}
