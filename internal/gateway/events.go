package gateway

import (
	"context"
	"errors"

	"inventrack/internal/agent"
	"inventrack/internal/domain"
)

// Event types written to SSE and WebSocket clients.
const (
	evText    = "text"
	evState   = "state"
	evWorking = "working"
	evDone    = "done"
	evError   = "error"
)

// wireEvent is the client-facing form of an agent.Event. The same shape is
// used as the SSE data payload and as the WebSocket message.
type wireEvent struct {
	Type       string           `json:"type"`
	Content    string           `json:"content,omitempty"`
	State      string           `json:"state,omitempty"`
	Tools      []string         `json:"tools,omitempty"`
	StopReason string           `json:"stopReason,omitempty"`
	Steps      int              `json:"steps,omitempty"`
	Retryable  bool             `json:"retryable,omitempty"`
	Messages   []domain.Message `json:"messages,omitempty"`
}

// toWire converts one agent event. A failed or timed-out exchange produces
// an error event ahead of the done event. withConversation attaches the
// updated conversation to done so stateless clients can continue it.
func toWire(ctx context.Context, ev agent.Event, withConversation bool) []wireEvent {
	switch ev.Kind {
	case agent.EventText:
		return []wireEvent{{Type: evText, Content: ev.Text}}
	case agent.EventState:
		return []wireEvent{{Type: evState, State: string(ev.State)}}
	case agent.EventWorking:
		return []wireEvent{{Type: evWorking, Tools: ev.Tools}}
	case agent.EventDone:
		if ev.Result == nil {
			return []wireEvent{{Type: evDone, State: string(ev.State)}}
		}
		res := ev.Result
		var out []wireEvent
		switch {
		case errors.Is(res.Err, agent.ErrModelUnavailable):
			out = append(out, wireEvent{Type: evError, Content: "The assistant is temporarily unavailable. Please try again.", Retryable: true})
		case res.StopReason == agent.StopCancelled && errors.Is(ctx.Err(), context.DeadlineExceeded):
			out = append(out, wireEvent{Type: evError, Content: "The request took too long and was stopped.", Retryable: true})
		}
		done := wireEvent{
			Type:       evDone,
			State:      string(ev.State),
			StopReason: string(res.StopReason),
			Steps:      res.Steps,
		}
		if withConversation {
			done.Messages = res.Conversation
		}
		return append(out, done)
	}
	return nil
}
