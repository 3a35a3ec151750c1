package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-contrib/sse"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
)

const (
	maxChatBody     = 1 << 20
	maxChatMessages = 200
)

// chatRequest is the POST /api/chat body: the whole conversation so far,
// ending with the user's new message.
type chatRequest struct {
	Messages []domain.Message `json:"messages"`
}

func (req chatRequest) validate() error {
	n := len(req.Messages)
	if n == 0 {
		return errors.New("messages must not be empty")
	}
	if n > maxChatMessages {
		return errors.New("too many messages")
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant, domain.RoleTool:
		default:
			return errors.New("unknown message role: " + string(m.Role))
		}
	}
	if last := req.Messages[n-1]; last.Role != domain.RoleUser || last.Text() == "" {
		return errors.New("last message must be a non-empty user message")
	}
	return nil
}

// handleChat streams one exchange as Server-Sent Events. Event names are
// text, state, working, error and done; data is a JSON wireEvent. The done
// event carries the updated conversation.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeFailed := false
	// The event channel is drained to the end even after a write failure so
	// the exchange goroutine can finish.
	for ev := range s.deps.Assistant.Stream(ctx, caller, req.Messages) {
		if writeFailed {
			continue
		}
		for _, we := range toWire(ctx, ev, true) {
			if err := sse.Encode(w, sse.Event{Event: we.Type, Data: we}); err != nil {
				s.log().Debug("sse write failed", "user_id", caller.UserID, "error", err)
				writeFailed = true
				cancel()
				break
			}
		}
		flusher.Flush()
	}
}
