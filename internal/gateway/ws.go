package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"inventrack/internal/agent"
	"inventrack/internal/auth"
	"inventrack/internal/domain"
)

// Client message types on /ws.
const (
	wsChat   = "chat"
	wsRetry  = "retry"
	wsCancel = "cancel"
	wsReset  = "reset"
)

// wsClientMessage is what clients send on /ws.
// Example: {"type": "chat", "content": "Which items are low on stock?"}
type wsClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// jsonMarshal is used when encoding outgoing messages; tests may replace it.
var (
	jsonMarshalMu sync.RWMutex
	jsonMarshal   = json.Marshal
)

// checkWSOrigin accepts same-host origins, configured origins and clients
// that send no Origin header.
func (s *Server) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return s.originAllowed(origin)
}

// handleWS keeps a conversation per connection. At most one exchange runs
// at a time; "retry" reruns an unanswered question, "cancel" stops the
// running exchange and "reset" clears the conversation.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWSOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	base, stop := context.WithCancel(context.WithoutCancel(r.Context()))
	sess := &wsSession{srv: s, conn: conn, caller: caller}
	defer func() {
		stop()
		sess.wait()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in wsClientMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			sess.write(wireEvent{Type: evError, Content: "invalid JSON"})
			continue
		}
		switch in.Type {
		case wsChat:
			sess.start(base, in.Content)
		case wsRetry:
			sess.retry(base)
		case wsCancel:
			sess.cancelExchange()
		case wsReset:
			sess.reset()
		default:
			sess.write(wireEvent{Type: evError, Content: "unknown message type: " + in.Type})
		}
	}
}

// wsWriter is the write half of a websocket connection.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

type wsSession struct {
	srv    *Server
	conn   wsWriter
	caller auth.Identity

	writeMu sync.Mutex

	mu      sync.Mutex
	history []domain.Message
	cancel  context.CancelFunc // set while an exchange runs
	wg      sync.WaitGroup
}

// unanswered reports whether history ends with a user message that never
// got a reply, as left behind by a failed or cancelled exchange.
func unanswered(history []domain.Message) bool {
	n := len(history)
	return n > 0 && history[n-1].Role == domain.RoleUser
}

// start runs an exchange for a new question. An unanswered question left by
// the previous exchange is replaced so the history never holds two user
// turns in a row.
func (ss *wsSession) start(base context.Context, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		ss.write(wireEvent{Type: evError, Content: "message must not be empty"})
		return
	}
	ss.launch(base, func(history []domain.Message) ([]domain.Message, string) {
		if unanswered(history) {
			history = history[:len(history)-1]
		}
		msg := domain.NewMessage(uuid.NewString(), domain.RoleUser, time.Now(), domain.TextBlock{Text: content})
		return append(history, msg), ""
	})
}

// retry reruns the exchange on the current history when its last question
// went unanswered.
func (ss *wsSession) retry(base context.Context) {
	ss.launch(base, func(history []domain.Message) ([]domain.Message, string) {
		if !unanswered(history) {
			return nil, "nothing to retry"
		}
		return history, ""
	})
}

// launch starts an exchange on the history returned by prepare, unless one
// is already running or prepare refuses with a message.
func (ss *wsSession) launch(base context.Context, prepare func([]domain.Message) ([]domain.Message, string)) {
	ss.mu.Lock()
	if ss.cancel != nil {
		ss.mu.Unlock()
		ss.write(wireEvent{Type: evError, Content: "an exchange is already running"})
		return
	}
	history, refusal := prepare(slices.Clone(ss.history))
	if refusal != "" {
		ss.mu.Unlock()
		ss.write(wireEvent{Type: evError, Content: refusal})
		return
	}
	ctx, cancel := context.WithTimeout(base, ss.srv.timeout)
	ss.cancel = cancel
	ss.mu.Unlock()

	ss.wg.Add(1)
	go func() {
		defer ss.wg.Done()
		defer cancel()
		for ev := range ss.srv.deps.Assistant.Stream(ctx, ss.caller, history) {
			if ev.Kind == agent.EventDone && ev.Result != nil {
				ss.mu.Lock()
				ss.history = ev.Result.Conversation
				ss.cancel = nil
				ss.mu.Unlock()
			}
			for _, we := range toWire(ctx, ev, false) {
				ss.write(we)
			}
		}
		ss.mu.Lock()
		ss.cancel = nil
		ss.mu.Unlock()
	}()
}

func (ss *wsSession) cancelExchange() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.cancel != nil {
		ss.cancel()
	}
}

func (ss *wsSession) reset() {
	ss.mu.Lock()
	busy := ss.cancel != nil
	if !busy {
		ss.history = nil
	}
	ss.mu.Unlock()
	if busy {
		ss.write(wireEvent{Type: evError, Content: "cannot reset while an exchange is running"})
		return
	}
	ss.write(wireEvent{Type: evState, State: "reset"})
}

func (ss *wsSession) wait() {
	ss.wg.Wait()
}

func (ss *wsSession) write(msg wireEvent) {
	jsonMarshalMu.RLock()
	marshal := jsonMarshal
	jsonMarshalMu.RUnlock()
	data, err := marshal(msg)
	if err != nil {
		ss.srv.log().Warn("ws encode failed", "error", err)
		return
	}
	ss.writeMu.Lock()
	err = ss.conn.WriteMessage(websocket.TextMessage, data)
	ss.writeMu.Unlock()
	if err != nil {
		// Peer is gone.
		ss.srv.log().Debug("ws write failed", "user_id", ss.caller.UserID, "error", err)
		ss.cancelExchange()
	}
}
