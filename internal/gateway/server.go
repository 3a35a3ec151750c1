// Package gateway exposes the assistant and the admin endpoints over HTTP,
// Server-Sent Events and WebSocket.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"inventrack/internal/agent"
	"inventrack/internal/auth"
	"inventrack/internal/domain"
	"inventrack/internal/inventory"
)

var (
	// ErrInvalidPort is returned when gateway port is not in 0..65535.
	ErrInvalidPort = errors.New("gateway: port must be 0-65535")
	// ErrMissingDependency is returned when a required dependency is nil.
	ErrMissingDependency = errors.New("gateway: missing dependency")
)

// defaultExchangeTimeout applies when the config leaves it unset.
const defaultExchangeTimeout = 60 * time.Second

// Exchanger runs one assistant exchange. *agent.Agent implements it.
type Exchanger interface {
	Stream(ctx context.Context, caller auth.Identity, history []domain.Message) <-chan agent.Event
}

// IdentityResolver maps a bearer token to the caller. *auth.Resolver implements it.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (auth.Identity, error)
}

// UserAdmin lists profiles and changes roles.
type UserAdmin interface {
	ListProfiles(ctx context.Context) ([]inventory.Profile, error)
	SetUserRole(ctx context.Context, caller auth.Identity, targetID string, role domain.Role) (inventory.Profile, error)
}

// Notifier reads and acknowledges the caller's notifications.
type Notifier interface {
	Notifications(ctx context.Context, caller auth.Identity, limit int) ([]inventory.Notification, error)
	MarkRead(ctx context.Context, caller auth.Identity, id string) error
}

// Deps are the collaborators the gateway routes to. Assistant and
// Identities are required; without Users or Notifications the matching
// routes are not mounted.
type Deps struct {
	Assistant     Exchanger
	Identities    IdentityResolver
	Users         UserAdmin
	Notifications Notifier
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server serves the gateway routes until its context is cancelled.
type Server struct {
	cfg     domain.GatewayConfig
	deps    Deps
	logger  *slog.Logger
	timeout time.Duration
	server  *http.Server

	addrMu sync.RWMutex
	addr   string
}

// NewServer builds the gateway. Port 0 picks a random port.
func NewServer(cfg domain.GatewayConfig, deps Deps, opts ...Option) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, ErrInvalidPort
	}
	if deps.Assistant == nil || deps.Identities == nil {
		return nil, ErrMissingDependency
	}
	s := &Server{cfg: cfg, deps: deps, timeout: defaultExchangeTimeout}
	if cfg.ExchangeTimeoutSeconds > 0 {
		s.timeout = time.Duration(cfg.ExchangeTimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := s.requireIdentity
	mux.Handle("POST /api/chat", authed(http.HandlerFunc(s.handleChat)))
	mux.Handle("GET /ws", authed(http.HandlerFunc(s.handleWS)))
	if s.deps.Users != nil {
		mux.Handle("GET /api/admin/users", authed(http.HandlerFunc(s.handleListUsers)))
		mux.Handle("PATCH /api/admin/users/{id}", authed(http.HandlerFunc(s.handleSetRole)))
	}
	if s.deps.Notifications != nil {
		mux.Handle("GET /api/notifications", authed(http.HandlerFunc(s.handleNotifications)))
		mux.Handle("POST /api/notifications/{id}/read", authed(http.HandlerFunc(s.handleMarkRead)))
	}
	return s.logRequests(s.cors(mux))
}

// Addr returns the bound address after Run has started listening.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// netListen is the function used to listen; tests may replace it to force Listen errors.
var netListen = func(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}

// Run listens on the configured port and serves until ctx is done, then
// shuts down gracefully. Returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := netListen("tcp", ":"+strconv.Itoa(s.cfg.Port))
	if err != nil {
		return err
	}
	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()
	s.log().Info("gateway listening", "addr", s.Addr())

	done := make(chan error, 1)
	go func() {
		done <- s.server.Serve(ln)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := serverShutdown(s.server, shutdownCtx); err != nil {
		return err
	}
	<-done
	return nil
}

// serverShutdown is the function used to shut down the server; tests may replace it.
var serverShutdown = func(srv *http.Server, ctx context.Context) error {
	return srv.Shutdown(ctx)
}
