package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"inventrack/internal/auth"
	"inventrack/internal/domain"
	"inventrack/internal/inventory"
	"inventrack/internal/policy"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// statusFor maps inventory errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, inventory.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, inventory.ErrSelfRoleChange),
		errors.Is(err, inventory.ErrInvalidRole),
		errors.Is(err, inventory.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log().Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	if !policy.CanManageUsers(caller.Role) {
		s.writeStoreError(w, r, inventory.ErrForbidden)
		return
	}
	users, err := s.deps.Users.ListProfiles(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if users == nil {
		users = []inventory.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// handleSetRole leaves every authorization decision to the store, which
// refuses non-admins and self changes.
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req setRoleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role := domain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	profile, err := s.deps.Users.SetUserRole(r.Context(), caller, r.PathValue("id"), role)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log().Info("user role changed", "by", caller.UserID, "target", profile.ID, "role", profile.Role)
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxNotificationLimit)
	}
	items, err := s.deps.Notifications.Notifications(r.Context(), caller, limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []inventory.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	if err := s.deps.Notifications.MarkRead(r.Context(), caller, r.PathValue("id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
