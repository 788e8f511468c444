package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anstrom/lanscan/internal/api/middleware"
	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/store"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 500
)

// SessionsResponse lists persisted sessions, newest first.
type SessionsResponse struct {
	Sessions []store.SessionSummary `json:"sessions"`
	Total    int                    `json:"total"`
}

// SessionHostsResponse lists the hosts of one persisted session.
type SessionHostsResponse struct {
	SessionID string                 `json:"session_id"`
	Total     int                    `json:"total"`
	Hosts     []discovery.HostRecord `json:"hosts"`
}

// SessionHandler serves session history from the database sink.
type SessionHandler struct {
	history SessionHistory
	logger  *slog.Logger
}

// NewSessionHandler creates a new session history handler. history may be
// nil when no database is configured; every request then answers 503.
func NewSessionHandler(history SessionHistory, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		history: history,
		logger:  logger.With("handler", "sessions"),
	}
}

// ListSessions handles GET /api/v1/sessions.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	limit, err := getQueryParamInt(r, "limit", defaultSessionLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if limit < 1 || limit > maxSessionLimit {
		writeError(w, r, http.StatusBadRequest,
			errors.NewSessionError(errors.CodeValidation, "limit must be between 1 and 500"))
		return
	}

	sessions, err := h.history.RecentSessions(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", "request_id", middleware.GetRequestID(r), "error", err)
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SessionsResponse{Sessions: sessions, Total: len(sessions)})
}

// GetSessionHosts handles GET /api/v1/sessions/{id}/hosts.
func (h *SessionHandler) GetSessionHosts(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	id, err := extractStringFromPath(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	hosts, err := h.history.SessionHosts(r.Context(), id)
	if err != nil {
		if !errors.IsCode(err, errors.CodeNotFound) {
			h.logger.Error("Failed to load session hosts",
				"request_id", middleware.GetRequestID(r), "session_id", id, "error", err)
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SessionHostsResponse{SessionID: id, Total: len(hosts), Hosts: hosts})
}

func (h *SessionHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.history != nil {
		return true
	}
	writeError(w, r, http.StatusServiceUnavailable,
		errors.NewSessionError(errors.CodeConfiguration, "session history requires a database"))
	return false
}
