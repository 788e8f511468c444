package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Status constants.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusAlive     = "alive"
	healthCheckWait = 3 * time.Second
)

// DatabasePinger defines the interface for database health checking.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// LivenessResponse represents a simple liveness check response.
type LivenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// HealthResponse reports service health and scan activity.
type HealthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	Version       string            `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Uptime        string            `json:"uptime"`
	Scanning      bool              `json:"scanning"`
	HostsInMemory int               `json:"hosts_in_memory"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	controller SessionController
	database   DatabasePinger
	service    string
	version    string
	logger     *slog.Logger
	startTime  time.Time
}

// NewHealthHandler creates a new health handler. database may be nil.
func NewHealthHandler(
	controller SessionController,
	database DatabasePinger,
	service, version string,
	logger *slog.Logger,
) *HealthHandler {
	return &HealthHandler{
		controller: controller,
		database:   database,
		service:    service,
		version:    version,
		logger:     logger.With("handler", "health"),
		startTime:  time.Now(),
	}
}

// Liveness handles GET /api/v1/liveness.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, LivenessResponse{
		Status:    StatusAlive,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Health handles GET /api/v1/health. A failing database check degrades
// the status but the endpoint still answers 200 so scans stay visible.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.controller.Status()
	resp := HealthResponse{
		Status:        StatusHealthy,
		Service:       h.service,
		Version:       h.version,
		Timestamp:     time.Now().UTC(),
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Scanning:      status.Active,
		HostsInMemory: len(status.Inventory),
	}

	if h.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckWait)
		defer cancel()

		resp.Checks = map[string]string{"database": StatusHealthy}
		if err := h.database.PingContext(ctx); err != nil {
			h.logger.Warn("Database health check failed", "error", err)
			resp.Checks["database"] = "unreachable"
			resp.Status = StatusDegraded
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}
