package handlers

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/lanscan/internal/api/middleware"
	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/session"
)

// ScanRequest starts a session. Empty networks scan the stored list.
type ScanRequest struct {
	Networks []string `json:"networks" validate:"omitempty,max=256,dive,max=64"`
}

// ScanStartedResponse is returned when a session starts.
type ScanStartedResponse struct {
	Status    string   `json:"status"`
	SessionID string   `json:"session_id"`
	Networks  []string `json:"networks"`
}

// ScanStopResponse is returned by the stop endpoint.
type ScanStopResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// InventoryResponse lists the hosts of the current or last session.
type InventoryResponse struct {
	SessionID string                 `json:"session_id"`
	State     session.State          `json:"state"`
	Total     int                    `json:"total"`
	Hosts     []discovery.HostRecord `json:"hosts"`
}

// LogsResponse lists session events.
type LogsResponse struct {
	SessionID string          `json:"session_id"`
	Logs      []session.Event `json:"logs"`
}

// ScanHandler handles scan session endpoints.
type ScanHandler struct {
	controller     SessionController
	networks       NetworkStore
	validator      *validator.Validate
	logger         *slog.Logger
	maxRequestSize int64
}

// NewScanHandler creates a new scan handler. networks may be nil, in which
// case start requests must name their networks.
func NewScanHandler(
	controller SessionController,
	networks NetworkStore,
	logger *slog.Logger,
	maxRequestSize int64,
) *ScanHandler {
	return &ScanHandler{
		controller:     controller,
		networks:       networks,
		validator:      newValidator(),
		logger:         logger.With("handler", "scan"),
		maxRequestSize: maxRequestSize,
	}
}

// StartScan handles POST /api/v1/scan/start.
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := parseJSON(w, r, &req, h.maxRequestSize, true); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("validation failed: %w", err))
		return
	}

	networks := req.Networks
	if len(networks) == 0 {
		if h.networks == nil {
			writeServiceError(w, r, session.ErrEmptyInput)
			return
		}
		stored, err := h.networks.List()
		if err != nil {
			h.logger.Error("Failed to load stored networks",
				"request_id", middleware.GetRequestID(r), "error", err)
			writeServiceError(w, r, err)
			return
		}
		networks = stored
	}

	sessionID, err := h.controller.Start(networks)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Scan session started via API",
		"request_id", middleware.GetRequestID(r),
		"session_id", sessionID,
		"networks", len(networks))

	writeJSON(w, r, http.StatusAccepted, ScanStartedResponse{
		Status:    "started",
		SessionID: sessionID,
		Networks:  networks,
	})
}

// StopScan handles POST /api/v1/scan/stop. Stopping is cooperative and
// takes effect at the next range boundary.
func (h *ScanHandler) StopScan(w http.ResponseWriter, r *http.Request) {
	if !h.controller.Cancel() {
		writeJSON(w, r, http.StatusOK, ScanStopResponse{
			Status:  "idle",
			Message: "no scan session is running",
		})
		return
	}

	h.logger.Info("Scan cancellation requested via API", "request_id", middleware.GetRequestID(r))
	writeJSON(w, r, http.StatusAccepted, ScanStopResponse{
		Status:  "stopping",
		Message: "scan will stop after the current range",
	})
}

// GetStatus handles GET /api/v1/scan/status.
func (h *ScanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.controller.Status())
}

// GetInventory handles GET /api/v1/scan/inventory.
func (h *ScanHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	status := h.controller.Status()
	writeJSON(w, r, http.StatusOK, InventoryResponse{
		SessionID: status.SessionID,
		State:     status.State,
		Total:     len(status.Inventory),
		Hosts:     status.Inventory,
	})
}

// GetLogs handles GET /api/v1/scan/logs. The optional limit parameter
// returns only the most recent events.
func (h *ScanHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := getQueryParamInt(r, "limit", 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := h.controller.Status()
	events := status.Events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	writeJSON(w, r, http.StatusOK, LogsResponse{SessionID: status.SessionID, Logs: events})
}

// GetStats handles GET /api/v1/stats.
func (h *ScanHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.controller.Stats())
}

// csvHeader names the columns of the inventory export.
var csvHeader = []string{
	"address", "reverse_name", "hardware_address", "vendor", "os_guess", "open_ports", "status", "observed_at",
}

// ExportCSV handles GET /api/v1/scan/export.csv.
func (h *ScanHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	hosts := h.controller.Inventory()
	if len(hosts) == 0 {
		writeError(w, r, http.StatusBadRequest,
			errors.NewSessionError(errors.CodeEmptyInput, "no scan results to export"))
		return
	}

	filename := fmt.Sprintf("scan_results_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for i := range hosts {
		_ = cw.Write(csvRow(&hosts[i]))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("Failed to write CSV export",
			"request_id", middleware.GetRequestID(r), "error", err)
	}
}

func csvRow(h *discovery.HostRecord) []string {
	ports := make([]string, 0, len(h.OpenPorts))
	for _, p := range h.OpenPorts {
		ports = append(ports, strconv.Itoa(p.Port)+"/"+p.Protocol)
	}
	observed := ""
	if !h.ObservedAt.IsZero() {
		observed = h.ObservedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		h.Address,
		h.ReverseName,
		h.HardwareAddress,
		h.Vendor,
		h.OSGuess,
		strings.Join(ports, " "),
		h.Status,
		observed,
	}
}
