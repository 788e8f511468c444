package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/lanscan/internal/api/middleware"
	"github.com/anstrom/lanscan/internal/errors"
)

// NetworksRequest replaces the stored list.
type NetworksRequest struct {
	Networks []string `json:"networks" validate:"max=1024,dive,max=64"`
}

// NetworkRequest names a single network.
type NetworkRequest struct {
	CIDR string `json:"cidr" validate:"required,max=64"`
}

// NetworksResponse lists the stored networks.
type NetworksResponse struct {
	Networks []string `json:"networks"`
	Total    int      `json:"total"`
}

// ReplaceNetworksResponse reports a replace request.
type ReplaceNetworksResponse struct {
	Status          string   `json:"status"`
	SavedCount      int      `json:"saved_count"`
	Networks        []string `json:"networks"`
	InvalidNetworks []string `json:"invalid_networks"`
}

// NetworkChangeResponse reports a single add or remove.
type NetworkChangeResponse struct {
	CIDR    string `json:"cidr"`
	Changed bool   `json:"changed"`
}

// ValidateNetworkResponse reports whether a CIDR is acceptable.
type ValidateNetworkResponse struct {
	Input     string `json:"input"`
	Valid     bool   `json:"valid"`
	Canonical string `json:"canonical,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NetworkHandler manages the stored network list.
type NetworkHandler struct {
	networks       NetworkStore
	validator      *validator.Validate
	logger         *slog.Logger
	maxRequestSize int64
}

// NewNetworkHandler creates a new network handler.
func NewNetworkHandler(networks NetworkStore, logger *slog.Logger, maxRequestSize int64) *NetworkHandler {
	return &NetworkHandler{
		networks:       networks,
		validator:      newValidator(),
		logger:         logger.With("handler", "networks"),
		maxRequestSize: maxRequestSize,
	}
}

// ListNetworks handles GET /api/v1/networks.
func (h *NetworkHandler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.networks.List()
	if err != nil {
		h.logger.Error("Failed to list networks", "request_id", middleware.GetRequestID(r), "error", err)
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, NetworksResponse{Networks: networks, Total: len(networks)})
}

// ReplaceNetworks handles PUT /api/v1/networks. Invalid entries are
// reported and dropped; the valid ones replace the stored list.
func (h *NetworkHandler) ReplaceNetworks(w http.ResponseWriter, r *http.Request) {
	var req NetworksRequest
	if err := parseJSON(w, r, &req, h.maxRequestSize, false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.networks.Replace(req.Networks)
	if err != nil {
		h.logger.Error("Failed to save networks", "request_id", middleware.GetRequestID(r), "error", err)
		writeServiceError(w, r, err)
		return
	}

	if len(result.Invalid) > 0 {
		h.logger.Warn("Dropped invalid networks",
			"request_id", middleware.GetRequestID(r),
			"invalid", result.Invalid)
	}

	writeJSON(w, r, http.StatusOK, ReplaceNetworksResponse{
		Status:          "success",
		SavedCount:      len(result.Saved),
		Networks:        result.Saved,
		InvalidNetworks: result.Invalid,
	})
}

// AddNetwork handles POST /api/v1/networks.
func (h *NetworkHandler) AddNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if err := h.decodeNetwork(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	canonical, added, err := h.networks.Add(req.CIDR)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, NetworkChangeResponse{CIDR: canonical, Changed: added})
}

// RemoveNetwork handles DELETE /api/v1/networks. The network is taken from
// the cidr query parameter or a JSON body.
func (h *NetworkHandler) RemoveNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if cidr := strings.TrimSpace(r.URL.Query().Get("cidr")); cidr != "" {
		req.CIDR = cidr
	} else if err := h.decodeNetwork(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	removed, err := h.networks.Remove(req.CIDR)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !removed {
		writeError(w, r, http.StatusNotFound,
			errors.NewSessionError(errors.CodeNotFound, "network "+req.CIDR+" is not stored"))
		return
	}
	writeJSON(w, r, http.StatusOK, NetworkChangeResponse{CIDR: req.CIDR, Changed: true})
}

// ValidateNetwork handles POST /api/v1/networks/validate. It always
// answers 200 with the verdict in the body.
func (h *NetworkHandler) ValidateNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if err := h.decodeNetwork(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := ValidateNetworkResponse{Input: req.CIDR}
	canonical, err := h.networks.Validate(req.CIDR)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Valid = true
		resp.Canonical = canonical
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *NetworkHandler) decodeNetwork(w http.ResponseWriter, r *http.Request, req *NetworkRequest) error {
	if err := parseJSON(w, r, req, h.maxRequestSize, false); err != nil {
		return err
	}
	req.CIDR = strings.TrimSpace(req.CIDR)
	return h.validator.Struct(req)
}
