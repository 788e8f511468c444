// Package api provides the HTTP control surface for lanscan: starting and
// stopping scan sessions, reading their progress and inventory, managing
// the stored network list and streaming session events over websockets.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihandlers "github.com/anstrom/lanscan/internal/api/handlers"
	"github.com/anstrom/lanscan/internal/api/middleware"
	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/metrics"
)

// ServiceName identifies the service in health responses.
const ServiceName = "lanscan"

const serverShutdownTimeout = 30 * time.Second

// Dependencies are the collaborators served by the API. Networks, History
// and Database are optional.
type Dependencies struct {
	Controller apihandlers.SessionController
	Networks   apihandlers.NetworkStore
	History    apihandlers.SessionHistory
	Database   apihandlers.DatabasePinger
	Metrics    *metrics.PrometheusMetrics
	Version    string
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     config.APIConfig
	deps       Dependencies
	logger     *slog.Logger
	websocket  *apihandlers.WebSocketHandler

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new API server instance.
func New(cfg config.APIConfig, deps Dependencies) (*Server, error) {
	if deps.Controller == nil {
		return nil, fmt.Errorf("API server requires a session controller")
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logging.Default().With("component", "api"),
	}

	s.setupRoutes()
	s.handler = s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s, nil
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server and disconnects websocket clients.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	_ = s.websocket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Address returns the bound address once started, otherwise the
// configured one.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	maxSize := s.config.MaxRequestSize
	logger := s.logger

	health := apihandlers.NewHealthHandler(s.deps.Controller, s.deps.Database, ServiceName, s.deps.Version, logger)
	scans := apihandlers.NewScanHandler(s.deps.Controller, s.deps.Networks, logger, maxSize)
	sessions := apihandlers.NewSessionHandler(s.deps.History, logger)
	s.websocket = apihandlers.NewWebSocketHandler(s.deps.Controller, logger, s.config.AllowedOrigins)

	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	api.HandleFunc("/liveness", health.Liveness).Methods(http.MethodGet)
	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	api.HandleFunc("/scan/start", scans.StartScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/stop", scans.StopScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/status", scans.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan/inventory", scans.GetInventory).Methods(http.MethodGet)
	api.HandleFunc("/scan/logs", scans.GetLogs).Methods(http.MethodGet)
	api.HandleFunc("/scan/export.csv", scans.ExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/stats", scans.GetStats).Methods(http.MethodGet)

	if s.deps.Networks != nil {
		networks := apihandlers.NewNetworkHandler(s.deps.Networks, logger, maxSize)
		api.HandleFunc("/networks", networks.ListNetworks).Methods(http.MethodGet)
		api.HandleFunc("/networks", networks.ReplaceNetworks).Methods(http.MethodPut)
		api.HandleFunc("/networks", networks.AddNetwork).Methods(http.MethodPost)
		api.HandleFunc("/networks", networks.RemoveNetwork).Methods(http.MethodDelete)
		api.HandleFunc("/networks/validate", networks.ValidateNetwork).Methods(http.MethodPost)
	}

	api.HandleFunc("/sessions", sessions.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/hosts", sessions.GetSessionHosts).Methods(http.MethodGet)

	api.HandleFunc("/ws", s.websocket.ServeWS).Methods(http.MethodGet)

	if s.config.EnableMetrics && s.deps.Metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.GetRegistry(), promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		})).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
}

// setupMiddleware wraps the router. Request IDs, recovery, logging and
// CORS wrap the whole router so unmatched routes are covered too; metrics
// run inside it to label requests by route template.
func (s *Server) setupMiddleware() http.Handler {
	if s.deps.Metrics != nil {
		s.router.Use(middleware.Metrics(s.deps.Metrics))
	}
	s.router.Use(middleware.ContentType())
	s.router.Use(middleware.SecurityHeaders())

	var h http.Handler = s.router
	if len(s.config.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.config.AllowedOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", middleware.RequestIDHeader}),
			handlers.AllowedMethods([]string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
			}),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		)(h)
	}
	h = middleware.Logging(s.logger)(h)
	h = middleware.Recovery(s.logger)(h)
	h = middleware.RequestID()(h)
	return h
}

// methodNotAllowed answers requests whose path matched a route registered
// for other methods.
func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	response := apihandlers.ErrorResponse{
		Error:     http.StatusText(http.StatusMethodNotAllowed),
		Message:   fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode method not allowed response", "error", err)
	}
}

// index describes the API for root requests.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service": ServiceName,
		"version": s.deps.Version,
		"endpoints": map[string]string{
			"liveness":  "/api/v1/liveness",
			"health":    "/api/v1/health",
			"status":    "/api/v1/scan/status",
			"inventory": "/api/v1/scan/inventory",
			"events":    "/api/v1/ws",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode API index response", "error", err)
	}
}
