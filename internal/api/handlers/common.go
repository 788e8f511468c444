// Package handlers provides HTTP request handlers for the lanscan API.
// This file holds the collaborator interfaces and the response helpers
// shared by every handler.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/anstrom/lanscan/internal/api/middleware"
	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/services"
	"github.com/anstrom/lanscan/internal/session"
	"github.com/anstrom/lanscan/internal/store"
)

// DefaultMaxRequestSize bounds request bodies when no limit is configured.
const DefaultMaxRequestSize int64 = 1024 * 1024

// SessionController drives scan sessions. It is satisfied by
// *session.Orchestrator.
type SessionController interface {
	Start(ranges []string) (string, error)
	Cancel() bool
	Status() session.Snapshot
	Inventory() []discovery.HostRecord
	Events() []session.Event
	Stats() session.Stats
	Subscribe(fn func(session.Event)) func()
}

// NetworkStore manages the stored network list. It is satisfied by
// *services.NetworkService.
type NetworkStore interface {
	List() ([]string, error)
	Add(cidr string) (string, bool, error)
	Remove(cidr string) (bool, error)
	Replace(networks []string) (services.ReplaceResult, error)
	Validate(cidr string) (string, error)
}

// SessionHistory reads persisted sessions. It is satisfied by
// *store.SQLSink.
type SessionHistory interface {
	RecentSessions(ctx context.Context, limit int) ([]store.SessionSummary, error)
	SessionHosts(ctx context.Context, sessionID string) ([]discovery.HostRecord, error)
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = string(code)
	}
	writeJSON(w, r, statusCode, response)
}

// writeServiceError writes err with the status its error code maps to.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusForError(err), err)
}

// statusForError maps error codes onto HTTP status codes.
func statusForError(err error) int {
	var validationErrs validator.ValidationErrors
	if stderrors.As(err, &validationErrs) {
		return http.StatusBadRequest
	}

	switch errors.GetCode(err) {
	case errors.CodeAlreadyRunning, errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeEmptyInput, errors.CodeTargetInvalid, errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeDatabaseConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes a size limited JSON body into dst. An empty body
// leaves dst untouched when allowEmpty is set.
func parseJSON(w http.ResponseWriter, r *http.Request, dst interface{}, maxSize int64, allowEmpty bool) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return errors.NewSessionError(errors.CodeValidation, "request body is required")
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return errors.NewSessionError(errors.CodeValidation, "request body is required")
		}
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewSessionError(errors.CodeValidation,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		return errors.NewSessionError(errors.CodeValidation, fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// getQueryParamInt extracts an integer query parameter with a default.
func getQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	if value := r.URL.Query().Get(key); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.NewSessionError(errors.CodeValidation,
				fmt.Sprintf("invalid %s parameter: %q", key, value))
		}
		return n, nil
	}
	return defaultValue, nil
}

// extractStringFromPath extracts a path variable.
func extractStringFromPath(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(mux.Vars(r)[name])
	if value == "" {
		return "", errors.NewSessionError(errors.CodeValidation, fmt.Sprintf("%s not provided", name))
	}
	return value, nil
}
