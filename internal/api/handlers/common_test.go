package handlers

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/session"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestStatusForError(t *testing.T) {
	validationErr := newValidator().Struct(NetworkRequest{})
	require.Error(t, validationErr)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"already running", session.ErrAlreadyRunning, http.StatusConflict},
		{"empty input", session.ErrEmptyInput, http.StatusBadRequest},
		{"invalid target", errors.ErrInvalidTarget("bogus"), http.StatusBadRequest},
		{"validation", errors.ErrConfigInvalid("networks_file", "x"), http.StatusBadRequest},
		{"validator errors", validationErr, http.StatusBadRequest},
		{"not found", errors.NewDatabaseError(errors.CodeNotFound, "missing"), http.StatusNotFound},
		{"conflict", errors.NewDatabaseError(errors.CodeConflict, "dup"), http.StatusConflict},
		{"wrapped not found", fmt.Errorf("lookup: %w", errors.NewDatabaseError(errors.CodeNotFound, "x")), http.StatusNotFound},
		{"database down", errors.NewDatabaseError(errors.CodeDatabaseConnection, "down"), http.StatusServiceUnavailable},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()

	writeServiceError(w, req, session.ErrAlreadyRunning)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeError(t, w)
	assert.Equal(t, "Conflict", resp.Error)
	assert.Equal(t, string(errors.CodeAlreadyRunning), resp.Code)
	assert.Contains(t, resp.Message, "already running")
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteErrorWithoutCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()

	writeError(w, req, http.StatusInternalServerError, stderrors.New("boom"))

	resp := decodeError(t, w)
	assert.Empty(t, resp.Code)
	assert.Equal(t, "boom", resp.Message)
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		allowEmpty bool
		maxSize    int64
		wantErr    string
	}{
		{name: "valid", body: `{"networks":["10.0.0.0/24"]}`},
		{name: "empty allowed", body: "", allowEmpty: true},
		{name: "empty rejected", body: "", wantErr: "request body is required"},
		{name: "unknown field", body: `{"targets":["10.0.0.0/24"]}`, wantErr: "invalid JSON"},
		{name: "malformed", body: `{"networks":`, wantErr: "invalid JSON"},
		{name: "too large", body: `{"networks":["10.0.0.0/24"]}`, maxSize: 8, wantErr: "exceeds 8 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var dst ScanRequest
			err := parseJSON(w, req, &dst, tt.maxSize, tt.allowEmpty)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCode(err, errors.CodeValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGetQueryParamInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x", http.NoBody)

	v, err := getQueryParamInt(req, "limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = getQueryParamInt(req, "missing", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = getQueryParamInt(req, "bad", 20)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestExtractStringFromPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sessions/abc/hosts", http.NoBody)

	req = mux.SetURLVars(req, map[string]string{"id": "abc"})
	id, err := extractStringFromPath(req, "id")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	req = mux.SetURLVars(req, map[string]string{"id": "  "})
	_, err = extractStringFromPath(req, "id")
	assert.Error(t, err)
}

func TestValidatorUsesJSONNames(t *testing.T) {
	err := newValidator().Struct(NetworkRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'cidr'")
}
