package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/lanscan/internal/api/mocks"
	"github.com/anstrom/lanscan/internal/session"
)

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(mocks.NewMockSessionController(gomock.NewController(t)), nil, "lanscan", "1.2.3", createTestLogger())

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/api/v1/liveness", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusAlive, resp.Status)
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		withDB     bool
		wantStatus string
		wantCheck  string
	}{
		{name: "no database", wantStatus: StatusHealthy},
		{name: "database up", withDB: true, wantStatus: StatusHealthy, wantCheck: StatusHealthy},
		{name: "database down", withDB: true, pingErr: stderrors.New("refused"), wantStatus: StatusDegraded, wantCheck: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			controller := mocks.NewMockSessionController(ctrl)
			controller.EXPECT().Status().Return(session.Snapshot{
				State:     session.StateRunning,
				Active:    true,
				Inventory: sampleHosts(),
			})

			var pinger DatabasePinger
			if tt.withDB {
				db := mocks.NewMockDatabasePinger(ctrl)
				db.EXPECT().PingContext(gomock.Any()).Return(tt.pingErr)
				pinger = db
			}

			h := NewHealthHandler(controller, pinger, "lanscan", "1.2.3", createTestLogger())
			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))

			require.Equal(t, http.StatusOK, w.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "lanscan", resp.Service)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.True(t, resp.Scanning)
			assert.Equal(t, 2, resp.HostsInMemory)
			assert.Equal(t, tt.wantCheck, resp.Checks["database"])
		})
	}
}
