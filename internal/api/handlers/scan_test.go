package handlers

import (
	"encoding/csv"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/lanscan/internal/api/mocks"
	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/session"
)

func sampleHosts() []discovery.HostRecord {
	observed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []discovery.HostRecord{
		{
			Address:         "192.168.1.10",
			ReverseName:     "printer.lan",
			HardwareAddress: "00:1A:2B:3C:4D:5E",
			Vendor:          "Acme",
			OSGuess:         "Linux 5.x",
			OpenPorts: []discovery.Port{
				{Port: 80, Protocol: "tcp", State: "open", Service: "http"},
				{Port: 631, Protocol: "tcp", State: "open", Service: "ipp"},
			},
			Status:     discovery.StatusOnline,
			ObservedAt: observed,
		},
		{
			Address:         "192.168.1.20",
			HardwareAddress: discovery.Unknown,
			Vendor:          discovery.Unknown,
			OSGuess:         discovery.Unknown,
			OpenPorts:       []discovery.Port{},
			Status:          discovery.StatusOnline,
			ObservedAt:      observed,
		},
	}
}

func newScanHandler(t *testing.T) (*ScanHandler, *mocks.MockSessionController, *mocks.MockNetworkStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	controller := mocks.NewMockSessionController(ctrl)
	networks := mocks.NewMockNetworkStore(ctrl)
	return NewScanHandler(controller, networks, createTestLogger(), 0), controller, networks
}

func TestStartScanWithExplicitNetworks(t *testing.T) {
	h, controller, _ := newScanHandler(t)
	controller.EXPECT().Start([]string{"10.0.0.0/28", "10.0.1.0/28"}).Return("sess-1", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/start",
		strings.NewReader(`{"networks":["10.0.0.0/28","10.0.1.0/28"]}`))
	w := httptest.NewRecorder()
	h.StartScan(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp ScanStartedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "started", resp.Status)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, []string{"10.0.0.0/28", "10.0.1.0/28"}, resp.Networks)
}

func TestStartScanUsesStoredNetworks(t *testing.T) {
	h, controller, networks := newScanHandler(t)
	gomock.InOrder(
		networks.EXPECT().List().Return([]string{"192.168.1.0/24"}, nil),
		controller.EXPECT().Start([]string{"192.168.1.0/24"}).Return("sess-2", nil),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", http.NoBody)
	w := httptest.NewRecorder()
	h.StartScan(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStartScanErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(c *mocks.MockSessionController, n *mocks.MockNetworkStore)
		status   int
		wantCode errors.ErrorCode
	}{
		{
			name: "already running",
			body: `{"networks":["10.0.0.0/24"]}`,
			setup: func(c *mocks.MockSessionController, _ *mocks.MockNetworkStore) {
				c.EXPECT().Start(gomock.Any()).Return("", session.ErrAlreadyRunning)
			},
			status:   http.StatusConflict,
			wantCode: errors.CodeAlreadyRunning,
		},
		{
			name: "no stored networks",
			body: `{}`,
			setup: func(c *mocks.MockSessionController, n *mocks.MockNetworkStore) {
				n.EXPECT().List().Return([]string{}, nil)
				c.EXPECT().Start([]string{}).Return("", session.ErrEmptyInput)
			},
			status:   http.StatusBadRequest,
			wantCode: errors.CodeEmptyInput,
		},
		{
			name: "invalid range",
			body: `{"networks":["10.0.0.0/99"]}`,
			setup: func(c *mocks.MockSessionController, _ *mocks.MockNetworkStore) {
				c.EXPECT().Start(gomock.Any()).Return("", errors.ErrInvalidTarget("10.0.0.0/99"))
			},
			status:   http.StatusBadRequest,
			wantCode: errors.CodeTargetInvalid,
		},
		{
			name: "corrupt network file",
			body: ``,
			setup: func(_ *mocks.MockSessionController, n *mocks.MockNetworkStore) {
				n.EXPECT().List().Return(nil, errors.ErrConfigInvalid("networks_file", "networks.json"))
			},
			status:   http.StatusBadRequest,
			wantCode: errors.CodeValidation,
		},
		{
			name:     "unknown field",
			body:     `{"targets":["10.0.0.0/24"]}`,
			setup:    func(*mocks.MockSessionController, *mocks.MockNetworkStore) {},
			status:   http.StatusBadRequest,
			wantCode: errors.CodeValidation,
		},
		{
			name:   "oversized entry",
			body:   `{"networks":["` + strings.Repeat("1", 80) + `"]}`,
			setup:  func(*mocks.MockSessionController, *mocks.MockNetworkStore) {},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, controller, networks := newScanHandler(t)
			tt.setup(controller, networks)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.StartScan(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, string(tt.wantCode), decodeError(t, w).Code)
			}
		})
	}
}

func TestStartScanWithoutNetworkStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	controller := mocks.NewMockSessionController(ctrl)
	h := NewScanHandler(controller, nil, createTestLogger(), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", http.NoBody)
	w := httptest.NewRecorder()
	h.StartScan(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStopScan(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		h, controller, _ := newScanHandler(t)
		controller.EXPECT().Cancel().Return(true)

		w := httptest.NewRecorder()
		h.StopScan(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan/stop", http.NoBody))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"stopping"`)
	})

	t.Run("idle", func(t *testing.T) {
		h, controller, _ := newScanHandler(t)
		controller.EXPECT().Cancel().Return(false)

		w := httptest.NewRecorder()
		h.StopScan(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan/stop", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"idle"`)
	})
}

func TestGetStatus(t *testing.T) {
	h, controller, _ := newScanHandler(t)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	controller.EXPECT().Status().Return(session.Snapshot{
		SessionID:       "sess-1",
		State:           session.StateRunning,
		Active:          true,
		Ranges:          []string{"10.0.0.0/24", "10.0.1.0/24"},
		CurrentIndex:    1,
		CurrentRange:    "10.0.1.0/24",
		ProgressPercent: 50,
		HostsFound:      2,
		Inventory:       sampleHosts(),
		StartedAt:       &started,
		Events:          []session.Event{},
	})

	w := httptest.NewRecorder()
	h.GetStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/scan/status", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, session.StateRunning, snap.State)
	assert.Equal(t, 50, snap.ProgressPercent)
	assert.Equal(t, "10.0.1.0/24", snap.CurrentRange)
	assert.Len(t, snap.Inventory, 2)
	assert.Nil(t, snap.EndedAt)
}

func TestGetInventory(t *testing.T) {
	h, controller, _ := newScanHandler(t)
	controller.EXPECT().Status().Return(session.Snapshot{
		SessionID: "sess-1",
		State:     session.StateCompleted,
		Inventory: sampleHosts(),
	})

	w := httptest.NewRecorder()
	h.GetInventory(w, httptest.NewRequest(http.MethodGet, "/api/v1/scan/inventory", http.NoBody))

	var resp InventoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, session.StateCompleted, resp.State)
	assert.Equal(t, "printer.lan", resp.Hosts[0].ReverseName)
}

func TestGetLogs(t *testing.T) {
	events := []session.Event{
		{Sequence: 1, Message: "Scan started for 1 network ranges", Severity: discovery.SeverityInfo},
		{Sequence: 2, Message: "Found 2 hosts", Severity: discovery.SeveritySuccess},
		{Sequence: 3, Message: "Scan completed", Severity: discovery.SeveritySuccess},
	}

	tests := []struct {
		name     string
		query    string
		status   int
		expected []uint64
	}{
		{name: "all", query: "", status: http.StatusOK, expected: []uint64{1, 2, 3}},
		{name: "limited", query: "?limit=2", status: http.StatusOK, expected: []uint64{2, 3}},
		{name: "limit above size", query: "?limit=10", status: http.StatusOK, expected: []uint64{1, 2, 3}},
		{name: "bad limit", query: "?limit=abc", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, controller, _ := newScanHandler(t)
			if tt.status == http.StatusOK {
				controller.EXPECT().Status().Return(session.Snapshot{SessionID: "sess-1", Events: events})
			}

			w := httptest.NewRecorder()
			h.GetLogs(w, httptest.NewRequest(http.MethodGet, "/api/v1/scan/logs"+tt.query, http.NoBody))

			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			var resp LogsResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			got := make([]uint64, 0, len(resp.Logs))
			for _, e := range resp.Logs {
				got = append(got, e.Sequence)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGetStats(t *testing.T) {
	h, controller, _ := newScanHandler(t)
	controller.EXPECT().Stats().Return(session.ComputeStats(sampleHosts()))

	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", http.NoBody))

	var stats session.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 2, stats.TotalHosts)
	assert.Equal(t, 2, stats.OpenPorts)
	assert.Equal(t, 1, stats.Vendors["Acme"])
	assert.Equal(t, 1, stats.Vendors[discovery.Unknown])
}

func TestExportCSV(t *testing.T) {
	h, controller, _ := newScanHandler(t)
	controller.EXPECT().Inventory().Return(sampleHosts())

	w := httptest.NewRecorder()
	h.ExportCSV(w, httptest.NewRequest(http.MethodGet, "/api/v1/scan/export.csv", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "scan_results_")

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "192.168.1.10", rows[1][0])
	assert.Equal(t, "80/tcp 631/tcp", rows[1][5])
	assert.Equal(t, "2024-05-01T12:00:00Z", rows[1][7])
	assert.Equal(t, "", rows[2][5])
}

func TestExportCSVEmpty(t *testing.T) {
	h, controller, _ := newScanHandler(t)
	controller.EXPECT().Inventory().Return([]discovery.HostRecord{})

	w := httptest.NewRecorder()
	h.ExportCSV(w, httptest.NewRequest(http.MethodGet, "/api/v1/scan/export.csv", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartScanListFailure(t *testing.T) {
	h, _, networks := newScanHandler(t)
	networks.EXPECT().List().Return(nil, stderrors.New("disk gone"))

	w := httptest.NewRecorder()
	h.StartScan(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan/start", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
