package discovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/lanscan/internal/errors"
)

func TestLiveAddresses(t *testing.T) {
	hosts := []nmap.Host{
		{
			Status:    nmap.Status{State: "up"},
			Addresses: []nmap.Address{{Addr: "192.168.1.20", AddrType: "ipv4"}, {Addr: "AA:BB:CC:DD:EE:FF", AddrType: "mac"}},
		},
		{
			Status:    nmap.Status{State: "down"},
			Addresses: []nmap.Address{{Addr: "192.168.1.21", AddrType: "ipv4"}},
		},
		{
			Status:    nmap.Status{State: "up"},
			Addresses: []nmap.Address{{Addr: "192.168.1.3", AddrType: "ipv4"}},
		},
		{
			Status:    nmap.Status{State: "up"},
			Addresses: []nmap.Address{{Addr: "192.168.1.3", AddrType: "ipv4"}},
		},
	}

	assert.Equal(t, []string{"192.168.1.3", "192.168.1.20"}, liveAddresses(hosts))
	assert.Empty(t, liveAddresses(nil))
}

func TestOSGuessAndPorts(t *testing.T) {
	host := &nmap.Host{
		OS: nmap.OS{Matches: []nmap.OSMatch{
			{Name: "Linux 5.0 - 5.14", Accuracy: 96},
			{Name: "Linux 4.15", Accuracy: 90},
		}},
		Ports: []nmap.Port{
			{ID: 443, Protocol: "tcp", State: nmap.State{State: "open"}, Service: nmap.Service{Name: "https"}},
			{ID: 22, Protocol: "tcp", State: nmap.State{State: "open"}, Service: nmap.Service{Name: "ssh"}},
			{ID: 25, Protocol: "tcp", State: nmap.State{State: "filtered"}, Service: nmap.Service{Name: "smtp"}},
		},
	}

	assert.Equal(t, "Linux 5.0 - 5.14 (accuracy: 96%)", osGuess(host))
	assert.Equal(t, []Port{
		{Port: 22, Protocol: "tcp", State: "open", Service: "ssh"},
		{Port: 443, Protocol: "tcp", State: "open", Service: "https"},
	}, openPorts(host))

	empty := &nmap.Host{}
	assert.Equal(t, Unknown, osGuess(empty))
	assert.Empty(t, openPorts(empty))
}

func TestClassifyNmapError(t *testing.T) {
	background := context.Background()

	expired, cancel := context.WithTimeout(background, time.Nanosecond)
	defer cancel()
	<-expired.Done()

	canceled, cancelNow := context.WithCancel(background)
	cancelNow()

	tests := []struct {
		name     string
		ctx      context.Context
		err      error
		warnings []string
		want     errors.ErrorCode
	}{
		{"not installed", background, nmap.ErrNmapNotInstalled, nil, errors.CodeToolUnavailable},
		{"exec not found", background, fmt.Errorf("start: %w", exec.ErrNotFound), nil, errors.CodeToolUnavailable},
		{"deadline", expired, stderrors.New("killed"), nil, errors.CodeTimeout},
		{"canceled", canceled, stderrors.New("killed"), nil, errors.CodeCanceled},
		{"root in error", background, stderrors.New("TCP/IP fingerprinting (for OS scan) requires root privileges."), nil, errors.CodePermission},
		{"root in warnings", background, stderrors.New("exit status 1"), []string{"QUITTING!", "requires root privileges"}, errors.CodePermission},
		{"other", background, stderrors.New("exit status 1"), nil, errors.CodeScanFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var warnings *[]string
			if tt.warnings != nil {
				warnings = &tt.warnings
			}
			got := classifyNmapError(tt.ctx, "fingerprint", "10.0.0.1", tt.err, warnings)
			assert.Equal(t, tt.want, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestSweepErrorKeepsActionableCodes(t *testing.T) {
	missing := sweepError("10.0.0.0/24", errors.ErrToolUnavailable("sweep", "nmap", nmap.ErrNmapNotInstalled))
	assert.True(t, errors.IsCode(missing, errors.CodeToolUnavailable))

	failed := sweepError("10.0.0.0/24", errors.WrapScanError(errors.CodeScanFailed, "sweep", "10.0.0.0/24", stderrors.New("boom")))
	var de *errors.DiscoveryError
	require.ErrorAs(t, failed, &de)
	assert.Equal(t, errors.CodeDiscoveryFailed, de.Code)
	assert.Equal(t, "nmap", de.Method)
}

func TestNmapSweeperAvailable(t *testing.T) {
	sweeper := NewNmapSweeper("", time.Minute)

	sweeper.lookPath = func(string) (string, error) { return "/usr/bin/nmap", nil }
	assert.True(t, sweeper.Available())

	sweeper.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	assert.False(t, sweeper.Available())

	var requested string
	custom := NewNmapSweeper("/opt/nmap/bin/nmap", 0)
	custom.lookPath = func(p string) (string, error) { requested = p; return p, nil }
	assert.True(t, custom.Available())
	assert.Equal(t, "/opt/nmap/bin/nmap", requested)
}

func TestUnavailableDiscoverer(t *testing.T) {
	var d UnavailableDiscoverer
	assert.False(t, d.Available())
	_, err := d.Sweep(context.Background(), "10.0.0.0/24")
	assert.True(t, errors.IsCode(err, errors.CodeToolUnavailable))
}

func TestSweepOptionsCount(t *testing.T) {
	assert.Len(t, buildSweepOptions("10.0.0.0/24", ""), 3)
	assert.Len(t, buildSweepOptions("10.0.0.0/24", "/usr/local/bin/nmap"), 4)
	assert.Len(t, buildFingerprintOptions("10.0.0.1", ""), 3)
}
