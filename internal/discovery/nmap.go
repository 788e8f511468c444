package discovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/logging"
)

const defaultNmapBinary = "nmap"

// BulkDiscoverer finds every live address in a range with one sweep.
type BulkDiscoverer interface {
	// Available reports whether the sweep tool can be used at all.
	Available() bool
	// Sweep returns the live addresses of cidr.
	Sweep(ctx context.Context, cidr string) ([]string, error)
}

// Fingerprint is the result of an OS and port probe.
type Fingerprint struct {
	OSGuess string
	Ports   []Port
}

// Fingerprinter guesses the operating system of a host and lists its open
// ports.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, addr string) (Fingerprint, error)
}

// NmapSweeper runs a ping-only nmap scan ("-sn -T4") over a range.
type NmapSweeper struct {
	binaryPath string
	timeout    time.Duration
	lookPath   func(string) (string, error)
}

// NewNmapSweeper creates a sweeper. An empty binaryPath searches PATH for
// nmap. A zero timeout leaves the sweep bounded only by ctx.
func NewNmapSweeper(binaryPath string, timeout time.Duration) *NmapSweeper {
	return &NmapSweeper{
		binaryPath: binaryPath,
		timeout:    timeout,
		lookPath:   exec.LookPath,
	}
}

// Available implements BulkDiscoverer.
func (s *NmapSweeper) Available() bool {
	bin := s.binaryPath
	if bin == "" {
		bin = defaultNmapBinary
	}
	_, err := s.lookPath(bin)
	return err == nil
}

// buildSweepOptions constructs the nmap options for a liveness sweep.
func buildSweepOptions(cidr, binaryPath string) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(cidr),
		nmap.WithPingScan(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
	}
	if binaryPath != "" {
		options = append(options, nmap.WithBinaryPath(binaryPath))
	}
	return options
}

// Sweep implements BulkDiscoverer.
func (s *NmapSweeper) Sweep(ctx context.Context, cidr string) ([]string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	scanner, err := nmap.NewScanner(ctx, buildSweepOptions(cidr, s.binaryPath)...)
	if err != nil {
		return nil, sweepError(cidr, classifyNmapError(ctx, "sweep", cidr, err, nil))
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, sweepError(cidr, classifyNmapError(ctx, "sweep", cidr, err, warnings))
	}
	if warnings != nil && len(*warnings) > 0 {
		logging.Debug("Sweep completed with warnings", "network", cidr, "warnings", *warnings)
	}
	if result == nil {
		return nil, errors.NewDiscoveryError(errors.CodeDiscoveryFailed, cidr, "nmap", "sweep produced no result")
	}

	return liveAddresses(result.Hosts), nil
}

func sweepError(cidr string, cause *errors.ScanError) error {
	switch cause.Code {
	case errors.CodeToolUnavailable, errors.CodeTimeout, errors.CodeCanceled, errors.CodePermission:
		return errors.WrapDiscoveryError(cause.Code, cidr, "nmap", cause)
	}
	return errors.ErrDiscoveryFailed(cidr, "nmap", cause)
}

// liveAddresses extracts the IPv4 addresses of hosts reported up, sorted.
func liveAddresses(hosts []nmap.Host) []string {
	seen := make(map[string]struct{}, len(hosts))
	out := make([]string, 0, len(hosts))
	for i := range hosts {
		host := &hosts[i]
		if host.Status.State != "up" {
			continue
		}
		for _, a := range host.Addresses {
			if a.AddrType != "ipv4" {
				continue
			}
			if _, dup := seen[a.Addr]; dup {
				continue
			}
			seen[a.Addr] = struct{}{}
			out = append(out, a.Addr)
		}
	}
	SortAddresses(out)
	return out
}

// UnavailableDiscoverer is used when bulk discovery is disabled.
type UnavailableDiscoverer struct{}

// Available implements BulkDiscoverer.
func (UnavailableDiscoverer) Available() bool { return false }

// Sweep implements BulkDiscoverer.
func (UnavailableDiscoverer) Sweep(_ context.Context, cidr string) ([]string, error) {
	return nil, errors.NewDiscoveryError(errors.CodeToolUnavailable, cidr, "none", "bulk discovery is disabled")
}

// NmapFingerprinter runs an OS detection and fast port scan ("-O -F")
// against a single host.
type NmapFingerprinter struct {
	binaryPath string
	timeout    time.Duration
}

// NewNmapFingerprinter creates a fingerprinter. An empty binaryPath
// searches PATH for nmap.
func NewNmapFingerprinter(binaryPath string, timeout time.Duration) *NmapFingerprinter {
	return &NmapFingerprinter{binaryPath: binaryPath, timeout: timeout}
}

// buildFingerprintOptions constructs the nmap options for one host.
func buildFingerprintOptions(addr, binaryPath string) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(addr),
		nmap.WithOSDetection(),
		nmap.WithFastMode(),
	}
	if binaryPath != "" {
		options = append(options, nmap.WithBinaryPath(binaryPath))
	}
	return options
}

// Fingerprint implements Fingerprinter.
func (f *NmapFingerprinter) Fingerprint(ctx context.Context, addr string) (Fingerprint, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	scanner, err := nmap.NewScanner(ctx, buildFingerprintOptions(addr, f.binaryPath)...)
	if err != nil {
		return Fingerprint{}, classifyNmapError(ctx, "fingerprint", addr, err, nil)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return Fingerprint{}, classifyNmapError(ctx, "fingerprint", addr, err, warnings)
	}
	if warnings != nil && len(*warnings) > 0 {
		if perm := permissionWarning(*warnings); perm != "" {
			return Fingerprint{}, errors.NewScanError(errors.CodePermission, "fingerprint", addr, perm)
		}
		logging.Debug("Fingerprint completed with warnings", "address", addr, "warnings", *warnings)
	}
	if result == nil || len(result.Hosts) == 0 {
		return Fingerprint{}, errors.NewScanError(errors.CodeNoResult, "fingerprint", addr, "host did not respond to fingerprinting")
	}

	host := &result.Hosts[0]
	return Fingerprint{
		OSGuess: osGuess(host),
		Ports:   openPorts(host),
	}, nil
}

// osGuess formats the best OS match as "<name> (accuracy: N%)".
func osGuess(host *nmap.Host) string {
	if len(host.OS.Matches) == 0 {
		return Unknown
	}
	best := host.OS.Matches[0]
	return fmt.Sprintf("%s (accuracy: %d%%)", best.Name, best.Accuracy)
}

// openPorts lists the ports reported open, ordered by number.
func openPorts(host *nmap.Host) []Port {
	ports := make([]Port, 0, len(host.Ports))
	for _, p := range host.Ports {
		if p.State.State != "open" {
			continue
		}
		ports = append(ports, Port{
			Port:     int(p.ID),
			Protocol: p.Protocol,
			State:    p.State.State,
			Service:  p.Service.Name,
		})
	}
	sort.Slice(ports, func(i, j int) bool {
		if ports[i].Port != ports[j].Port {
			return ports[i].Port < ports[j].Port
		}
		return ports[i].Protocol < ports[j].Protocol
	})
	return ports
}

func permissionWarning(warnings []string) string {
	for _, w := range warnings {
		if isPermissionMessage(w) {
			return strings.TrimSpace(w)
		}
	}
	return ""
}

func isPermissionMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "requires root") ||
		strings.Contains(msg, "root privileges") ||
		strings.Contains(msg, "operation not permitted")
}

// classifyNmapError maps an nmap failure onto an error code.
func classifyNmapError(ctx context.Context, operation, target string, err error, warnings *[]string) *errors.ScanError {
	switch {
	case stderrors.Is(err, nmap.ErrNmapNotInstalled), stderrors.Is(err, exec.ErrNotFound):
		return errors.ErrToolUnavailable(operation, defaultNmapBinary, err)
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded), stderrors.Is(err, context.DeadlineExceeded):
		return errors.WrapScanError(errors.CodeTimeout, operation, target, err)
	case stderrors.Is(ctx.Err(), context.Canceled), stderrors.Is(err, context.Canceled):
		return errors.WrapScanError(errors.CodeCanceled, operation, target, err)
	case isPermissionMessage(err.Error()):
		return errors.WrapScanError(errors.CodePermission, operation, target, err)
	}
	if warnings != nil {
		if perm := permissionWarning(*warnings); perm != "" {
			e := errors.WrapScanError(errors.CodePermission, operation, target, err)
			e.Message = perm
			return e
		}
	}
	return errors.WrapScanError(errors.CodeScanFailed, operation, target, err)
}
