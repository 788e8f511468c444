package discovery

import (
	"bufio"
	"context"
	stderrors "errors"
	"net/netip"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/anstrom/lanscan/internal/errors"
)

// DefaultProcARPPath is the Linux kernel neighbor table.
const DefaultProcARPPath = "/proc/net/arp"

// NeighborTable resolves an address to the hardware address the local
// system has learned for it.
type NeighborTable interface {
	HardwareAddr(ctx context.Context, addr string) (string, error)
}

var (
	macPattern  = regexp.MustCompile(`(?i)\b([0-9a-f]{1,2}(?:[:-][0-9a-f]{1,2}){5})\b`)
	ipv4Pattern = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{1,3}){3})\b`)
)

// NormalizeMAC converts a hardware address to uppercase colon-separated
// form with two digits per octet. It returns "" when the input is not a
// usable unicast address.
func NormalizeMAC(mac string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(mac), func(r rune) bool {
		return r == ':' || r == '-'
	})
	if len(parts) != 6 {
		return ""
	}
	for i, p := range parts {
		if len(p) == 1 {
			p = "0" + p
		}
		if len(p) != 2 || !isHexString(p) {
			return ""
		}
		parts[i] = strings.ToUpper(p)
	}
	out := strings.Join(parts, ":")
	if out == "00:00:00:00:00:00" || out == "FF:FF:FF:FF:FF:FF" {
		return ""
	}
	return out
}

func isHexString(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// ParseProcARP parses the contents of /proc/net/arp into an address to
// hardware address map. Incomplete entries are skipped.
func ParseProcARP(content string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(content))
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "IP address") {
				continue
			}
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		// Flags 0x0 marks an incomplete entry.
		if fields[2] == "0x0" {
			continue
		}
		if _, err := netip.ParseAddr(fields[0]); err != nil {
			continue
		}
		if mac := NormalizeMAC(fields[3]); mac != "" {
			table[fields[0]] = mac
		}
	}
	return table
}

// ParseARPCommand parses the output of the system arp command. It accepts
// the Linux, BSD/macOS and Windows layouts by pairing the first IPv4
// address and the first hardware address found on each line.
func ParseARPCommand(output string) map[string]string {
	table := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "incomplete") || strings.HasPrefix(strings.TrimSpace(line), "Interface:") {
			continue
		}
		ipMatch := ipv4Pattern.FindStringSubmatch(line)
		macMatch := macPattern.FindStringSubmatch(line)
		if ipMatch == nil || macMatch == nil {
			continue
		}
		if _, err := netip.ParseAddr(ipMatch[1]); err != nil {
			continue
		}
		if mac := NormalizeMAC(macMatch[1]); mac != "" {
			table[ipMatch[1]] = mac
		}
	}
	return table
}

// ProcNeighborTable reads the kernel neighbor table file.
type ProcNeighborTable struct {
	Path string
}

// NewProcNeighborTable creates a table reader for path, or the default
// Linux location when path is empty.
func NewProcNeighborTable(path string) *ProcNeighborTable {
	if path == "" {
		path = DefaultProcARPPath
	}
	return &ProcNeighborTable{Path: path}
}

// HardwareAddr implements NeighborTable.
func (t *ProcNeighborTable) HardwareAddr(_ context.Context, addr string) (string, error) {
	content, err := os.ReadFile(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.ErrToolUnavailable("neighbor_table", t.Path, err)
		}
		return "", errors.WrapScanError(errors.CodeFilePermission, "neighbor_table", addr, err)
	}
	if mac, ok := ParseProcARP(string(content))[addr]; ok {
		return mac, nil
	}
	return "", errors.NewScanError(errors.CodeNoResult, "neighbor_table", addr, "no neighbor entry")
}

// CommandNeighborTable queries the system arp command for one address.
type CommandNeighborTable struct {
	Command string
	Timeout time.Duration
}

// NewCommandNeighborTable creates a table that runs "arp -n <addr>".
func NewCommandNeighborTable(timeout time.Duration) *CommandNeighborTable {
	return &CommandNeighborTable{Command: "arp", Timeout: timeout}
}

// HardwareAddr implements NeighborTable.
func (t *CommandNeighborTable) HardwareAddr(ctx context.Context, addr string) (string, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	// #nosec G204 -- addr is a validated IPv4 literal
	out, err := exec.CommandContext(ctx, t.Command, "-n", addr).Output()
	if err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return "", errors.ErrToolUnavailable("neighbor_table", t.Command, err)
		}
		if ctx.Err() != nil {
			return "", errors.WrapScanError(errors.CodeTimeout, "neighbor_table", addr, ctx.Err())
		}
		// arp exits non-zero when there is no entry.
		if len(out) == 0 {
			return "", errors.NewScanError(errors.CodeNoResult, "neighbor_table", addr, "no neighbor entry")
		}
	}
	if mac, ok := ParseARPCommand(string(out))[addr]; ok {
		return mac, nil
	}
	return "", errors.NewScanError(errors.CodeNoResult, "neighbor_table", addr, "no neighbor entry")
}

// ChainNeighborTable tries each table in order and returns the first hit.
type ChainNeighborTable []NeighborTable

// NewSystemNeighborTable returns the kernel table followed by the arp
// command.
func NewSystemNeighborTable(timeout time.Duration) ChainNeighborTable {
	return ChainNeighborTable{
		NewProcNeighborTable(""),
		NewCommandNeighborTable(timeout),
	}
}

// HardwareAddr implements NeighborTable. When every table fails, the
// errors are joined.
func (c ChainNeighborTable) HardwareAddr(ctx context.Context, addr string) (string, error) {
	var errs []error
	for _, t := range c {
		mac, err := t.HardwareAddr(ctx, addr)
		if err == nil && mac != "" {
			return mac, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return "", errors.NewScanError(errors.CodeNoResult, "neighbor_table", addr, "no neighbor entry")
	}
	return "", stderrors.Join(errs...)
}
