// Package discovery finds live hosts in IPv4 ranges and enriches each one
// with its reverse name, hardware address, vendor, OS guess and open ports.
//
// A range is scanned with a bulk sweep when the sweep tool is available and
// falls back to a capped, rate-limited sequential probe otherwise. Every
// enrichment step is independent: a failed step leaves its placeholder in
// the record and never discards the host.
package discovery

import (
	"time"

	"github.com/anstrom/lanscan/internal/oui"
)

// Unknown is the placeholder for attributes that could not be determined.
const Unknown = oui.Unknown

// StatusOnline is the status of every host that answered discovery.
const StatusOnline = "Online"

// Severity classifies diagnostic events.
type Severity string

// Event severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Reporter receives human-readable diagnostics while a range is scanned.
// It may be called from several goroutines at once. A nil Reporter
// discards them.
type Reporter func(severity Severity, message string)

func (r Reporter) emit(severity Severity, message string) {
	if r != nil {
		r(severity, message)
	}
}

// Port is one open port reported by fingerprinting.
type Port struct {
	Port     int    `json:"port" db:"port"`
	Protocol string `json:"protocol" db:"protocol"`
	State    string `json:"state" db:"state"`
	Service  string `json:"service" db:"service"`
}

// HostRecord is the enriched description of one live host.
type HostRecord struct {
	Address         string    `json:"address"`
	ReverseName     string    `json:"reverse_name"`
	HardwareAddress string    `json:"hardware_address"`
	Vendor          string    `json:"vendor"`
	OSGuess         string    `json:"os_guess"`
	OpenPorts       []Port    `json:"open_ports"`
	Status          string    `json:"status"`
	ObservedAt      time.Time `json:"observed_at"`
}

// NewHostRecord returns a record for addr with every attribute set to its
// placeholder.
func NewHostRecord(addr string) HostRecord {
	return HostRecord{
		Address:         addr,
		ReverseName:     "",
		HardwareAddress: Unknown,
		Vendor:          Unknown,
		OSGuess:         Unknown,
		OpenPorts:       []Port{},
		Status:          StatusOnline,
	}
}

// Clone returns a deep copy of the record.
func (h HostRecord) Clone() HostRecord {
	c := h
	c.OpenPorts = make([]Port, len(h.OpenPorts))
	copy(c.OpenPorts, h.OpenPorts)
	return c
}

// DisplayName returns the reverse name when known, otherwise the address.
func (h HostRecord) DisplayName() string {
	if h.ReverseName != "" {
		return h.ReverseName
	}
	return h.Address
}
