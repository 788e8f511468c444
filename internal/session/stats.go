package session

import (
	"time"

	"github.com/anstrom/lanscan/internal/discovery"
)

// Stats summarizes an inventory.
type Stats struct {
	TotalHosts     int            `json:"total_hosts"`
	OpenPorts      int            `json:"open_ports"`
	Vendors        map[string]int `json:"vendors"`
	OSDistribution map[string]int `json:"os_distribution"`
	LastScan       *time.Time     `json:"last_scan,omitempty"`
}

// ComputeStats tallies vendors and OS guesses over hosts.
func ComputeStats(hosts []discovery.HostRecord) Stats {
	stats := Stats{
		TotalHosts:     len(hosts),
		Vendors:        make(map[string]int),
		OSDistribution: make(map[string]int),
	}
	for i := range hosts {
		h := &hosts[i]
		stats.Vendors[orUnknown(h.Vendor)]++
		stats.OSDistribution[orUnknown(h.OSGuess)]++
		stats.OpenPorts += len(h.OpenPorts)
	}
	return stats
}

func orUnknown(s string) string {
	if s == "" {
		return discovery.Unknown
	}
	return s
}
