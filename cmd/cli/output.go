package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/session"
	"github.com/anstrom/lanscan/internal/store"
)

const timeLayout = "2006-01-02 15:04"

// printInventory renders hosts as a table.
func printInventory(w io.Writer, hosts []discovery.HostRecord) {
	if len(hosts) == 0 {
		fmt.Fprintln(w, "No live hosts found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Address", "Name", "Hardware Address", "Vendor", "OS", "Open Ports")
	for i := range hosts {
		h := &hosts[i]
		_ = table.Append([]string{
			h.Address,
			h.ReverseName,
			h.HardwareAddress,
			h.Vendor,
			h.OSGuess,
			formatPorts(h.OpenPorts),
		})
	}
	_ = table.Render()
}

// printSnapshot prints the inventory of a finished session and a summary line.
func printSnapshot(w io.Writer, snapshot session.Snapshot) {
	printInventory(w, snapshot.Inventory)
	fmt.Fprintf(w, "\nSession %s %s: %d host(s) across %d range(s)\n",
		snapshot.SessionID, snapshot.State, len(snapshot.Inventory), len(snapshot.Ranges))
}

// formatPorts renders ports as "22/tcp ssh, 80/tcp http".
func formatPorts(ports []discovery.Port) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		part := fmt.Sprintf("%d/%s", p.Port, p.Protocol)
		if p.Service != "" && p.Service != discovery.Unknown {
			part += " " + p.Service
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

// printSessions renders stored session summaries.
func printSessions(w io.Writer, sessions []store.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No stored sessions.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Session", "Started", "Ended", "Hosts", "Ranges")
	for _, s := range sessions {
		_ = table.Append([]string{
			s.ID,
			s.StartedAt.Local().Format(timeLayout),
			s.EndedAt.Local().Format(timeLayout),
			fmt.Sprintf("%d", s.HostCount),
			strings.Join(s.Ranges, ", "),
		})
	}
	_ = table.Render()
}
