package store

import (
	"context"
	"strings"
	"time"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/session"
)

// SessionSummary is one stored session without its hosts.
type SessionSummary struct {
	ID        string    `json:"session_id"`
	Ranges    []string  `json:"ranges"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	HostCount int       `json:"host_count"`
}

type sessionRow struct {
	ID        string    `db:"id"`
	Ranges    string    `db:"ranges"`
	StartedAt time.Time `db:"started_at"`
	EndedAt   time.Time `db:"ended_at"`
	HostCount int       `db:"host_count"`
}

type hostRow struct {
	ID              int64     `db:"id"`
	Address         string    `db:"address"`
	ReverseName     string    `db:"reverse_name"`
	HardwareAddress string    `db:"hardware_address"`
	Vendor          string    `db:"vendor"`
	OSGuess         string    `db:"os_guess"`
	Status          string    `db:"status"`
	ObservedAt      time.Time `db:"observed_at"`
}

type portRow struct {
	HostID   int64  `db:"host_id"`
	Port     int    `db:"port"`
	Protocol string `db:"protocol"`
	State    string `db:"state"`
	Service  string `db:"service"`
}

// SQLSink stores completed sessions in a relational database.
type SQLSink struct {
	db *DB
}

// NewSQLSink creates a sink over a migrated database.
func NewSQLSink(db *DB) *SQLSink {
	return &SQLSink{db: db}
}

// Name implements session.Sink.
func (s *SQLSink) Name() string {
	return "sql"
}

// Close closes the underlying database.
func (s *SQLSink) Close() error {
	return s.db.Close()
}

// Save implements session.Sink. The session, its hosts and their ports are
// written in one transaction.
func (s *SQLSink) Save(ctx context.Context, report session.Report) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin save session", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertSession := s.db.Rebind(`
		INSERT INTO scan_sessions (id, ranges, started_at, ended_at, host_count)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertSession,
		report.SessionID, strings.Join(report.Ranges, ","),
		report.StartedAt.UTC(), report.EndedAt.UTC(), len(report.Hosts),
	); err != nil {
		return sanitizeDBError("insert session", err)
	}

	insertHost := s.db.Rebind(`
		INSERT INTO hosts (session_id, address, reverse_name, hardware_address, vendor, os_guess, status, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	insertPort := s.db.Rebind(`
		INSERT INTO host_ports (host_id, port, protocol, state, service)
		VALUES (?, ?, ?, ?, ?)`)

	for i := range report.Hosts {
		h := &report.Hosts[i]
		var hostID int64
		if err := tx.QueryRowxContext(ctx, insertHost,
			report.SessionID, h.Address, h.ReverseName, h.HardwareAddress,
			h.Vendor, h.OSGuess, h.Status, h.ObservedAt.UTC(),
		).Scan(&hostID); err != nil {
			return sanitizeDBError("insert host", err)
		}

		for _, p := range h.OpenPorts {
			if _, err := tx.ExecContext(ctx, insertPort, hostID, p.Port, p.Protocol, p.State, p.Service); err != nil {
				return sanitizeDBError("insert port", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit session", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *SQLSink) RecentSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []sessionRow
	query := s.db.Rebind(`
		SELECT id, ranges, started_at, ended_at, host_count
		FROM scan_sessions
		ORDER BY started_at DESC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, sanitizeDBError("list sessions", err)
	}

	sessions := make([]SessionSummary, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, SessionSummary{
			ID:        r.ID,
			Ranges:    splitRanges(r.Ranges),
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
			HostCount: r.HostCount,
		})
	}
	return sessions, nil
}

// SessionHosts returns the hosts stored for a session in the order they
// were saved. An unknown session yields NOT_FOUND.
func (s *SQLSink) SessionHosts(ctx context.Context, sessionID string) ([]discovery.HostRecord, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		s.db.Rebind(`SELECT COUNT(*) FROM scan_sessions WHERE id = ?`), sessionID); err != nil {
		return nil, sanitizeDBError("get session", err)
	}
	if count == 0 {
		dbErr := errors.NewDatabaseError(errors.CodeNotFound, "session not found")
		dbErr.Operation = "get session"
		return nil, dbErr
	}

	var hostRows []hostRow
	if err := s.db.SelectContext(ctx, &hostRows, s.db.Rebind(`
		SELECT id, address, reverse_name, hardware_address, vendor, os_guess, status, observed_at
		FROM hosts
		WHERE session_id = ?
		ORDER BY id`), sessionID); err != nil {
		return nil, sanitizeDBError("list hosts", err)
	}

	var portRows []portRow
	if err := s.db.SelectContext(ctx, &portRows, s.db.Rebind(`
		SELECT p.host_id, p.port, p.protocol, p.state, p.service
		FROM host_ports p
		JOIN hosts h ON h.id = p.host_id
		WHERE h.session_id = ?
		ORDER BY p.host_id, p.port`), sessionID); err != nil {
		return nil, sanitizeDBError("list ports", err)
	}

	ports := make(map[int64][]discovery.Port)
	for _, p := range portRows {
		ports[p.HostID] = append(ports[p.HostID], discovery.Port{
			Port:     p.Port,
			Protocol: p.Protocol,
			State:    p.State,
			Service:  p.Service,
		})
	}

	hosts := make([]discovery.HostRecord, 0, len(hostRows))
	for _, r := range hostRows {
		open := ports[r.ID]
		if open == nil {
			open = []discovery.Port{}
		}
		hosts = append(hosts, discovery.HostRecord{
			Address:         r.Address,
			ReverseName:     r.ReverseName,
			HardwareAddress: r.HardwareAddress,
			Vendor:          r.Vendor,
			OSGuess:         r.OSGuess,
			OpenPorts:       open,
			Status:          r.Status,
			ObservedAt:      r.ObservedAt,
		})
	}
	return hosts, nil
}

func splitRanges(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
