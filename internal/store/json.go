package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/session"
)

// ResultsFile is the document written by JSONFileSink.
type ResultsFile struct {
	ScanTime   time.Time              `json:"scan_time"`
	SessionID  string                 `json:"session_id"`
	Ranges     []string               `json:"ranges"`
	TotalHosts int                    `json:"total_hosts"`
	Hosts      []discovery.HostRecord `json:"hosts"`
}

// JSONFileSink writes one results file per completed session.
type JSONFileSink struct {
	dir string
}

// NewJSONFileSink creates a sink writing into dir. The directory is created
// on first use.
func NewJSONFileSink(dir string) *JSONFileSink {
	return &JSONFileSink{dir: dir}
}

// Name implements session.Sink.
func (s *JSONFileSink) Name() string {
	return "json"
}

// FileName returns the results file name for a session ending at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("scan_%s.json", t.Format("20060102_150405"))
}

// Save implements session.Sink. Sessions without hosts are not written.
func (s *JSONFileSink) Save(ctx context.Context, report session.Report) error {
	if len(report.Hosts) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create results directory %s: %w", s.dir, err)
	}

	doc := ResultsFile{
		ScanTime:   report.EndedAt,
		SessionID:  report.SessionID,
		Ranges:     report.Ranges,
		TotalHosts: len(report.Hosts),
		Hosts:      report.Hosts,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	path := filepath.Join(s.dir, FileName(report.EndedAt))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write results file: %w", err)
	}

	logging.Info("Results saved", "component", "store", "path", path, "hosts", len(report.Hosts))
	return nil
}

// ReadResultsFile loads a file written by JSONFileSink.
func ReadResultsFile(path string) (*ResultsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc ResultsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode results file %s: %w", path, err)
	}
	return &doc, nil
}
