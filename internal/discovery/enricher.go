package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/metrics"
	"github.com/anstrom/lanscan/internal/oui"
)

// HostEnricher turns a live address into a host record.
type HostEnricher interface {
	Enrich(ctx context.Context, addr string, report Reporter) HostRecord
}

// Enricher runs the identity, vendor and fingerprint steps for one host.
type Enricher struct {
	identity      IdentityResolver
	vendors       *oui.Table
	fingerprinter Fingerprinter
	metrics       *metrics.PrometheusMetrics
	now           func() time.Time
}

// NewEnricher creates an enricher. A nil vendors table uses the built-in
// one; a nil fingerprinter skips OS and port detection.
func NewEnricher(identity IdentityResolver, vendors *oui.Table, fingerprinter Fingerprinter) *Enricher {
	if vendors == nil {
		vendors = oui.Default()
	}
	return &Enricher{
		identity:      identity,
		vendors:       vendors,
		fingerprinter: fingerprinter,
		metrics:       metrics.GetGlobalMetrics(),
		now:           time.Now,
	}
}

// Enrich implements HostEnricher. It always returns a record: failed steps
// leave their placeholders and are reported as diagnostics.
func (e *Enricher) Enrich(ctx context.Context, addr string, report Reporter) HostRecord {
	start := time.Now()
	rec := NewHostRecord(addr)

	if e.identity != nil {
		id, err := e.identity.ResolveIdentity(ctx, addr)
		rec.ReverseName = id.ReverseName
		if id.HardwareAddress != "" {
			rec.HardwareAddress = id.HardwareAddress
		}
		e.reportStepErrors("identity", addr, err, report)
	}

	rec.Vendor = e.vendors.Lookup(rec.HardwareAddress)

	if e.fingerprinter != nil {
		fp, err := e.fingerprinter.Fingerprint(ctx, addr)
		if err != nil {
			e.reportStepErrors("fingerprint", addr, err, report)
		} else {
			if fp.OSGuess != "" {
				rec.OSGuess = fp.OSGuess
			}
			if fp.Ports != nil {
				rec.OpenPorts = fp.Ports
			}
		}
	}

	rec.ObservedAt = e.now().UTC()
	e.metrics.RecordEnrichDuration(time.Since(start))

	report.emit(SeveritySuccess, fmt.Sprintf("Found host %s (%s) MAC %s vendor %s, OS %s, %d open ports",
		rec.Address, rec.DisplayName(), rec.HardwareAddress, rec.Vendor, rec.OSGuess, len(rec.OpenPorts)))
	return rec
}

// reportStepErrors logs every failure of a step and forwards the ones an
// operator can act on. Missing names and neighbor entries are routine and
// only logged.
func (e *Enricher) reportStepErrors(step, addr string, err error, report Reporter) {
	for _, leaf := range flattenErrors(err) {
		code := errors.GetCode(leaf)
		e.metrics.IncrementEnrichErrors(step, string(code))
		logging.Debug("Enrichment step failed",
			"component", "discovery",
			"step", step,
			"address", addr,
			"code", code,
			"error", leaf)

		switch code {
		case errors.CodeNoResult:
			continue
		case errors.CodeToolUnavailable, errors.CodePermission:
			report.emit(SeverityWarning, fmt.Sprintf("%s for %s skipped: %v", step, addr, leaf))
		default:
			report.emit(SeverityError, fmt.Sprintf("%s for %s failed: %v", step, addr, leaf))
		}
	}
}

func flattenErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flattenErrors(e)...)
		}
		return out
	}
	return []error{err}
}
