package discovery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/metrics"
	"github.com/anstrom/lanscan/internal/workers"
)

const (
	strategyBulk       = "bulk"
	strategySequential = "sequential"
)

// Config controls how a range is scanned.
type Config struct {
	// WorkerPoolSize bounds concurrent enrichment after a bulk sweep.
	WorkerPoolSize int
	// FallbackCap limits how many addresses the sequential fallback probes.
	// Zero means no cap.
	FallbackCap int
	// FallbackDelay is the minimum spacing between sequential probes.
	FallbackDelay time.Duration
	// ProbeTimeout bounds each sequential liveness probe.
	ProbeTimeout time.Duration
}

// DefaultConfig returns the default scan configuration.
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize: 10,
		FallbackCap:    50,
		FallbackDelay:  50 * time.Millisecond,
		ProbeTimeout:   time.Second,
	}
}

// RangeScanner discovers and enriches the live hosts of one range at a time.
type RangeScanner struct {
	bulk     BulkDiscoverer
	prober   Prober
	enricher HostEnricher
	config   Config
	metrics  *metrics.PrometheusMetrics
}

// NewRangeScanner creates a scanner. A nil bulk discoverer always uses the
// sequential fallback.
func NewRangeScanner(bulk BulkDiscoverer, prober Prober, enricher HostEnricher, config Config) *RangeScanner {
	if bulk == nil {
		bulk = UnavailableDiscoverer{}
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = DefaultConfig().WorkerPoolSize
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &RangeScanner{
		bulk:     bulk,
		prober:   prober,
		enricher: enricher,
		config:   config,
		metrics:  metrics.GetGlobalMetrics(),
	}
}

// ScanRange discovers the live hosts of cidr and returns one enriched
// record per host, ordered by address. A bulk sweep failure falls back to
// sequential probing; only an invalid range or a canceled ctx is returned
// as an error.
func (s *RangeScanner) ScanRange(ctx context.Context, cidr string, report Reporter) ([]HostRecord, error) {
	prefix, err := ParseRange(cidr)
	if err != nil {
		return nil, err
	}
	network := prefix.String()

	if s.bulk.Available() {
		hosts, err := s.scanBulk(ctx, network, report)
		if err == nil {
			return hosts, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.ErrorDiscovery("Bulk discovery failed, falling back to sequential probing", network, err)
		report.emit(SeverityWarning, fmt.Sprintf("Bulk discovery of %s failed, falling back to sequential probing: %v", network, err))
	} else {
		report.emit(SeverityInfo, fmt.Sprintf("Bulk discovery unavailable, probing %s sequentially", network))
	}

	return s.scanSequential(ctx, network, report)
}

func (s *RangeScanner) scanBulk(ctx context.Context, network string, report Reporter) ([]HostRecord, error) {
	report.emit(SeverityInfo, fmt.Sprintf("Sweeping %s", network))

	start := time.Now()
	live, err := s.bulk.Sweep(ctx, network)
	s.metrics.RecordSweepDuration(time.Since(start))
	if err != nil {
		s.metrics.IncrementStrategy(strategyBulk, "error")
		return nil, err
	}
	s.metrics.IncrementStrategy(strategyBulk, "success")

	logging.InfoDiscovery("Sweep finished", network, "live", len(live), "duration", time.Since(start))
	report.emit(SeverityInfo, fmt.Sprintf("Sweep of %s found %d live hosts", network, len(live)))

	hosts := s.enrichAll(ctx, live, report)
	s.metrics.IncrementHostsDiscovered(strategyBulk, len(hosts))
	return hosts, nil
}

// enrichAll enriches addrs on a bounded pool and keeps address order.
func (s *RangeScanner) enrichAll(ctx context.Context, addrs []string, report Reporter) []HostRecord {
	if len(addrs) == 0 {
		return []HostRecord{}
	}

	records := make([]HostRecord, len(addrs))
	jobs := make([]workers.Job, len(addrs))
	for i, addr := range addrs {
		jobs[i] = workers.NewFuncJob(addr, "enrich", func(jobCtx context.Context) error {
			records[i] = s.enricher.Enrich(jobCtx, addr, report)
			return nil
		})
	}

	results := workers.Run(ctx, s.config.WorkerPoolSize, jobs)

	hosts := make([]HostRecord, 0, len(addrs))
	for i, r := range results {
		if r.Error != nil {
			report.emit(SeverityError, fmt.Sprintf("Enrichment of %s failed: %v", addrs[i], r.Error))
			continue
		}
		hosts = append(hosts, records[i])
	}
	return hosts
}

func (s *RangeScanner) scanSequential(ctx context.Context, network string, report Reporter) ([]HostRecord, error) {
	prefix, err := ParseRange(network)
	if err != nil {
		return nil, err
	}

	total := HostCount(prefix)
	addrs := HostAddresses(prefix, s.config.FallbackCap)
	if len(addrs) < total {
		report.emit(SeverityWarning, fmt.Sprintf("Sequential probing of %s limited to the first %d of %d addresses",
			network, len(addrs), total))
	}

	limit := rate.Inf
	if s.config.FallbackDelay > 0 {
		limit = rate.Every(s.config.FallbackDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	hosts := []HostRecord{}
	for _, addr := range addrs {
		if err := limiter.Wait(ctx); err != nil {
			s.metrics.IncrementStrategy(strategySequential, "canceled")
			return hosts, err
		}

		live := s.prober.Probe(ctx, addr, s.config.ProbeTimeout)
		s.metrics.IncrementProbes(live)
		if !live {
			continue
		}
		if record, ok := s.enrichOne(ctx, addr, report); ok {
			hosts = append(hosts, record)
		}
	}

	s.metrics.IncrementStrategy(strategySequential, "success")
	s.metrics.IncrementHostsDiscovered(strategySequential, len(hosts))
	report.emit(SeverityInfo, fmt.Sprintf("Sequential probing of %s found %d live hosts", network, len(hosts)))
	return hosts, nil
}

// enrichOne enriches one live address on the sequential path. A panic
// is reported as an error event and the address is dropped.
func (s *RangeScanner) enrichOne(ctx context.Context, addr string, report Reporter) (record HostRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Enrichment panicked", "component", "discovery", "address", addr, "panic", r)
			report.emit(SeverityError, fmt.Sprintf("Enrichment of %s failed: panic: %v", addr, r))
			record, ok = HostRecord{}, false
		}
	}()
	return s.enricher.Enrich(ctx, addr, report), true
}
