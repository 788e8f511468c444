// Package metrics provides Prometheus-based metrics collection for lanscan.
// Collectors live on a private registry so tests and embedded uses do not
// collide with the default global registry.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all lanscan metrics
	namespace = "lanscan"

	// Subsystems
	subsystemSession   = "session"
	subsystemDiscovery = "discovery"
	subsystemStorage   = "storage"
	subsystemWorkers   = "workers"
	subsystemSystem    = "system"
	subsystemAPI       = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Session metrics
	sessionsTotal   *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	activeSessions  prometheus.Gauge
	rangesTotal     *prometheus.CounterVec

	// Discovery metrics
	strategyTotal    *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	hostsDiscovered  *prometheus.CounterVec
	probesTotal      *prometheus.CounterVec
	enrichDuration   prometheus.Histogram
	enrichStepErrors *prometheus.CounterVec

	// Worker pool metrics
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// Storage metrics
	sinkWrites *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initSessionMetrics()
	pm.initDiscoveryMetrics()
	pm.initWorkerMetrics()
	pm.initStorageMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initSessionMetrics() {
	pm.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "total",
			Help:      "Total number of scan sessions by final state",
		},
		[]string{"state"},
	)

	pm.sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "duration_seconds",
			Help:      "Duration of scan sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)

	pm.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "active",
			Help:      "1 while a scan session is running",
		},
	)

	pm.rangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "ranges_total",
			Help:      "Total number of ranges processed by outcome",
		},
		[]string{"outcome"},
	)
}

func (pm *PrometheusMetrics) initDiscoveryMetrics() {
	pm.strategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "strategy_total",
			Help:      "Range scans by strategy (bulk, fallback) and status",
		},
		[]string{"strategy", "status"},
	)

	pm.sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of bulk discovery sweeps in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	pm.hostsDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "hosts_total",
			Help:      "Total number of live hosts discovered by strategy",
		},
		[]string{"strategy"},
	)

	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "probes_total",
			Help:      "Total number of single-address liveness probes by result",
		},
		[]string{"result"},
	)

	pm.enrichDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "enrich_duration_seconds",
			Help:      "Duration of per-host enrichment in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	pm.enrichStepErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "enrich_errors_total",
			Help:      "Enrichment step failures by step and error code",
		},
		[]string{"step", "code"},
	)
}

func (pm *PrometheusMetrics) initWorkerMetrics() {
	pm.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "jobs_total",
			Help:      "Jobs completed by the worker pool by type and status",
		},
		[]string{"job_type", "status"},
	)

	pm.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "job_duration_seconds",
			Help:      "Duration of worker pool jobs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"job_type"},
	)
}

func (pm *PrometheusMetrics) initStorageMetrics() {
	pm.sinkWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStorage,
			Name:      "writes_total",
			Help:      "Inventory writes by sink and status",
		},
		[]string{"sink", "status"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.sessionsTotal,
		pm.sessionDuration,
		pm.activeSessions,
		pm.rangesTotal,
		pm.strategyTotal,
		pm.sweepDuration,
		pm.hostsDiscovered,
		pm.probesTotal,
		pm.enrichDuration,
		pm.enrichStepErrors,
		pm.jobsTotal,
		pm.jobDuration,
		pm.sinkWrites,
		pm.httpRequests,
		pm.httpDuration,
		pm.memoryUsage,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Session Metrics Methods

// SessionStarted marks a session as running.
func (pm *PrometheusMetrics) SessionStarted() {
	pm.activeSessions.Set(1)
}

// SessionFinished records the final state and duration of a session.
func (pm *PrometheusMetrics) SessionFinished(state string, duration time.Duration) {
	pm.activeSessions.Set(0)
	pm.sessionsTotal.WithLabelValues(state).Inc()
	pm.sessionDuration.Observe(duration.Seconds())
}

// IncrementRanges counts a processed range by outcome (ok, panic).
func (pm *PrometheusMetrics) IncrementRanges(outcome string) {
	pm.rangesTotal.WithLabelValues(outcome).Inc()
}

// Discovery Metrics Methods

// IncrementStrategy counts a range scan attempt by strategy and status.
func (pm *PrometheusMetrics) IncrementStrategy(strategy, status string) {
	pm.strategyTotal.WithLabelValues(strategy, status).Inc()
}

// RecordSweepDuration records a bulk sweep duration.
func (pm *PrometheusMetrics) RecordSweepDuration(duration time.Duration) {
	pm.sweepDuration.Observe(duration.Seconds())
}

// IncrementHostsDiscovered adds live hosts found by a strategy.
func (pm *PrometheusMetrics) IncrementHostsDiscovered(strategy string, count int) {
	pm.hostsDiscovered.WithLabelValues(strategy).Add(float64(count))
}

// IncrementProbes counts one liveness probe.
func (pm *PrometheusMetrics) IncrementProbes(live bool) {
	result := "dead"
	if live {
		result = "live"
	}
	pm.probesTotal.WithLabelValues(result).Inc()
}

// RecordEnrichDuration records how long one host took to enrich.
func (pm *PrometheusMetrics) RecordEnrichDuration(duration time.Duration) {
	pm.enrichDuration.Observe(duration.Seconds())
}

// IncrementEnrichErrors counts a failed enrichment step.
func (pm *PrometheusMetrics) IncrementEnrichErrors(step, code string) {
	pm.enrichStepErrors.WithLabelValues(step, code).Inc()
}

// Worker Metrics Methods

// RecordJob records a finished worker pool job.
func (pm *PrometheusMetrics) RecordJob(jobType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pm.jobsTotal.WithLabelValues(jobType, status).Inc()
	pm.jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// Storage Metrics Methods

// IncrementSinkWrites counts an inventory write by sink and status.
func (pm *PrometheusMetrics) IncrementSinkWrites(sink string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	pm.sinkWrites.WithLabelValues(sink, status).Inc()
}

// API Metrics Methods

// IncrementHTTPRequests increments HTTP request counter
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// System Metrics Methods

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())

	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates updates system metrics every interval until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

// Global instance for easy access
var globalMetrics *PrometheusMetrics
var metricsOnce sync.Once

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
