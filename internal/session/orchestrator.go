// Package session runs batch scans over an ordered list of ranges. One
// session may be active per Orchestrator; its state is written only by the
// background run and read by everyone else through snapshots.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/metrics"
)

// State is the lifecycle state of a session.
type State string

// Session states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Sentinel errors returned by Start. Match them with errors.Is.
var (
	ErrAlreadyRunning = errors.NewSessionError(errors.CodeAlreadyRunning, "a scan session is already running")
	ErrEmptyInput     = errors.NewSessionError(errors.CodeEmptyInput, "no network ranges supplied")
)

// RangeScanner scans one range. It is satisfied by *discovery.RangeScanner.
type RangeScanner interface {
	ScanRange(ctx context.Context, cidr string, report discovery.Reporter) ([]discovery.HostRecord, error)
}

// Options configure an Orchestrator.
type Options struct {
	// RangePause is the delay between consecutive ranges.
	RangePause time.Duration
	// EventCapacity bounds the event log.
	EventCapacity int
	// Sinks receive the inventory of every completed session.
	Sinks []Sink
	// SinkTimeout bounds the persistence step.
	SinkTimeout time.Duration
	// Clock returns the current time.
	Clock func() time.Time
	// NewID generates session identifiers.
	NewID func() string
}

// DefaultOptions returns the default orchestrator options.
func DefaultOptions() Options {
	return Options{
		RangePause:    time.Second,
		EventCapacity: DefaultEventCapacity,
		SinkTimeout:   30 * time.Second,
		Clock:         time.Now,
		NewID:         func() string { return uuid.NewString() },
	}
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	SessionID       string                 `json:"session_id"`
	State           State                  `json:"state"`
	Active          bool                   `json:"active"`
	Ranges          []string               `json:"ranges"`
	CurrentIndex    int                    `json:"current_index"`
	CurrentRange    string                 `json:"current_range"`
	ProgressPercent int                    `json:"progress_percent"`
	HostsFound      int                    `json:"hosts_found"`
	Inventory       []discovery.HostRecord `json:"inventory"`
	StartedAt       *time.Time             `json:"started_at"`
	EndedAt         *time.Time             `json:"ended_at"`
	Events          []Event                `json:"events"`
}

// Orchestrator owns the scan session lifecycle.
type Orchestrator struct {
	scanner RangeScanner
	opts    Options
	metrics *metrics.PrometheusMetrics

	mu           sync.RWMutex
	id           string
	state        State
	ranges       []string
	currentIndex int
	currentRange string
	progress     int
	inventory    []discovery.HostRecord
	startedAt    time.Time
	endedAt      time.Time
	events       *eventRing
	sequence     uint64
	cancelCh     chan struct{}
	cancelOnce   *sync.Once
	done         chan struct{}

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSub     int

	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates an Orchestrator in the Idle state. Zero option fields take
// their defaults.
func New(scanner RangeScanner, opts Options) *Orchestrator {
	defaults := DefaultOptions()
	if opts.EventCapacity <= 0 {
		opts.EventCapacity = defaults.EventCapacity
	}
	if opts.RangePause < 0 {
		opts.RangePause = 0
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaults.SinkTimeout
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.NewID == nil {
		opts.NewID = defaults.NewID
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		scanner:     scanner,
		opts:        opts,
		metrics:     metrics.GetGlobalMetrics(),
		state:       StateIdle,
		events:      newEventRing(opts.EventCapacity),
		subscribers: make(map[int]func(Event)),
		runCtx:      ctx,
		runCancel:   cancel,
	}
}

// Start validates ranges and begins a new session in the background. It
// fails with ALREADY_RUNNING while a session is running, EMPTY_INPUT when
// no ranges are given and TARGET_INVALID for the first unparseable range.
// A rejected call leaves the current state untouched.
func (o *Orchestrator) Start(ranges []string) (string, error) {
	cleaned := make([]string, 0, len(ranges))
	for _, r := range ranges {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}

	o.mu.Lock()
	// The previous run may still be persisting results after its state
	// turned Completed.
	if o.state == StateRunning || (o.done != nil && !isClosed(o.done)) {
		o.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if len(cleaned) == 0 {
		o.mu.Unlock()
		return "", ErrEmptyInput
	}
	for _, r := range cleaned {
		if err := discovery.ValidateRange(r); err != nil {
			o.mu.Unlock()
			return "", err
		}
	}

	now := o.opts.Clock()
	o.id = o.opts.NewID()
	o.state = StateRunning
	o.ranges = cleaned
	o.currentIndex = 0
	o.currentRange = ""
	o.progress = 0
	o.inventory = []discovery.HostRecord{}
	o.startedAt = now
	o.endedAt = time.Time{}
	o.events = newEventRing(o.opts.EventCapacity)
	o.cancelCh = make(chan struct{})
	o.cancelOnce = &sync.Once{}
	o.done = make(chan struct{})
	id := o.id
	done := o.done
	cancelCh := o.cancelCh
	o.mu.Unlock()

	o.metrics.SessionStarted()
	logging.InfoSession("Scan session started", id, "ranges", len(cleaned))
	o.addEvent(discovery.SeverityInfo, fmt.Sprintf("Scan started for %d network ranges", len(cleaned)))

	go o.run(id, cleaned, cancelCh, done)
	return id, nil
}

// Cancel requests cancellation of the running session. It takes effect at
// the next range boundary. It returns false when no session is running.
func (o *Orchestrator) Cancel() bool {
	o.mu.RLock()
	running := o.state == StateRunning
	once, ch := o.cancelOnce, o.cancelCh
	o.mu.RUnlock()

	if !running {
		return false
	}

	requested := false
	once.Do(func() {
		close(ch)
		requested = true
	})
	if requested {
		o.addEvent(discovery.SeverityWarning, "Cancellation requested, stopping after the current range")
	}
	return true
}

// Status returns a snapshot of the current or most recent session.
func (o *Orchestrator) Status() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := Snapshot{
		SessionID:       o.id,
		State:           o.state,
		Active:          o.state == StateRunning,
		Ranges:          append([]string{}, o.ranges...),
		CurrentIndex:    o.currentIndex,
		CurrentRange:    o.currentRange,
		ProgressPercent: o.progress,
		HostsFound:      len(o.inventory),
		Inventory:       cloneHosts(o.inventory),
		Events:          o.events.list(),
	}
	if !o.startedAt.IsZero() {
		t := o.startedAt
		snap.StartedAt = &t
	}
	if !o.endedAt.IsZero() {
		t := o.endedAt
		snap.EndedAt = &t
	}
	return snap
}

// Inventory returns a copy of the hosts found so far.
func (o *Orchestrator) Inventory() []discovery.HostRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneHosts(o.inventory)
}

// Events returns the retained event log, oldest first.
func (o *Orchestrator) Events() []Event {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.events.list()
}

// Stats summarizes the current inventory.
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	stats := ComputeStats(o.inventory)
	if !o.endedAt.IsZero() {
		t := o.endedAt
		stats.LastScan = &t
	}
	return stats
}

// Subscribe registers fn to receive every new event. fn runs on the
// goroutine that produced the event and must not block. The returned
// function removes the subscription.
func (o *Orchestrator) Subscribe(fn func(Event)) func() {
	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = fn
	o.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.subMu.Lock()
			delete(o.subscribers, id)
			o.subMu.Unlock()
		})
	}
}

// Wait blocks until the current session, if any, has finished.
func (o *Orchestrator) Wait() {
	o.mu.RLock()
	done := o.done
	o.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// Close aborts any in-flight probes and waits for the session to end. It
// is meant for process shutdown; use Cancel for cooperative stops.
func (o *Orchestrator) Close() {
	o.Cancel()
	o.runCancel()
	o.Wait()
}

func (o *Orchestrator) run(id string, ranges []string, cancelCh <-chan struct{}, done chan struct{}) {
	defer close(done)

	logger := logging.Default().WithComponent("session").WithSessionID(id)
	total := len(ranges)

	for i, cidr := range ranges {
		if isClosed(cancelCh) || o.runCtx.Err() != nil {
			o.finishCancelled(id, i, total)
			return
		}

		o.mu.Lock()
		o.currentIndex = i
		o.currentRange = cidr
		o.mu.Unlock()
		o.addEvent(discovery.SeverityInfo, fmt.Sprintf("Scanning range %d of %d: %s", i+1, total, cidr))

		hosts := o.scanRange(logger, cidr)

		o.mu.Lock()
		o.inventory = append(o.inventory, hosts...)
		if p := (i + 1) * 100 / total; p > o.progress {
			o.progress = p
		}
		found := len(o.inventory)
		o.mu.Unlock()
		o.addEvent(discovery.SeverityInfo, fmt.Sprintf("Range %s finished: %d hosts (%d total)", cidr, len(hosts), found))

		if i < total-1 && o.opts.RangePause > 0 {
			timer := time.NewTimer(o.opts.RangePause)
			select {
			case <-timer.C:
			case <-cancelCh:
				timer.Stop()
			case <-o.runCtx.Done():
				timer.Stop()
			}
		}
	}

	// A request that arrived during the last range still wins.
	if isClosed(cancelCh) || o.runCtx.Err() != nil {
		o.finishCancelled(id, total, total)
		return
	}
	o.finishCompleted(id, total)
}

// scanRange runs one range and converts errors and panics into an empty
// result so the session always moves on to the next range.
func (o *Orchestrator) scanRange(logger *logging.Logger, cidr string) (hosts []discovery.HostRecord) {
	logger = logger.WithRange(cidr)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Range scan panicked", "panic", r)
			o.metrics.IncrementRanges("panic")
			o.addEvent(discovery.SeverityError, fmt.Sprintf("Scanning %s failed unexpectedly: %v", cidr, r))
			hosts = nil
		}
	}()

	hosts, err := o.scanner.ScanRange(o.runCtx, cidr, o.addEvent)
	if err != nil {
		logger.WithError(err).Error("Range scan failed")
		o.metrics.IncrementRanges("error")
		o.addEvent(discovery.SeverityError, fmt.Sprintf("Scanning %s failed: %v", cidr, err))
		return nil
	}
	o.metrics.IncrementRanges("ok")
	return hosts
}

func (o *Orchestrator) finishCancelled(id string, completed, total int) {
	o.mu.Lock()
	o.state = StateCancelled
	o.endedAt = o.opts.Clock()
	duration := o.endedAt.Sub(o.startedAt)
	found := len(o.inventory)
	o.mu.Unlock()

	o.metrics.SessionFinished(string(StateCancelled), duration)
	logging.InfoSession("Scan session cancelled", id, "ranges_completed", completed, "hosts", found)
	o.addEvent(discovery.SeverityWarning, fmt.Sprintf("Scan cancelled after %d of %d ranges, %d hosts found", completed, total, found))
}

func (o *Orchestrator) finishCompleted(id string, total int) {
	o.mu.Lock()
	o.state = StateCompleted
	o.progress = 100
	o.endedAt = o.opts.Clock()
	report := Report{
		SessionID: id,
		Ranges:    append([]string{}, o.ranges...),
		StartedAt: o.startedAt,
		EndedAt:   o.endedAt,
		Hosts:     cloneHosts(o.inventory),
	}
	o.mu.Unlock()

	o.metrics.SessionFinished(string(StateCompleted), report.EndedAt.Sub(report.StartedAt))
	o.persist(report)

	logging.InfoSession("Scan session completed", id, "ranges", total, "hosts", len(report.Hosts))
	o.addEvent(discovery.SeveritySuccess, fmt.Sprintf("Scan completed: %d hosts across %d ranges", len(report.Hosts), total))
}

func (o *Orchestrator) persist(report Report) {
	for _, sink := range o.opts.Sinks {
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.SinkTimeout)
		err := sink.Save(ctx, report)
		cancel()

		o.metrics.IncrementSinkWrites(sink.Name(), err == nil)
		if err != nil {
			logging.ErrorSession("Failed to save scan results", report.SessionID, err, "sink", sink.Name())
			o.addEvent(discovery.SeverityError, fmt.Sprintf("Saving results to %s failed: %v", sink.Name(), err))
		}
	}
}

// addEvent appends to the log and notifies subscribers. It is safe for
// concurrent use and matches discovery.Reporter.
func (o *Orchestrator) addEvent(severity discovery.Severity, message string) {
	o.mu.Lock()
	o.sequence++
	e := Event{
		Sequence:  o.sequence,
		SessionID: o.id,
		Time:      o.opts.Clock(),
		Severity:  severity,
		Message:   message,
	}
	o.events.add(e)
	o.mu.Unlock()

	o.subMu.RLock()
	subs := make([]func(Event), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		subs = append(subs, fn)
	}
	o.subMu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

func cloneHosts(hosts []discovery.HostRecord) []discovery.HostRecord {
	out := make([]discovery.HostRecord, len(hosts))
	for i := range hosts {
		out[i] = hosts[i].Clone()
	}
	return out
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
