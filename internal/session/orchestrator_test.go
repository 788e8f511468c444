package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
)

type fakeScanner struct {
	mu      sync.Mutex
	hosts   map[string][]discovery.HostRecord
	panicOn string
	errOn   string
	reportN int
	gate    chan struct{}
	started chan string
	scanned []string
}

func (f *fakeScanner) ScanRange(ctx context.Context, cidr string, report discovery.Reporter) ([]discovery.HostRecord, error) {
	f.mu.Lock()
	f.scanned = append(f.scanned, cidr)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- cidr
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for i := 0; i < f.reportN; i++ {
		report(discovery.SeverityInfo, fmt.Sprintf("probe %d", i))
	}
	if cidr == f.panicOn {
		panic("scanner exploded")
	}
	if cidr == f.errOn {
		return nil, stderrors.New("scan failed")
	}
	return f.hosts[cidr], nil
}

func (f *fakeScanner) scannedRanges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.scanned...)
}

func hostsIn(prefix string, octets ...int) []discovery.HostRecord {
	var out []discovery.HostRecord
	for _, o := range octets {
		rec := discovery.NewHostRecord(fmt.Sprintf("%s.%d", prefix, o))
		rec.Vendor = "Dell"
		rec.OSGuess = "Linux (accuracy: 95%)"
		out = append(out, rec)
	}
	return out
}

func addresses(hosts []discovery.HostRecord) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = h.Address
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Save(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func testOptions(sinks ...Sink) Options {
	opts := DefaultOptions()
	opts.RangePause = 0
	opts.Sinks = sinks
	return opts
}

func hasEvent(events []Event, severity discovery.Severity, substr string) bool {
	for _, e := range events {
		if e.Severity == severity && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestInitialState(t *testing.T) {
	o := New(&fakeScanner{}, testOptions())
	snap := o.Status()

	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Active)
	assert.Nil(t, snap.StartedAt)
	assert.Nil(t, snap.EndedAt)
	assert.Empty(t, snap.Inventory)
	assert.False(t, o.Cancel())
	o.Wait()
}

func TestSessionCompletes(t *testing.T) {
	scanner := &fakeScanner{hosts: map[string][]discovery.HostRecord{
		"10.0.0.0/28": hostsIn("10.0.0", 10, 11, 12, 13, 14, 15),
		"10.0.1.0/30": hostsIn("10.0.1", 1),
	}}
	sink := &recordingSink{}
	o := New(scanner, testOptions(sink))

	id, err := o.Start([]string{"10.0.0.0/28", "10.0.1.0/30"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	o.Wait()

	snap := o.Status()
	assert.Equal(t, id, snap.SessionID)
	assert.Equal(t, StateCompleted, snap.State)
	assert.False(t, snap.Active)
	assert.Equal(t, 100, snap.ProgressPercent)
	assert.Equal(t, 7, snap.HostsFound)
	assert.Equal(t, []string{
		"10.0.0.10", "10.0.0.11", "10.0.0.12", "10.0.0.13", "10.0.0.14", "10.0.0.15", "10.0.1.1",
	}, addresses(snap.Inventory))
	for _, h := range snap.Inventory {
		assert.Equal(t, discovery.StatusOnline, h.Status)
	}
	require.NotNil(t, snap.StartedAt)
	require.NotNil(t, snap.EndedAt)
	assert.False(t, snap.EndedAt.Before(*snap.StartedAt))
	assert.Equal(t, []string{"10.0.0.0/28", "10.0.1.0/30"}, scanner.scannedRanges())

	assert.True(t, hasEvent(snap.Events, discovery.SeverityInfo, "Scan started"))
	assert.True(t, hasEvent(snap.Events, discovery.SeveritySuccess, "Scan completed"))

	require.Equal(t, 1, sink.count())
	report := sink.reports[0]
	assert.Equal(t, id, report.SessionID)
	assert.Len(t, report.Hosts, 7)
	assert.Equal(t, *snap.StartedAt, report.StartedAt)
	assert.Equal(t, *snap.EndedAt, report.EndedAt)
}

func TestStartRejections(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		o := New(&fakeScanner{}, testOptions())
		for _, input := range [][]string{nil, {}, {"", "  "}} {
			_, err := o.Start(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, &errors.SessionError{Code: errors.CodeEmptyInput})
		}
		assert.Equal(t, StateIdle, o.Status().State)
		assert.Empty(t, o.Events())
	})

	t.Run("invalid range rejects the whole batch", func(t *testing.T) {
		scanner := &fakeScanner{}
		o := New(scanner, testOptions())
		_, err := o.Start([]string{"10.0.0.0/24", "10.0.0.300/24"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
		assert.Contains(t, err.Error(), "10.0.0.300/24")
		assert.Equal(t, StateIdle, o.Status().State)
		assert.Empty(t, scanner.scannedRanges())
	})

	t.Run("already running", func(t *testing.T) {
		scanner := &fakeScanner{gate: make(chan struct{}), started: make(chan string, 4)}
		o := New(scanner, testOptions())

		id, err := o.Start([]string{"10.0.0.0/24"})
		require.NoError(t, err)
		<-scanner.started
		before := o.Status()

		_, err = o.Start([]string{"192.168.0.0/24"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeAlreadyRunning))

		after := o.Status()
		assert.Equal(t, id, after.SessionID)
		assert.Equal(t, before.Ranges, after.Ranges)
		assert.Equal(t, StateRunning, after.State)
		assert.True(t, after.Active)
		assert.Nil(t, after.EndedAt)

		close(scanner.gate)
		o.Wait()
		assert.Equal(t, StateCompleted, o.Status().State)
	})
}

func TestCancelAfterFirstRange(t *testing.T) {
	scanner := &fakeScanner{
		hosts: map[string][]discovery.HostRecord{
			"10.0.0.0/24": hostsIn("10.0.0", 1, 2),
			"10.0.1.0/24": hostsIn("10.0.1", 1),
			"10.0.2.0/24": hostsIn("10.0.2", 1),
		},
		gate:    make(chan struct{}),
		started: make(chan string, 4),
	}
	sink := &recordingSink{}
	o := New(scanner, testOptions(sink))

	_, err := o.Start([]string{"10.0.0.0/24", "10.0.1.0/24", "10.0.2.0/24"})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.0/24", <-scanner.started)
	assert.True(t, o.Cancel())
	assert.True(t, o.Cancel(), "repeated cancel is acknowledged")
	close(scanner.gate)
	o.Wait()

	snap := o.Status()
	assert.Equal(t, StateCancelled, snap.State)
	assert.False(t, snap.Active)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, addresses(snap.Inventory))
	assert.Equal(t, []string{"10.0.0.0/24"}, scanner.scannedRanges())
	assert.NotNil(t, snap.EndedAt)
	assert.Less(t, snap.ProgressPercent, 100)
	assert.True(t, hasEvent(snap.Events, discovery.SeverityWarning, "Scan cancelled after 1 of 3 ranges"))
	assert.Equal(t, 1, countEvents(snap.Events, "Cancellation requested"))

	assert.Equal(t, 0, sink.count(), "sinks only run for completed sessions")
	assert.False(t, o.Cancel())
}

func countEvents(events []Event, substr string) int {
	n := 0
	for _, e := range events {
		if strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

func TestProgressIsMonotonic(t *testing.T) {
	scanner := &fakeScanner{reportN: 3}
	o := New(scanner, testOptions())

	var mu sync.Mutex
	var seen []int
	unsubscribe := o.Subscribe(func(Event) {
		p := o.Status().ProgressPercent
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	defer unsubscribe()

	_, err := o.Start([]string{"10.0.0.0/30", "10.0.1.0/30", "10.0.2.0/30"})
	require.NoError(t, err)
	o.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Contains(t, seen, 33)
	assert.Contains(t, seen, 66)
	assert.Equal(t, 100, seen[len(seen)-1])
	assert.Equal(t, 100, o.Status().ProgressPercent)
}

func TestEventLogIsBounded(t *testing.T) {
	scanner := &fakeScanner{reportN: 150}
	o := New(scanner, testOptions())

	_, err := o.Start([]string{"10.0.0.0/24"})
	require.NoError(t, err)
	o.Wait()

	events := o.Events()
	require.Len(t, events, DefaultEventCapacity)
	assert.Contains(t, events[len(events)-1].Message, "Scan completed")
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Sequence+1, events[i].Sequence)
	}
	// start + range start + 150 probes + range summary + completion
	assert.Equal(t, uint64(154), events[len(events)-1].Sequence)
}

func TestEventRing(t *testing.T) {
	ring := newEventRing(3)
	for i := 1; i <= 4; i++ {
		ring.add(Event{Sequence: uint64(i)})
	}
	assert.Equal(t, 3, ring.len())
	list := ring.list()
	assert.Equal(t, []uint64{2, 3, 4}, []uint64{list[0].Sequence, list[1].Sequence, list[2].Sequence})

	assert.Equal(t, 0, newEventRing(0).len())
	assert.Len(t, newEventRing(0).buf, DefaultEventCapacity)
}

func TestStatusIsIdempotent(t *testing.T) {
	scanner := &fakeScanner{hosts: map[string][]discovery.HostRecord{"10.0.0.0/24": hostsIn("10.0.0", 5)}}
	o := New(scanner, testOptions())

	_, err := o.Start([]string{"10.0.0.0/24"})
	require.NoError(t, err)
	o.Wait()

	first := o.Status()
	second := o.Status()
	assert.Equal(t, first, second)

	// Snapshots are copies.
	first.Inventory[0].Address = "mutated"
	first.Events[0].Message = "mutated"
	assert.Equal(t, second, o.Status())
}

func TestRangePanicIsContained(t *testing.T) {
	scanner := &fakeScanner{
		hosts: map[string][]discovery.HostRecord{
			"10.0.0.0/24": hostsIn("10.0.0", 1),
			"10.0.2.0/24": hostsIn("10.0.2", 1),
		},
		panicOn: "10.0.1.0/24",
		errOn:   "10.0.3.0/24",
	}
	o := New(scanner, testOptions())

	_, err := o.Start([]string{"10.0.0.0/24", "10.0.1.0/24", "10.0.2.0/24", "10.0.3.0/24"})
	require.NoError(t, err)
	o.Wait()

	snap := o.Status()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, []string{"10.0.0.1", "10.0.2.1"}, addresses(snap.Inventory))
	assert.True(t, hasEvent(snap.Events, discovery.SeverityError, "10.0.1.0/24 failed unexpectedly"))
	assert.True(t, hasEvent(snap.Events, discovery.SeverityError, "Scanning 10.0.3.0/24 failed"))
}

func TestSinkFailureKeepsCompletedState(t *testing.T) {
	failing := &recordingSink{err: stderrors.New("disk full")}
	ok := &recordingSink{}
	o := New(&fakeScanner{}, testOptions(failing, ok))

	_, err := o.Start([]string{"10.0.0.0/30"})
	require.NoError(t, err)
	o.Wait()

	snap := o.Status()
	assert.Equal(t, StateCompleted, snap.State)
	assert.True(t, hasEvent(snap.Events, discovery.SeverityError, "disk full"))
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
}

func TestRestartResetsSession(t *testing.T) {
	scanner := &fakeScanner{hosts: map[string][]discovery.HostRecord{
		"10.0.0.0/24": hostsIn("10.0.0", 1, 2),
		"10.0.9.0/24": hostsIn("10.0.9", 9),
	}}
	o := New(scanner, testOptions())

	firstID, err := o.Start([]string{"10.0.0.0/24"})
	require.NoError(t, err)
	o.Wait()

	secondID, err := o.Start([]string{"10.0.9.0/24"})
	require.NoError(t, err)
	o.Wait()

	snap := o.Status()
	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, []string{"10.0.9.9"}, addresses(snap.Inventory))
	assert.Equal(t, []string{"10.0.9.0/24"}, snap.Ranges)
	for _, e := range snap.Events {
		assert.Equal(t, secondID, e.SessionID)
	}
}

func TestRangePauseInterruptedByCancel(t *testing.T) {
	scanner := &fakeScanner{started: make(chan string, 4)}
	opts := testOptions()
	opts.RangePause = time.Minute
	o := New(scanner, opts)

	_, err := o.Start([]string{"10.0.0.0/24", "10.0.1.0/24"})
	require.NoError(t, err)
	<-scanner.started

	start := time.Now()
	o.Cancel()
	o.Wait()
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateCancelled, o.Status().State)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	o := New(&fakeScanner{}, testOptions())

	var mu sync.Mutex
	var got []Event
	unsubscribe := o.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	_, err := o.Start([]string{"10.0.0.0/30"})
	require.NoError(t, err)
	o.Wait()

	mu.Lock()
	n := len(got)
	mu.Unlock()
	assert.Equal(t, len(o.Events()), n)

	unsubscribe()
	unsubscribe()

	_, err = o.Start([]string{"10.0.0.0/30"})
	require.NoError(t, err)
	o.Wait()

	mu.Lock()
	assert.Equal(t, n, len(got))
	mu.Unlock()
}

func TestStats(t *testing.T) {
	hosts := hostsIn("10.0.0", 1, 2)
	other := discovery.NewHostRecord("10.0.0.3")
	other.OpenPorts = []discovery.Port{{Port: 22, Protocol: "tcp", State: "open", Service: "ssh"}}
	scanner := &fakeScanner{hosts: map[string][]discovery.HostRecord{"10.0.0.0/24": append(hosts, other)}}
	o := New(scanner, testOptions())

	assert.Nil(t, o.Stats().LastScan)

	_, err := o.Start([]string{"10.0.0.0/24"})
	require.NoError(t, err)
	o.Wait()

	stats := o.Stats()
	assert.Equal(t, 3, stats.TotalHosts)
	assert.Equal(t, 1, stats.OpenPorts)
	assert.Equal(t, map[string]int{"Dell": 2, "Unknown": 1}, stats.Vendors)
	assert.Equal(t, map[string]int{"Linux (accuracy: 95%)": 2, "Unknown": 1}, stats.OSDistribution)
	assert.NotNil(t, stats.LastScan)
}

func TestMultiSink(t *testing.T) {
	a := &recordingSink{err: stderrors.New("a broke")}
	b := &recordingSink{}
	called := false
	c := SinkFunc{SinkName: "func", Fn: func(context.Context, Report) error {
		called = true
		return nil
	}}

	err := MultiSink{a, b, c}.Save(context.Background(), Report{SessionID: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording: a broke")
	assert.Equal(t, 1, b.count())
	assert.True(t, called)
	assert.Equal(t, "multi", MultiSink{}.Name())
	assert.NoError(t, MultiSink{b}.Save(context.Background(), Report{}))
}

func TestCloseAbortsRun(t *testing.T) {
	scanner := &fakeScanner{gate: make(chan struct{}), started: make(chan string, 4)}
	o := New(scanner, testOptions())

	_, err := o.Start([]string{"10.0.0.0/24", "10.0.1.0/24"})
	require.NoError(t, err)
	<-scanner.started

	o.Close()
	assert.Equal(t, StateCancelled, o.Status().State)
	assert.Equal(t, []string{"10.0.0.0/24"}, scanner.scannedRanges())
}
