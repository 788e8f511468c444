package scheduler

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/errors"
)

type fakeStarter struct {
	mu     sync.Mutex
	calls  [][]string
	err    error
	panics bool
}

func (f *fakeStarter) Start(ranges []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	f.calls = append(f.calls, ranges)
	if f.err != nil {
		return "", f.err
	}
	return "session-1", nil
}

func (f *fakeStarter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLister struct {
	networks []string
	err      error
}

func (f fakeLister) List() ([]string, error) {
	return f.networks, f.err
}

func TestAddValidation(t *testing.T) {
	s := NewScheduler(&fakeStarter{}, nil)

	assert.Error(t, s.Add("", "@hourly", nil))
	assert.Error(t, s.Add("bad-cron", "every tuesday", nil))
	assert.Error(t, s.Add("bad-network", "@hourly", []string{"999.0.0.0/8"}))

	require.NoError(t, s.Add("hourly", "@hourly", []string{"10.0.0.0/24"}))
	err := s.Add("hourly", "@daily", nil)
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
}

func TestAddEntries(t *testing.T) {
	s := NewScheduler(&fakeStarter{}, nil)

	err := s.AddEntries([]config.ScheduleEntry{
		{Name: "nightly", Cron: "0 2 * * *", Networks: []string{"192.168.1.0/24"}},
		{Name: "hourly", Cron: "@hourly"},
	})

	require.NoError(t, err)
	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "hourly", jobs[0].Name)
	assert.Equal(t, "nightly", jobs[1].Name)
	assert.Equal(t, []string{"192.168.1.0/24"}, jobs[1].Networks)
	assert.False(t, jobs[1].NextRun.IsZero())
}

func TestRunNowExplicitNetworks(t *testing.T) {
	starter := &fakeStarter{}
	s := NewScheduler(starter, fakeLister{networks: []string{"172.16.0.0/24"}})
	require.NoError(t, s.Add("lab", "@daily", []string{"10.0.0.0/28"}))

	id, err := s.RunNow("lab")

	require.NoError(t, err)
	assert.Equal(t, "session-1", id)
	assert.Equal(t, [][]string{{"10.0.0.0/28"}}, starter.calls)

	jobs := s.Jobs()
	assert.Equal(t, "session-1", jobs[0].LastSessionID)
	assert.False(t, jobs[0].LastRun.IsZero())
	assert.Empty(t, jobs[0].LastError)
}

func TestRunNowStoredNetworks(t *testing.T) {
	starter := &fakeStarter{}
	s := NewScheduler(starter, fakeLister{networks: []string{"192.168.1.0/24", "10.0.0.0/24"}})
	require.NoError(t, s.Add("all", "@daily", nil))

	_, err := s.RunNow("all")

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"192.168.1.0/24", "10.0.0.0/24"}}, starter.calls)
}

func TestRunNowListError(t *testing.T) {
	starter := &fakeStarter{}
	s := NewScheduler(starter, fakeLister{err: stderrors.New("disk gone")})
	require.NoError(t, s.Add("all", "@daily", nil))

	_, err := s.RunNow("all")

	require.Error(t, err)
	assert.Equal(t, 0, starter.callCount())
	assert.Equal(t, "disk gone", s.Jobs()[0].LastError)
}

func TestRunNowNoNetworkSource(t *testing.T) {
	s := NewScheduler(&fakeStarter{}, nil)
	require.NoError(t, s.Add("all", "@daily", nil))

	_, err := s.RunNow("all")
	assert.True(t, errors.IsCode(err, errors.CodeEmptyInput))
}

func TestRunNowAlreadyRunning(t *testing.T) {
	starter := &fakeStarter{err: errors.NewSessionError(errors.CodeAlreadyRunning, "busy")}
	s := NewScheduler(starter, nil)
	require.NoError(t, s.Add("lab", "@daily", []string{"10.0.0.0/28"}))

	_, err := s.RunNow("lab")

	assert.True(t, errors.IsCode(err, errors.CodeAlreadyRunning))
	assert.Contains(t, s.Jobs()[0].LastError, "busy")
}

func TestRunNowUnknown(t *testing.T) {
	s := NewScheduler(&fakeStarter{}, nil)
	_, err := s.RunNow("ghost")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestTickRecoversPanic(t *testing.T) {
	s := NewScheduler(&fakeStarter{panics: true}, nil)
	require.NoError(t, s.Add("lab", "@daily", []string{"10.0.0.0/28"}))

	assert.NotPanics(t, func() { s.tick("lab") })
}

func TestRemove(t *testing.T) {
	s := NewScheduler(&fakeStarter{}, nil)
	require.NoError(t, s.Add("lab", "@daily", nil))

	assert.True(t, s.Remove("lab"))
	assert.False(t, s.Remove("lab"))
	assert.Empty(t, s.Jobs())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&fakeStarter{}, nil)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	s.Stop()
	s.Stop()
	require.NoError(t, s.Start())
	s.Stop()
}

func TestCronFires(t *testing.T) {
	starter := &fakeStarter{}
	s := NewScheduler(starter, nil)
	require.NoError(t, s.Add("fast", "@every 1s", []string{"10.0.0.0/30"}))

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return starter.callCount() > 0 }, 3*time.Second, 50*time.Millisecond)
}
