// Package scheduler starts scan sessions on cron schedules. Each tick asks
// the session orchestrator to start; a tick that finds a session already
// running is skipped rather than queued.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/logging"
)

// SessionStarter begins a scan session. It is satisfied by
// *session.Orchestrator.
type SessionStarter interface {
	Start(ranges []string) (string, error)
}

// NetworkLister supplies the stored network list for entries without
// explicit networks. It is satisfied by *services.NetworkService.
type NetworkLister interface {
	List() ([]string, error)
}

// Job describes one scheduled entry.
type Job struct {
	Name          string    `json:"name"`
	Cron          string    `json:"cron"`
	Networks      []string  `json:"networks"`
	NextRun       time.Time `json:"next_run"`
	LastRun       time.Time `json:"last_run"`
	LastSessionID string    `json:"last_session_id,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

type scheduledJob struct {
	Job
	cronID cron.EntryID
}

// Scheduler manages recurring scan sessions.
type Scheduler struct {
	cron     *cron.Cron
	starter  SessionStarter
	networks NetworkLister
	jobs     map[string]*scheduledJob
	mu       sync.RWMutex
	running  bool
	now      func() time.Time
}

// NewScheduler creates a scheduler. networks may be nil when every entry
// names its own networks.
func NewScheduler(starter SessionStarter, networks NetworkLister) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		starter:  starter,
		networks: networks,
		jobs:     make(map[string]*scheduledJob),
		now:      time.Now,
	}
}

// AddEntries adds every configured entry.
func (s *Scheduler) AddEntries(entries []config.ScheduleEntry) error {
	for _, e := range entries {
		if err := s.Add(e.Name, e.Cron, e.Networks); err != nil {
			return err
		}
	}
	return nil
}

// Add registers a recurring session. cronExpr uses the standard five field
// format or a descriptor such as @hourly or @every 30m.
func (s *Scheduler) Add(name, cronExpr string, networks []string) error {
	if name == "" {
		return errors.NewSessionError(errors.CodeValidation, "schedule name is required")
	}
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	for _, n := range networks {
		if err := discovery.ValidateRange(n); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return errors.NewSessionError(errors.CodeConflict, fmt.Sprintf("schedule %q already exists", name))
	}

	job := &scheduledJob{Job: Job{
		Name:     name,
		Cron:     cronExpr,
		Networks: append([]string(nil), networks...),
		NextRun:  schedule.Next(s.now()),
	}}
	job.cronID = s.cron.Schedule(schedule, cron.FuncJob(func() { s.tick(name) }))
	s.jobs[name] = job

	logging.Info("Added scheduled scan", "component", "scheduler", "name", name, "cron", cronExpr)
	return nil
}

// Remove unregisters a schedule. It reports whether it existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(job.cronID)
	delete(s.jobs, name)

	logging.Info("Removed scheduled scan", "component", "scheduler", "name", name)
	return true
}

// Start begins firing schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	logging.Info("Scheduler started", "component", "scheduler", "jobs", len(s.jobs))
	return nil
}

// Stop halts the scheduler. Sessions already started keep running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	logging.Info("Scheduler stopped", "component", "scheduler")
}

// Jobs returns the registered schedules sorted by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		job := j.Job
		job.Networks = append([]string(nil), j.Networks...)
		if s.running {
			if entry := s.cron.Entry(j.cronID); entry.Valid() {
				job.NextRun = entry.Next
			}
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
	return jobs
}

// tick runs a schedule from the cron goroutine. Panics are logged so one
// broken run never stops the scheduler.
func (s *Scheduler) tick(name string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Scheduled scan panicked", "component", "scheduler", "name", name, "panic", r)
		}
	}()
	_, _ = s.RunNow(name)
}

// RunNow triggers a schedule immediately, exactly as a cron tick would.
func (s *Scheduler) RunNow(name string) (string, error) {
	s.mu.RLock()
	job, ok := s.jobs[name]
	var networks []string
	if ok {
		networks = append([]string(nil), job.Networks...)
	}
	s.mu.RUnlock()
	if !ok {
		return "", errors.NewSessionError(errors.CodeNotFound, fmt.Sprintf("schedule %q not found", name))
	}

	sessionID, err := s.trigger(name, networks)

	s.mu.Lock()
	if job, ok := s.jobs[name]; ok {
		job.LastRun = s.now()
		job.LastSessionID = sessionID
		job.LastError = ""
		if err != nil {
			job.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	return sessionID, err
}

func (s *Scheduler) trigger(name string, networks []string) (string, error) {
	logger := logging.Default().WithComponent("scheduler").WithFields("name", name)
	if len(networks) == 0 {
		if s.networks == nil {
			return "", errors.NewSessionError(errors.CodeEmptyInput, "no networks configured")
		}
		stored, err := s.networks.List()
		if err != nil {
			logger.WithError(err).Error("Scheduled scan failed to load networks")
			return "", err
		}
		networks = stored
	}

	sessionID, err := s.starter.Start(networks)
	switch {
	case err == nil:
		logger.WithSessionID(sessionID).Info("Scheduled scan started", "networks", len(networks))
	case errors.IsCode(err, errors.CodeAlreadyRunning):
		logger.Info("Skipping scheduled scan, a session is already running")
	default:
		logger.WithError(err).Warn("Scheduled scan not started")
	}
	return sessionID, err
}
