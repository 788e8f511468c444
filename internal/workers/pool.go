// Package workers provides a bounded worker pool used by lanscan to run
// per-host enrichment concurrently. It supports job queuing, retries, rate
// limiting, panic isolation, graceful shutdown, and reports through the
// structured logging and metrics packages.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/metrics"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for metrics and logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the maximum number of jobs that can be queued.
	QueueSize int
	// MaxRetries is the maximum number of retries for failed jobs.
	MaxRetries int
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration
	// ShutdownTimeout is the maximum time to wait for workers to finish.
	ShutdownTimeout time.Duration
	// RateLimit is the maximum number of jobs started per second (0 = no limit).
	RateLimit float64
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            10,
		QueueSize:       100,
		MaxRetries:      0,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       0,
	}
}

// Pool manages a pool of worker goroutines for concurrent job execution.
type Pool struct {
	config   Config
	jobs     chan Job
	results  chan Result
	workers  []*worker
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	limiter  *rate.Limiter
	metrics  *metrics.PrometheusMetrics
	submitMu sync.RWMutex
	started  sync.Once
	closed   atomic.Bool
}

// worker represents a single worker goroutine.
type worker struct {
	id   int
	pool *Pool
}

// New creates a new worker pool with the given configuration.
func New(config Config) *Pool {
	return newPool(context.Background(), config)
}

func newPool(parent context.Context, config Config) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	ctx, cancel := context.WithCancel(parent)

	pool := &Pool{
		config:  config,
		jobs:    make(chan Job, config.QueueSize),
		results: make(chan Result, config.QueueSize),
		workers: make([]*worker, config.Size),
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics.GetGlobalMetrics(),
	}

	if config.RateLimit > 0 {
		pool.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	for i := 0; i < config.Size; i++ {
		pool.workers[i] = &worker{id: i, pool: pool}
	}

	return pool
}

// Start begins the worker pool operations. Calling it more than once is a no-op.
func (p *Pool) Start() {
	p.started.Do(func() {
		logging.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize,
			"rate_limit", p.config.RateLimit)

		for _, w := range p.workers {
			p.wg.Add(1)
			go w.run()
		}
	})
}

// Submit adds a job to the worker pool queue without blocking.
func (p *Pool) Submit(job Job) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		logging.Debug("Job submitted to worker pool",
			"job_id", job.ID(),
			"job_type", job.Type())
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		return fmt.Errorf("job queue is full")
	}
}

// Results returns a channel for receiving job results. The channel is
// closed by Shutdown.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown stops accepting jobs, waits for queued jobs to drain up to the
// configured timeout, and then cancels whatever is still running.
func (p *Pool) Shutdown() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	logging.Debug("Shutting down worker pool")

	p.submitMu.Lock()
	close(p.jobs)
	p.submitMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout := p.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}

	select {
	case <-done:
	case <-time.After(timeout):
		logging.Warn("Worker pool shutdown timeout, canceling running jobs")
		p.cancel()
		<-done
	}

	p.cancel()
	close(p.results)
	return nil
}

func (w *worker) run() {
	defer w.pool.wg.Done()

	for {
		select {
		case job, ok := <-w.pool.jobs:
			if !ok {
				return
			}
			w.executeJob(job)
		case <-w.pool.ctx.Done():
			return
		}
	}
}

// executeJob executes a single job with retry logic.
func (w *worker) executeJob(job Job) {
	if w.pool.limiter != nil {
		if err := w.pool.limiter.Wait(w.pool.ctx); err != nil {
			return
		}
	}

	start := time.Now()
	var lastErr error
	retries := 0

	for attempt := 0; attempt <= w.pool.config.MaxRetries; attempt++ {
		retries = attempt
		lastErr = w.safeExecute(job)
		if lastErr == nil {
			break
		}
		if w.pool.ctx.Err() != nil || attempt == w.pool.config.MaxRetries {
			break
		}

		logging.Debug("Job failed, retrying",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"attempt", attempt+1,
			"max_retries", w.pool.config.MaxRetries,
			"error", lastErr)

		select {
		case <-time.After(w.pool.config.RetryDelay):
		case <-w.pool.ctx.Done():
		}
	}

	duration := time.Since(start)
	w.pool.metrics.RecordJob(job.Type(), lastErr == nil, duration)

	if lastErr != nil {
		logging.Warn("Job failed",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"retries", retries,
			"error", lastErr,
			"worker_id", w.id)
	}

	result := Result{
		JobID:    job.ID(),
		JobType:  job.Type(),
		Error:    lastErr,
		Duration: duration,
		Retries:  retries,
	}

	select {
	case w.pool.results <- result:
	case <-w.pool.ctx.Done():
	}
}

// safeExecute runs one attempt and converts a panic into an error so a
// misbehaving job cannot take down the worker.
func (w *worker) safeExecute(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Job panicked",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"panic", r,
				"worker_id", w.id)
			err = fmt.Errorf("job %s panicked: %v", job.ID(), r)
		}
	}()
	return job.Execute(w.pool.ctx)
}

// Run executes jobs on a temporary pool with at most size concurrent workers
// and returns their results in submission order. Job IDs must be unique.
// If ctx ends first, results for jobs that did not report carry ctx.Err().
func Run(ctx context.Context, size int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	cfg := DefaultConfig()
	cfg.Size = min(max(size, 1), len(jobs))
	cfg.QueueSize = len(jobs)

	pool := newPool(ctx, cfg)
	pool.Start()

	index := make(map[string]int, len(jobs))
	results := make([]Result, len(jobs))
	reported := make([]bool, len(jobs))
	for i, job := range jobs {
		index[job.ID()] = i
		if err := pool.Submit(job); err != nil {
			results[i] = Result{JobID: job.ID(), JobType: job.Type(), Error: err}
			reported[i] = true
		}
	}

	pending := 0
	for _, ok := range reported {
		if !ok {
			pending++
		}
	}

collect:
	for pending > 0 {
		select {
		case r := <-pool.results:
			if i, ok := index[r.JobID]; ok && !reported[i] {
				results[i] = r
				reported[i] = true
				pending--
			}
		case <-ctx.Done():
			break collect
		}
	}

	for i, ok := range reported {
		if !ok {
			results[i] = Result{JobID: jobs[i].ID(), JobType: jobs[i].Type(), Error: ctx.Err()}
		}
	}

	_ = pool.Shutdown()
	return results
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	id      string
	jobType string
	fn      func(ctx context.Context) error
}

// NewFuncJob creates a job that runs fn.
func NewFuncJob(id, jobType string, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{id: id, jobType: jobType, fn: fn}
}

// Execute implements the Job interface.
func (j *FuncJob) Execute(ctx context.Context) error {
	return j.fn(ctx)
}

// ID implements the Job interface.
func (j *FuncJob) ID() string {
	return j.id
}

// Type implements the Job interface.
func (j *FuncJob) Type() string {
	return j.jobType
}
