package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Submit when the in-memory queue has no room.
// The job stays pending in the store and is queued by a later pending scan.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("job runner stopped")

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	WorkerCount int
	QueueSize   int
	// StuckJobAge is how long a job may stay processing before it is reset.
	StuckJobAge time.Duration
	// StuckJobCheckInterval is how often stuck jobs are looked for and
	// pending jobs that missed the queue are queued again.
	StuckJobCheckInterval time.Duration
	// JobTimeout bounds one execution. Zero means no limit.
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns the production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           2,
		QueueSize:             100,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
		JobTimeout:            time.Minute,
	}
}

// Runner executes jobs on a fixed pool of workers.
type Runner struct {
	store    Store
	registry *Registry
	queue    chan Job
	config   RunnerConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	// tracked holds the ids of jobs that are queued or running. A pending
	// scan holds trackMu across its store read so a job finishing meanwhile
	// cannot be queued twice.
	trackMu sync.Mutex
	tracked map[uuid.UUID]struct{}

	errHandler func(job Job, err error)
}

// NewRunner creates a Runner. Call Start before submitting.
func NewRunner(store Store, registry *Registry, config RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}
	if config.StuckJobCheckInterval <= 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}
	if registry == nil {
		registry = NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := logger.With("component", "job_runner")
	return &Runner{
		store:    store,
		registry: registry,
		queue:    make(chan Job, config.QueueSize),
		config:   config,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
		tracked:  make(map[uuid.UUID]struct{}),
		errHandler: func(job Job, err error) {
			log.Error("job execution failed",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler replaces the handler called when a job fails.
func (r *Runner) SetErrorHandler(handler func(job Job, err error)) {
	r.errHandler = handler
}

// Registry returns the decoder registry used for recovery.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Submit persists job and queues it.
func (r *Runner) Submit(ctx context.Context, job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrStopped
	}

	if err := r.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	if !r.enqueue(job) {
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(r.queue))
	}
	return nil
}

// enqueue queues job unless it is already queued or running. It reports
// false only when the queue is full.
func (r *Runner) enqueue(job Job) bool {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	return r.enqueueLocked(job)
}

func (r *Runner) enqueueLocked(job Job) bool {
	if _, ok := r.tracked[job.ID()]; ok {
		return true
	}
	select {
	case r.queue <- job:
		r.tracked[job.ID()] = struct{}{}
		return true
	default:
		return false
	}
}

func (r *Runner) isTracked(id uuid.UUID) bool {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	_, ok := r.tracked[id]
	return ok
}

func (r *Runner) untrack(id uuid.UUID) {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	delete(r.tracked, id)
}

// Start recovers unfinished jobs and launches the workers.
func (r *Runner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	r.logger.Info("job runner started", "workers", r.config.WorkerCount, "queue_size", cap(r.queue))
	return nil
}

// Stop cancels in-flight work and waits for the workers to exit. Jobs still
// queued remain pending in the store.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

// Recover requeues pending jobs and resets jobs a crash left processing.
func (r *Runner) Recover(ctx context.Context) error {
	pending, err := r.store.PendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}
	processing, err := r.store.ProcessingJobs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range pending {
		r.requeue(ctx, rec, false)
	}
	for _, rec := range processing {
		r.requeue(ctx, rec, true)
	}
	return nil
}

func (r *Runner) requeue(ctx context.Context, rec Record, reset bool) {
	log := r.logger.With("job_id", rec.ID, "job_type", rec.Type)

	// A worker still holds it.
	if r.isTracked(rec.ID) {
		return
	}
	job, ok := r.decode(ctx, rec)
	if !ok {
		return
	}

	if reset {
		if err := r.store.UpdateJobStatus(ctx, rec.ID, StatusPending, "reset after recovery"); err != nil {
			log.Error("failed to reset processing job status", "error", err)
			return
		}
	}

	if !r.enqueue(job) {
		log.Warn("queue is full, job left pending for the next scan")
	}
}

// decode rebuilds rec, failing it in the store when no decoder accepts it.
func (r *Runner) decode(ctx context.Context, rec Record) (Job, bool) {
	job, err := r.registry.Decode(rec)
	if err != nil {
		log := r.logger.With("job_id", rec.ID, "job_type", rec.Type)
		log.Error("cannot rebuild stored job", "error", err)
		if uerr := r.store.UpdateJobStatus(ctx, rec.ID, StatusFailed, err.Error()); uerr != nil {
			log.Error("failed to mark job failed", "error", uerr)
		}
		return nil, false
	}
	return job, true
}

// requeuePending queues pending jobs that are neither queued nor running,
// such as those rejected by a full queue. It stops at the first job that
// does not fit.
func (r *Runner) requeuePending(ctx context.Context) {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()

	pending, err := r.store.PendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to scan pending jobs", "error", err)
		return
	}

	var queued int
	for _, rec := range pending {
		if _, ok := r.tracked[rec.ID]; ok {
			continue
		}
		job, ok := r.decode(ctx, rec)
		if !ok {
			continue
		}
		if !r.enqueueLocked(job) {
			r.logger.Warn("queue is full, pending jobs left for the next scan",
				"queued", queued)
			return
		}
		queued++
	}
	if queued > 0 {
		r.logger.Info("queued pending jobs", "count", queued)
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		case job := <-r.queue:
			r.process(job, id)
		}
	}
}

func (r *Runner) process(job Job, workerID int) {
	// Runs after the final status write.
	defer r.untrack(job.ID())

	log := r.logger.With(
		"job_id", job.ID(),
		"job_type", job.Type(),
		"worker_id", workerID,
	)

	// Status writes use a context that survives Stop so a job cancelled
	// mid-flight is still recorded.
	statusCtx := context.WithoutCancel(r.ctx)

	if err := r.store.UpdateJobStatus(statusCtx, job.ID(), StatusProcessing, ""); err != nil {
		log.Error("failed to update job status to processing", "error", err)
		return
	}

	ctx := r.ctx
	if r.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.JobTimeout)
		defer cancel()
	}

	log.Info("processing job")
	err := r.execute(ctx, job)
	if err != nil {
		if uerr := r.store.UpdateJobStatus(statusCtx, job.ID(), StatusFailed, err.Error()); uerr != nil {
			log.Error("failed to update job status to failed", "error", uerr)
		}
		r.errHandler(job, err)
		return
	}

	log.Info("job completed successfully")
	if uerr := r.store.UpdateJobStatus(statusCtx, job.ID(), StatusCompleted, ""); uerr != nil {
		log.Error("failed to update job status to completed", "error", uerr)
	}
}

func (r *Runner) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return job.Execute(ctx)
}

func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.resetStuck(r.ctx)
			r.requeuePending(r.ctx)
		}
	}
}

// resetStuck returns jobs processing for longer than StuckJobAge to the
// queue, skipping any a worker here is still running.
func (r *Runner) resetStuck(ctx context.Context) {
	if r.config.StuckJobAge <= 0 {
		return
	}
	stuck, err := r.store.ProcessingJobs(ctx, r.config.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to check for stuck jobs", "error", err)
		return
	}
	if len(stuck) > 0 {
		r.logger.Info("found stuck jobs", "count", len(stuck))
	}
	for _, rec := range stuck {
		r.requeue(ctx, rec, true)
	}
}
