package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// SyncJobStatus represents the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
	SyncJobStatusSkipped SyncJobStatus = "SKIPPED"
)

// SyncTrigger names what enqueued a job
type SyncTrigger string

const (
	SyncTriggerInterval SyncTrigger = "interval"
	SyncTriggerManual   SyncTrigger = "manual"
)

// SyncJob is one queued multi-kind run
type SyncJob struct {
	ID          uuid.UUID        `json:"id"`
	Kinds       []reconcile.Kind `json:"kinds,omitempty"`
	Trigger     SyncTrigger      `json:"trigger"`
	Status      SyncJobStatus    `json:"status"`
	Error       string           `json:"error,omitempty"`
	RunID       string           `json:"run_id,omitempty"`
	QueuedAt    time.Time        `json:"queued_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	RetryCount  int              `json:"retry_count"`
	MaxRetries  int              `json:"max_retries"`
	NextRetryAt *time.Time       `json:"next_retry_at,omitempty"`

	// Sync results summed over kinds
	Created    int  `json:"created"`
	Updated    int  `json:"updated"`
	Processed  int  `json:"processed"`
	Skipped    int  `json:"skipped"`
	Truncated  bool `json:"truncated"`
	KindErrors int  `json:"kind_errors"`
}

// NewSyncJob creates a pending job; no kinds means every kind
func NewSyncJob(trigger SyncTrigger, kinds []reconcile.Kind, maxRetries int) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		Kinds:      kinds,
		Trigger:    trigger,
		Status:     SyncJobStatusPending,
		QueuedAt:   time.Now(),
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the summed counters. Skipped records, truncated fetches
// and per-kind errors make the job partial.
func (j *SyncJob) Complete(totals reconcile.Result, kindErrors int) {
	now := time.Now()
	j.Created = totals.Created
	j.Updated = totals.Updated
	j.Processed = totals.Processed
	j.Skipped = totals.Skipped
	j.Truncated = totals.Truncated
	j.KindErrors = kindErrors
	j.CompletedAt = &now

	if totals.Skipped == 0 && !totals.Truncated && kindErrors == 0 {
		j.Status = SyncJobStatusSuccess
	} else {
		j.Status = SyncJobStatusPartial
	}
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// Skip marks a job that never ran
func (j *SyncJob) Skip(reason string) {
	now := time.Now()
	j.Status = SyncJobStatusSkipped
	j.CompletedAt = &now
	j.Error = reason
}

// ShouldRetry returns true if the job should be retried
func (j *SyncJob) ShouldRetry() bool {
	return j.Status == SyncJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff and
// returns the delay
func (j *SyncJob) ScheduleRetry(baseDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = SyncJobStatusPending
	// Exponential backoff: baseDelay * 2^(retryCount-1)
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute // Cap at 30 minutes
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
	return delay
}

// ---------------------------------------------------------------------------
// SyncExecutor Interface
// ---------------------------------------------------------------------------

// SyncExecutor executes sync jobs. Implementations fill the job counters
// and wrap ErrJobSkipped or ErrJobPermanent to steer retries.
type SyncExecutor interface {
	Execute(ctx context.Context, job *SyncJob) error
}

// SyncExecutorFunc adapts a function to SyncExecutor
type SyncExecutorFunc func(ctx context.Context, job *SyncJob) error

// Execute calls f
func (f SyncExecutorFunc) Execute(ctx context.Context, job *SyncJob) error {
	return f(ctx, job)
}

// ---------------------------------------------------------------------------
// SyncSchedulerConfig
// ---------------------------------------------------------------------------

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// Interval between interval-triggered runs; zero disables the ticker
	Interval time.Duration
	// Kinds run by the ticker; empty means every kind
	Kinds []reconcile.Kind
	// RunOnStart enqueues one run as soon as the scheduler starts
	RunOnStart bool
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// QueueSize bounds the pending jobs
	QueueSize int
	// MaxHistory bounds the finished jobs kept for inspection
	MaxHistory int
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Interval:      time.Hour,
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    time.Minute,
		QueueSize:     8,
		MaxHistory:    50,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Interval < 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts > 0 && c.RetryDelay <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 || c.MaxHistory <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler runs sync jobs one at a time from a queue fed by an
// interval ticker and by manual submissions
type SyncScheduler struct {
	config   SyncSchedulerConfig
	executor SyncExecutor
	logger   *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	retries   map[uuid.UUID]*time.Timer

	// Job history for monitoring (in-memory, limited size)
	historyMu sync.RWMutex
	history   []*SyncJob
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, executor SyncExecutor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger.Named("scheduler"),
		jobs:     make(chan *SyncJob, config.QueueSize),
		retries:  make(map[uuid.UUID]*time.Timer),
		history:  make([]*SyncJob, 0, config.MaxHistory),
	}, nil
}

// Start starts the worker and, when an interval is set, the ticker
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.worker(ctx)

	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.tick(ctx)
	}

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	if s.config.RunOnStart {
		if _, err := s.Schedule(SyncTriggerInterval, s.config.Kinds...); err != nil {
			s.logger.Warn("Failed to enqueue initial sync job", zap.Error(err))
		}
	}
	return nil
}

// Stop gracefully stops the scheduler; the running job is cancelled
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for id, timer := range s.retries {
		timer.Stop()
		delete(s.retries, id)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Schedule enqueues a job for the given kinds and returns a snapshot of it
// as queued; the worker owns the job itself from then on
func (s *SyncScheduler) Schedule(trigger SyncTrigger, kinds ...reconcile.Kind) (SyncJob, error) {
	job := NewSyncJob(trigger, kinds, s.config.RetryAttempts)
	snapshot := *job
	if err := s.SubmitJob(job); err != nil {
		return SyncJob{}, err
	}
	return snapshot, nil
}

// SubmitJob submits a job for execution
func (s *SyncScheduler) SubmitJob(job *SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", string(job.Trigger)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// tick enqueues an interval job every period. A full queue means runs are
// already backed up, so the tick is dropped.
func (s *SyncScheduler) tick(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Schedule(SyncTriggerInterval, s.config.Kinds...); err != nil {
				s.logger.Warn("Interval sync job dropped", zap.Error(err))
			}
		}
	}
}

// worker processes jobs from the queue
func (s *SyncScheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job)
		}
	}
}

// processJob executes a single job
func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob) {
	job.Start()
	log := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", string(job.Trigger)),
		zap.Int("retry_count", job.RetryCount),
	)
	log.Info("Processing sync job")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	err := s.executor.Execute(jobCtx, job)
	switch {
	case err == nil:
		log.Info("Sync job completed",
			zap.String("status", string(job.Status)),
			zap.String("run_id", job.RunID),
			zap.Int("created", job.Created),
			zap.Int("updated", job.Updated),
			zap.Int("processed", job.Processed),
			zap.Int("skipped", job.Skipped),
		)
	case errors.Is(err, ErrJobSkipped):
		job.Skip(err.Error())
		log.Info("Sync job skipped", zap.Error(err))
	default:
		job.Fail(err.Error())
		log.Error("Sync job failed", zap.Error(err))
		if !errors.Is(err, ErrJobPermanent) && ctx.Err() == nil && job.ShouldRetry() {
			s.retryLater(job)
			return
		}
	}

	s.addToHistory(job)
}

// retryLater resubmits the job once its backoff elapses
func (s *SyncScheduler) retryLater(job *SyncJob) {
	delay := job.ScheduleRetry(s.config.RetryDelay)
	s.logger.Info("Sync job scheduled for retry",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Time("next_retry_at", *job.NextRetryAt),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[job.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.retries, job.ID)
		s.mu.Unlock()
		if err := s.SubmitJob(job); err != nil {
			job.Fail(err.Error())
			s.addToHistory(job)
		}
	})
}

// addToHistory adds a finished job to history
func (s *SyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	// Add to front
	s.history = append([]*SyncJob{job}, s.history...)

	// Trim if over limit
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// GetJobHistory returns finished jobs, newest first
func (s *SyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}
