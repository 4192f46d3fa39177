package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobSkipped is wrapped by executors when the run could not start,
	// for example because another run holds the ledger
	ErrJobSkipped = errors.New("sync job skipped")

	// ErrJobPermanent is wrapped by executors for failures a retry cannot fix
	ErrJobPermanent = errors.New("sync job failed permanently")
)
