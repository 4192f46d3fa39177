package bootstrap

import (
	"context"
	"errors"
	"fmt"

	reconcileapp "github.com/erp/ledgersync/internal/application/reconcile"
	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/config"
	"github.com/erp/ledgersync/internal/infrastructure/scheduler"
)

// RunAller runs several kinds in one run
type RunAller interface {
	SyncAll(ctx context.Context, kinds ...reconcile.Kind) (*reconcileapp.RunReport, error)
}

// SyncExecutor adapts a runner to the scheduler. A busy runner skips the
// job; configuration and authentication failures are not retried.
func SyncExecutor(runner RunAller) scheduler.SyncExecutorFunc {
	return func(ctx context.Context, job *scheduler.SyncJob) error {
		report, err := runner.SyncAll(ctx, job.Kinds...)
		switch {
		case errors.Is(err, reconcileapp.ErrRunInProgress):
			return fmt.Errorf("%w: %w", scheduler.ErrJobSkipped, err)
		case reconcile.IsFatal(err):
			return fmt.Errorf("%w: %w", scheduler.ErrJobPermanent, err)
		case err != nil:
			return err
		}

		job.RunID = report.RunID
		job.Complete(report.Totals(), len(report.Errors))
		return nil
	}
}

// SchedulerConfigFrom converts the scheduler settings section
func SchedulerConfigFrom(c config.SchedulerConfig) (scheduler.SyncSchedulerConfig, error) {
	cfg := scheduler.DefaultSyncSchedulerConfig()
	cfg.Interval = c.Interval
	cfg.RunOnStart = c.RunOnStart
	cfg.JobTimeout = c.JobTimeout
	cfg.RetryAttempts = c.RetryAttempts
	cfg.RetryDelay = c.RetryDelay

	for _, name := range c.Kinds {
		kind, err := reconcile.ParseKind(name)
		if err != nil {
			return cfg, fmt.Errorf("scheduler.kinds: %w", err)
		}
		cfg.Kinds = append(cfg.Kinds, kind)
	}
	return cfg, cfg.Validate()
}

// NewScheduler creates the background scheduler over the App runner. It
// is not started.
func (a *App) NewScheduler() (*scheduler.SyncScheduler, error) {
	cfg, err := SchedulerConfigFrom(a.Config.Scheduler)
	if err != nil {
		return nil, err
	}
	return scheduler.NewSyncScheduler(cfg, SyncExecutor(a.Runner), a.Logger)
}
