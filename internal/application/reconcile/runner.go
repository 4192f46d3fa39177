package reconcileapp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/erp/ledgersync/internal/domain/reconcile"
)

// ErrRunInProgress is returned when a run is requested while another holds
// the runner
var ErrRunInProgress = errors.New("reconcile: run already in progress")

// Runner serializes runs of a Service. Callers that find it busy get
// ErrRunInProgress instead of queueing.
type Runner struct {
	svc     *Service
	mu      sync.Mutex
	running atomic.Bool
	lastRun atomic.Pointer[RunReport]
}

// RunnerStatus is a point-in-time view of a Runner
type RunnerStatus struct {
	Running bool
	LastRun *RunReport // nil until a multi-kind run finishes
}

// NewRunner wraps a service
func NewRunner(svc *Service) *Runner {
	return &Runner{svc: svc}
}

// Kinds returns every synchronizable kind in run order
func (r *Runner) Kinds() []reconcile.Kind {
	return r.svc.Kinds()
}

// TestConnection does not take the run lock
func (r *Runner) TestConnection(ctx context.Context) error {
	return r.svc.TestConnection(ctx)
}

// Sync runs one kind if no other run is active
func (r *Runner) Sync(ctx context.Context, kind reconcile.Kind) (*reconcile.Result, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()
	r.running.Store(true)
	defer r.running.Store(false)
	return r.svc.Sync(ctx, kind)
}

// SyncAll runs the given kinds, or all of them, if no other run is active
func (r *Runner) SyncAll(ctx context.Context, kinds ...reconcile.Kind) (*RunReport, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()
	r.running.Store(true)
	defer r.running.Store(false)

	report, err := r.svc.SyncAll(ctx, kinds...)
	if report != nil {
		r.lastRun.Store(report)
	}
	return report, err
}

// Status reports whether a run is active and the last finished run
func (r *Runner) Status() RunnerStatus {
	return RunnerStatus{
		Running: r.running.Load(),
		LastRun: r.lastRun.Load(),
	}
}
