package run

import (
	"context"
	"time"

	"github.com/xraph/beacon/id"
)

// Store defines the persistence contract for runs and step logs.
//
// UpdateRunProgress and FinishRun only apply while the stored run is still
// started; otherwise they return ErrRunNotActive and change nothing. This
// is what keeps an operator's cancel from being overwritten by a run that
// was mid-step when it landed.
type Store interface {
	CreateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, runID id.ID) (*Run, error)
	ListRuns(ctx context.Context, opts ListOpts) ([]*Run, error)

	// UpdateRunProgress stores the next step index and the variables,
	// stamping the run as updated at at.
	UpdateRunProgress(ctx context.Context, runID id.ID, currentStep int, vars map[string]any, at time.Time) error

	// FinishRun moves a started run to a terminal status.
	FinishRun(ctx context.Context, runID id.ID, status Status, errMsg string, at time.Time) error

	// CreateStepLog appends a step log entry.
	CreateStepLog(ctx context.Context, l *StepLog) error

	// ListStepLogs returns a run's step logs in execution order.
	ListStepLogs(ctx context.Context, runID id.ID) ([]*StepLog, error)
}
