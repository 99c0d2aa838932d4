package action

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/workflow"
)

// Wait suspends the run for the configured duration on the injected clock.
// Other runs keep executing meanwhile.
type Wait struct{ deps Deps }

// Kind implements Action.
func (a *Wait) Kind() workflow.ActionKind { return workflow.ActionWait }

// Execute implements Action.
func (a *Wait) Execute(ctx context.Context, req *Request) (Result, error) {
	raw, _ := req.Step.Config["duration"].(string)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return Result{}, fmt.Errorf("duration: %w", err)
	}

	if err := Sleep(ctx, a.deps.Clock, d); err != nil {
		return Result{}, err
	}
	return Succeeded("waited "+d.String(), map[string]any{"waited": d.String()}), nil
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
