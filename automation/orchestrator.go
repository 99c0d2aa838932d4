// Package automation drives workflow runs. The Orchestrator starts runs for
// subjects matching a workflow's audience and executes their steps in order,
// one goroutine per run.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/action"
	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// Variables the orchestrator writes into a run.
const (
	VarBranch = "branch"
	VarSteps  = "steps"
	VarEvent  = "event"
)

// Config holds orchestrator configuration.
type Config struct {
	// Concurrency bounds the runs executing at once.
	Concurrency int

	Metrics *observability.Metrics
}

// TriggerInput starts a run.
type TriggerInput struct {
	WorkflowID id.ID
	SubjectID  id.ID
	Variables  map[string]any
	Source     run.Source
	EventID    id.ID
}

// TriggerResult reports whether a run started. A subject outside the
// workflow's audience is not an error: Matched is false and Run is nil.
type TriggerResult struct {
	Run     *run.Run `json:"run,omitempty"`
	Matched bool     `json:"matched"`
	Reason  string   `json:"reason,omitempty"`
}

// Orchestrator starts and drives workflow runs.
type Orchestrator struct {
	workflows workflow.Store
	runs      run.Store
	subjects  subject.Store
	executor  *action.Executor
	evaluator *condition.Evaluator
	clock     clockwork.Clock
	config    Config
	logger    *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	inflight map[string]struct{}
}

// New creates an orchestrator.
func New(workflows workflow.Store, runs run.Store, subjects subject.Store, executor *action.Executor, evaluator *condition.Evaluator, clock clockwork.Clock, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if evaluator == nil {
		evaluator = condition.NewEvaluator()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 50
	}
	return &Orchestrator{
		workflows: workflows,
		runs:      runs,
		subjects:  subjects,
		executor:  executor,
		evaluator: evaluator,
		clock:     clock,
		config:    cfg,
		logger:    logger,
		sem:       make(chan struct{}, cfg.Concurrency),
		inflight:  make(map[string]struct{}),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start sets the context runs execute under. Runs triggered before Start
// execute under a background context.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ctx, o.cancel = context.WithCancel(ctx)
}

// Stop cancels executing runs at their next suspension point and waits for
// their goroutines, or until ctx is done. Interrupted runs stay started and
// can be resumed.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every launched run goroutine has returned.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) baseContext() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return context.Background()
	}
	return o.ctx
}

// ──────────────────────────────────────────────────
// Triggers
// ──────────────────────────────────────────────────

// Trigger starts a run of an active workflow for one subject. The run
// executes asynchronously; the returned run is its initial state.
func (o *Orchestrator) Trigger(ctx context.Context, in TriggerInput) (*TriggerResult, error) {
	wf, err := o.workflows.GetWorkflow(ctx, in.WorkflowID)
	if err != nil {
		return nil, err
	}
	if wf.Status != workflow.StatusActive {
		return nil, fmt.Errorf("%w: %s is %s", errs.ErrWorkflowNotActive, wf.ID, wf.Status)
	}

	subj, err := o.subjects.GetSubject(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	vars := maps.Clone(in.Variables)
	if vars == nil {
		vars = map[string]any{}
	}
	matched, err := o.evaluator.All(wf.Audience, condition.Env{Subject: subj.Snapshot(), Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("beacon: evaluate audience: %w", err)
	}
	if !matched {
		o.logger.InfoContext(ctx, "subject does not match workflow audience",
			"workflow_id", wf.ID,
			"subject_id", subj.ID,
		)
		return &TriggerResult{Matched: false, Reason: "subject does not match the workflow audience"}, nil
	}

	source := in.Source
	if source == "" {
		source = run.SourceManual
	}
	now := o.clock.Now().UTC()
	r := &run.Run{
		Entity:        entity.At(now),
		ID:            id.NewRunID(),
		WorkflowID:    wf.ID,
		SubjectID:     subj.ID,
		Variables:     vars,
		Status:        run.StatusStarted,
		TriggerSource: source,
		EventID:       in.EventID,
		StartedAt:     now,
	}
	if err := o.runs.CreateRun(ctx, r); err != nil {
		return nil, fmt.Errorf("beacon: create run: %w", err)
	}
	o.bumpMetrics(ctx, wf.ID, workflow.Metrics{RunsStarted: 1})
	o.config.Metrics.RunStarted()

	o.logger.InfoContext(ctx, "run started",
		"run_id", r.ID,
		"workflow_id", wf.ID,
		"subject_id", subj.ID,
		"source", source,
	)

	snapshot := *r
	snapshot.Variables = maps.Clone(r.Variables)
	o.launch(r, wf)
	return &TriggerResult{Run: &snapshot, Matched: true}, nil
}

// HandleEvent starts runs of every active workflow whose event trigger
// listens for evt's type, when evt references a subject. Failures for one
// workflow are logged and do not stop the others.
func (o *Orchestrator) HandleEvent(ctx context.Context, evt *event.Event) ([]*TriggerResult, error) {
	subjID, ok := evt.SubjectID()
	if !ok {
		return nil, nil
	}

	wfs, err := o.workflows.ListWorkflowsByTrigger(ctx, evt.Type)
	if err != nil {
		return nil, fmt.Errorf("beacon: list event workflows: %w", err)
	}

	results := make([]*TriggerResult, 0, len(wfs))
	for _, wf := range wfs {
		res, err := o.Trigger(ctx, TriggerInput{
			WorkflowID: wf.ID,
			SubjectID:  subjID,
			Source:     run.SourceEvent,
			EventID:    evt.ID,
			Variables: map[string]any{
				VarEvent: map[string]any{
					"id":   evt.ID.String(),
					"type": evt.Type,
					"data": evt.Data,
				},
			},
		})
		if err != nil {
			o.logger.WarnContext(ctx, "event trigger failed",
				"workflow_id", wf.ID,
				"event_id", evt.ID,
				"error", err,
			)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// Resume relaunches runs left started by a previous process, from their
// CurrentStep. It returns how many were launched.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	runs, err := o.runs.ListRuns(ctx, run.ListOpts{Status: run.StatusStarted})
	if err != nil {
		return 0, fmt.Errorf("beacon: list started runs: %w", err)
	}

	n := 0
	for _, r := range runs {
		wf, err := o.workflows.GetWorkflow(ctx, r.WorkflowID)
		if err != nil {
			o.logger.WarnContext(ctx, "cannot resume run", "run_id", r.ID, "error", err)
			continue
		}
		if o.launch(r, wf) {
			n++
		}
	}
	if n > 0 {
		o.logger.InfoContext(ctx, "runs resumed", "count", n)
	}
	return n, nil
}

// Cancel flags a started run as cancelled. The run stops at its next step
// boundary; a step already executing completes first.
func (o *Orchestrator) Cancel(ctx context.Context, runID id.ID) (*run.Run, error) {
	r, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := o.runs.FinishRun(ctx, runID, run.StatusCancelled, "cancelled by operator", o.clock.Now().UTC()); err != nil {
		return nil, err
	}
	o.bumpMetrics(ctx, r.WorkflowID, workflow.Metrics{RunsCancelled: 1})
	o.config.Metrics.RunFinished(string(run.StatusCancelled))

	o.logger.InfoContext(ctx, "run cancelled", "run_id", runID, "workflow_id", r.WorkflowID)
	return o.runs.GetRun(ctx, runID)
}

// ──────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────

// launch executes r in its own goroutine unless it is already executing
// in this process.
func (o *Orchestrator) launch(r *run.Run, wf *workflow.Workflow) bool {
	key := r.ID.String()
	o.mu.Lock()
	if _, busy := o.inflight[key]; busy {
		o.mu.Unlock()
		return false
	}
	o.inflight[key] = struct{}{}
	o.mu.Unlock()

	ctx := o.baseContext()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.inflight, key)
			o.mu.Unlock()
		}()
		defer func() {
			if p := recover(); p != nil {
				o.logger.ErrorContext(ctx, "run panicked", "run_id", r.ID, "panic", p)
				o.finish(ctx, r, run.StatusFailed, fmt.Sprintf("panic: %v", p))
			}
		}()

		select {
		case o.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-o.sem }()

		if err := o.Execute(ctx, r, wf); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.ErrorContext(ctx, "run execution failed", "run_id", r.ID, "error", err)
		}
	}()
	return true
}

// Execute drives r through wf's steps from r.CurrentStep in the calling
// goroutine until the run reaches a terminal status, is cancelled, or ctx
// is done. Before each step the stored run is re-read; a cancelled run
// stops without any further write.
func (o *Orchestrator) Execute(ctx context.Context, r *run.Run, wf *workflow.Workflow) error {
	vars := maps.Clone(r.Variables)
	if vars == nil {
		vars = map[string]any{}
	}

	for i := r.CurrentStep; i < len(wf.Steps); i++ {
		step := wf.Steps[i]

		if stop, err := o.stopped(ctx, r.ID); stop || err != nil {
			return err
		}

		cur := *r
		cur.CurrentStep = i
		cur.Variables = vars

		if step.Delay > 0 {
			met, err := o.executor.ConditionsMet(ctx, step, &cur)
			if err == nil && met {
				o.logger.DebugContext(ctx, "delaying step", "run_id", r.ID, "step", i, "delay", step.Delay)
				if err := action.Sleep(ctx, o.clock, step.Delay); err != nil {
					return err
				}
				if stop, err := o.stopped(ctx, r.ID); stop || err != nil {
					return err
				}
			}
		}

		res, err := o.executor.Execute(ctx, i, step, &cur)
		if errors.Is(err, action.ErrInterrupted) {
			// Left started at step i for Resume.
			return ctx.Err()
		}
		if err != nil {
			o.finish(ctx, r, run.StatusFailed, err.Error())
			return err
		}

		vars = recordResult(vars, i, res)

		if res.Outcome == run.OutcomeFailed && !step.ContinueOnError {
			o.finish(ctx, r, run.StatusFailed, fmt.Sprintf("step %d (%s): %s", i, step.Label(), res.Message))
			return nil
		}

		if err := o.runs.UpdateRunProgress(context.WithoutCancel(ctx), r.ID, i+1, vars, o.clock.Now().UTC()); err != nil {
			if errors.Is(err, errs.ErrRunNotActive) {
				return nil
			}
			return fmt.Errorf("beacon: update run progress: %w", err)
		}
		r.CurrentStep = i + 1
		r.Variables = vars
	}

	o.finish(ctx, r, run.StatusCompleted, "")
	return nil
}

// stopped reports whether the run is no longer started, or ctx is done.
func (o *Orchestrator) stopped(ctx context.Context, runID id.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}
	current, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return true, err
	}
	if current.Status != run.StatusStarted {
		o.logger.InfoContext(ctx, "run no longer active, stopping",
			"run_id", runID,
			"status", current.Status,
		)
		return true, nil
	}
	return false, nil
}

// finish writes the terminal status. A run that left started in the
// meantime (cancelled by an operator) is left untouched.
func (o *Orchestrator) finish(ctx context.Context, r *run.Run, status run.Status, msg string) {
	ctx = context.WithoutCancel(ctx)
	err := o.runs.FinishRun(ctx, r.ID, status, msg, o.clock.Now().UTC())
	switch {
	case errors.Is(err, errs.ErrRunNotActive):
		return
	case err != nil:
		o.logger.ErrorContext(ctx, "failed to finish run", "run_id", r.ID, "status", status, "error", err)
		return
	}

	delta := workflow.Metrics{}
	if status == run.StatusCompleted {
		delta.RunsCompleted = 1
	} else {
		delta.RunsFailed = 1
	}
	o.bumpMetrics(ctx, r.WorkflowID, delta)
	o.config.Metrics.RunFinished(string(status))

	o.logger.InfoContext(ctx, "run finished",
		"run_id", r.ID,
		"workflow_id", r.WorkflowID,
		"status", status,
		"error", msg,
	)
}

func (o *Orchestrator) bumpMetrics(ctx context.Context, wfID id.ID, delta workflow.Metrics) {
	if err := o.workflows.IncrWorkflowMetrics(context.WithoutCancel(ctx), wfID, delta); err != nil {
		o.logger.WarnContext(ctx, "failed to update workflow metrics", "workflow_id", wfID, "error", err)
	}
}

// recordResult merges a step's output into the run variables: the output
// under steps.<index>, and the chosen branch under "branch".
func recordResult(vars map[string]any, index int, res action.Result) map[string]any {
	next := maps.Clone(vars)
	if len(res.Output) > 0 {
		steps, _ := next[VarSteps].(map[string]any)
		steps = maps.Clone(steps)
		if steps == nil {
			steps = map[string]any{}
		}
		steps[strconv.Itoa(index)] = res.Output
		next[VarSteps] = steps
	}
	if res.BranchPath != "" {
		next[VarBranch] = res.BranchPath
	}
	return next
}
