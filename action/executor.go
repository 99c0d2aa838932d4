package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// ErrInterrupted is returned by Execute when the step was cut short because
// ctx ended. No step log is written, so the step runs again on resume.
var ErrInterrupted = errors.New("beacon: step interrupted")

// ExecutorConfig holds step executor configuration.
type ExecutorConfig struct {
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Executor executes single workflow steps.
type Executor struct {
	registry  *Registry
	subjects  subject.Store
	runs      run.Store
	evaluator *condition.Evaluator
	clock     clockwork.Clock
	config    ExecutorConfig
	logger    *slog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(registry *Registry, subjects subject.Store, runs run.Store, evaluator *condition.Evaluator, clock clockwork.Clock, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if evaluator == nil {
		evaluator = condition.NewEvaluator()
	}
	return &Executor{
		registry:  registry,
		subjects:  subjects,
		runs:      runs,
		evaluator: evaluator,
		clock:     clock,
		config:    cfg,
		logger:    logger,
	}
}

// Execute runs step index of r and writes its step log. The subject is read
// fresh from the store. A failed or skipped step is reported in the Result;
// the returned error means the step log could not be written, or the step
// was interrupted (ErrInterrupted).
func (e *Executor) Execute(ctx context.Context, index int, step workflow.Step, r *run.Run) (Result, error) {
	started := e.clock.Now().UTC()

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartStepSpan(ctx, r.ID.String(), string(step.Kind), index)
	}

	entry := &run.StepLog{
		ID:        id.NewStepLogID(),
		RunID:     r.ID,
		StepIndex: index,
		Kind:      string(step.Kind),
		Name:      step.Name,
		StartedAt: started,
		Input:     map[string]any{"config": step.Config},
	}

	res := e.execute(ctx, index, step, r, entry)

	if res.Outcome == run.OutcomeFailed && ctx.Err() != nil {
		if span != nil {
			e.config.Tracer.EndStepSpan(span, "interrupted", ctx.Err().Error())
		}
		e.logger.InfoContext(ctx, "step interrupted",
			"run_id", r.ID,
			"step", index,
			"kind", step.Kind,
		)
		return Result{}, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}

	finished := e.clock.Now().UTC()
	entry.Outcome = res.Outcome
	entry.Message = res.Message
	entry.Output = res.Output
	entry.BranchPath = res.BranchPath
	entry.FinishedAt = finished
	entry.DurationMs = finished.Sub(started).Milliseconds()
	if res.Outcome == run.OutcomeFailed {
		entry.Error = res.Message
	}

	if span != nil {
		e.config.Tracer.EndStepSpan(span, string(res.Outcome), entry.Error)
	}
	e.config.Metrics.RecordStep(string(step.Kind), string(res.Outcome), finished.Sub(started).Seconds())

	e.logger.InfoContext(ctx, "step executed",
		"run_id", r.ID,
		"step", index,
		"kind", step.Kind,
		"outcome", res.Outcome,
		"branch", res.BranchPath,
		"message", res.Message,
	)

	if err := e.runs.CreateStepLog(context.WithoutCancel(ctx), entry); err != nil {
		return res, fmt.Errorf("beacon: write step log: %w", err)
	}
	return res, nil
}

func (e *Executor) execute(ctx context.Context, index int, step workflow.Step, r *run.Run, entry *run.StepLog) Result {
	subj, err := e.subjects.GetSubject(ctx, r.SubjectID)
	if err != nil {
		return Failed("load subject %s: %v", r.SubjectID, err)
	}

	env := condition.Env{Subject: subj.Snapshot(), Variables: maps.Clone(r.Variables)}
	if env.Variables == nil {
		env.Variables = map[string]any{}
	}
	entry.Input["subject"] = env.Subject
	entry.Input["variables"] = env.Variables

	ok, err := e.evaluator.All(step.Conditions, env)
	if err != nil {
		return Failed("evaluate conditions: %v", err)
	}
	if !ok {
		return Result{Outcome: run.OutcomeSkipped, Success: true, Message: "conditions not met"}
	}

	act, found := e.registry.Lookup(step.Kind)
	if !found {
		return Failed("%v: %q", errs.ErrUnknownAction, step.Kind)
	}

	res, err := e.call(ctx, act, &Request{
		Index:   index,
		Step:    step,
		Run:     r,
		Subject: subj,
		Env:     env,
	})
	if err != nil {
		return Failed("%v", err)
	}
	if res.Outcome == "" {
		if res.Success {
			res.Outcome = run.OutcomeSuccess
		} else {
			res.Outcome = run.OutcomeFailed
		}
	}
	res.Success = res.Outcome != run.OutcomeFailed
	return res
}

// call invokes the action, turning a panic into an error so one broken
// handler fails its step rather than the process.
func (e *Executor) call(ctx context.Context, act Action, req *Request) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "action panicked",
				"run_id", req.Run.ID,
				"kind", act.Kind(),
				"panic", p,
			)
			err = fmt.Errorf("action panicked: %v", p)
		}
	}()
	return act.Execute(ctx, req)
}

// ConditionsMet evaluates step conditions against the subject's current
// record without executing or logging anything.
func (e *Executor) ConditionsMet(ctx context.Context, step workflow.Step, r *run.Run) (bool, error) {
	if len(step.Conditions) == 0 {
		return true, nil
	}
	subj, err := e.subjects.GetSubject(ctx, r.SubjectID)
	if err != nil {
		return false, err
	}
	return e.evaluator.All(step.Conditions, condition.Env{Subject: subj.Snapshot(), Variables: r.Variables})
}
