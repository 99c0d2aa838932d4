package beacon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/action"
	"github.com/xraph/beacon/automation"
	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/ratelimit"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/store"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// Beacon is the root engine: webhook delivery and workflow automation over
// one store.
type Beacon struct {
	config    Config
	store     store.Store
	logger    *slog.Logger
	clock     clockwork.Clock
	transport delivery.Transport
	limiter   ratelimit.Limiter
	notifier  action.Notifier
	actions   []action.Action
	metrics   *observability.Metrics
	tracer    *observability.Tracer

	evaluator    *condition.Evaluator
	endpointSvc  *endpoint.Service
	workflowSvc  *workflow.Service
	executor     *delivery.Executor
	dispatcher   *delivery.Dispatcher
	sweeper      *delivery.Sweeper
	steps        *action.Executor
	orchestrator *automation.Orchestrator
}

// New creates a Beacon with the given options. A store is required.
func New(opts ...Option) (*Beacon, error) {
	b := &Beacon{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.store == nil {
		return nil, ErrNoStore
	}
	b.wireServices()
	return b, nil
}

// wireServices builds the components after options have been applied.
func (b *Beacon) wireServices() {
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	if b.transport == nil {
		b.transport = delivery.NewHTTPTransport(&http.Client{}, b.config.MaxResponseBody)
	}
	if b.limiter == nil {
		b.limiter = ratelimit.NewMemory(b.clock)
	}
	b.evaluator = condition.NewEvaluator()

	b.endpointSvc = endpoint.NewService(b.store, b.logger,
		endpoint.WithDefaults(endpoint.Defaults{
			Timeout:     b.config.DefaultTimeout,
			MaxAttempts: b.config.DefaultMaxAttempts,
			BackoffBase: b.config.DefaultBackoffBase,
		}),
		endpoint.WithOpenDeliveries(b.store),
	)
	b.workflowSvc = workflow.NewService(b.store, b.logger,
		workflow.WithClock(b.clock),
		workflow.WithEvaluator(b.evaluator),
	)

	b.executor = delivery.NewExecutor(b.store, b.store, b.transport, b.clock, delivery.ExecutorConfig{
		Backoff:   delivery.Backoff{Max: b.config.MaxBackoff},
		UserAgent: b.config.UserAgent,
		Metrics:   b.metrics,
		Tracer:    b.tracer,
	}, b.logger)
	b.dispatcher = delivery.NewDispatcher(b.store, b.executor, b.limiter, b.clock, delivery.DispatcherConfig{
		Metrics: b.metrics,
	}, b.logger)
	b.sweeper = delivery.NewSweeper(b.store, b.executor, b.clock, delivery.SweeperConfig{
		Interval:    b.config.SweepInterval,
		BatchSize:   b.config.SweepBatchSize,
		Concurrency: b.config.Concurrency,
		Metrics:     b.metrics,
	}, b.logger)

	registry := action.DefaultRegistry(action.Deps{
		Subjects:       b.store,
		Notifier:       b.notifier,
		Transport:      b.transport,
		Evaluator:      b.evaluator,
		Clock:          b.clock,
		Logger:         b.logger,
		WebhookTimeout: b.config.WebhookTimeout,
		UserAgent:      b.config.UserAgent,
	})
	for _, a := range b.actions {
		registry.Register(a)
	}
	b.steps = action.NewExecutor(registry, b.store, b.store, b.evaluator, b.clock, action.ExecutorConfig{
		Metrics: b.metrics,
		Tracer:  b.tracer,
	}, b.logger)
	b.orchestrator = automation.New(b.store, b.store, b.store, b.steps, b.evaluator, b.clock, automation.Config{
		Concurrency: b.config.RunConcurrency,
		Metrics:     b.metrics,
	}, b.logger)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start begins the retry sweeper and, with Config.ResumeRuns, relaunches
// runs a previous process left started.
func (b *Beacon) Start(ctx context.Context) error {
	b.orchestrator.Start(ctx)
	b.sweeper.Start(ctx)

	if b.config.ResumeRuns {
		if _, err := b.orchestrator.Resume(ctx); err != nil {
			return err
		}
	}
	b.logger.InfoContext(ctx, "beacon started",
		"sweep_interval", b.config.SweepInterval,
		"run_concurrency", b.config.RunConcurrency,
	)
	return nil
}

// Stop shuts down the sweeper and waits for in-flight runs, at most
// Config.ShutdownTimeout.
func (b *Beacon) Stop(ctx context.Context) error {
	if b.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.ShutdownTimeout)
		defer cancel()
	}

	b.sweeper.Stop(ctx)
	if err := b.orchestrator.Stop(ctx); err != nil {
		return fmt.Errorf("beacon: stop: %w", err)
	}
	b.logger.InfoContext(ctx, "beacon stopped")
	return nil
}

// ──────────────────────────────────────────────────
// Endpoints
// ──────────────────────────────────────────────────

// RegisterEndpoint validates and registers a delivery target.
func (b *Beacon) RegisterEndpoint(ctx context.Context, in endpoint.Input) (*endpoint.Endpoint, error) {
	return b.endpointSvc.Create(ctx, in)
}

// UpdateEndpoint applies a partial update to a delivery target.
func (b *Beacon) UpdateEndpoint(ctx context.Context, epID id.ID, in endpoint.Update) (*endpoint.Endpoint, error) {
	return b.endpointSvc.Update(ctx, epID, in)
}

// DeactivateEndpoint stops new deliveries to a target. Pending retries
// to it end up disabled.
func (b *Beacon) DeactivateEndpoint(ctx context.Context, epID id.ID) error {
	return b.endpointSvc.SetActive(ctx, epID, false)
}

// ActivateEndpoint re-enables a target.
func (b *Beacon) ActivateEndpoint(ctx context.Context, epID id.ID) error {
	return b.endpointSvc.SetActive(ctx, epID, true)
}

// DeleteEndpoint removes a target with no open deliveries.
func (b *Beacon) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	return b.endpointSvc.Delete(ctx, epID)
}

// RotateSecret replaces a target's signing secret and returns it.
func (b *Beacon) RotateSecret(ctx context.Context, epID id.ID) (string, error) {
	return b.endpointSvc.RotateSecret(ctx, epID)
}

// ──────────────────────────────────────────────────
// Events and deliveries
// ──────────────────────────────────────────────────

// EventResult is the outcome of TriggerEvent: the deliveries fanned out and
// the runs started by event-triggered workflows.
type EventResult struct {
	*delivery.Outcome
	Runs []*automation.TriggerResult `json:"runs,omitempty"`
}

// TriggerEvent records an event, delivers it to every matching target and
// waits for those attempts. Events about a subject also start runs of
// active workflows listening for the event type.
func (b *Beacon) TriggerEvent(ctx context.Context, in delivery.TriggerInput) (*EventResult, error) {
	out, err := b.dispatcher.Trigger(ctx, in)
	if err != nil {
		return nil, err
	}
	res := &EventResult{Outcome: out}
	if out.Duplicate {
		return res, nil
	}

	runs, err := b.orchestrator.HandleEvent(ctx, out.Event)
	if err != nil {
		b.logger.WarnContext(ctx, "event workflows not started",
			"event_id", out.Event.ID,
			"error", err,
		)
	}
	res.Runs = runs
	return res, nil
}

// ProcessRetries runs one sweep of due retries now and returns the number
// of attempts made.
func (b *Beacon) ProcessRetries(ctx context.Context) (int, error) {
	return b.sweeper.Sweep(ctx)
}

// Redeliver starts a failed delivery over with a fresh attempt budget.
func (b *Beacon) Redeliver(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	return b.dispatcher.Redeliver(ctx, delID)
}

// ──────────────────────────────────────────────────
// Workflows and runs
// ──────────────────────────────────────────────────

// CreateWorkflow validates a workflow definition and stores it as a draft.
func (b *Beacon) CreateWorkflow(ctx context.Context, in workflow.Input) (*workflow.Workflow, error) {
	return b.workflowSvc.Create(ctx, in)
}

// StartWorkflow activates a workflow so runs can start.
func (b *Beacon) StartWorkflow(ctx context.Context, wfID id.ID) (*workflow.Workflow, error) {
	return b.workflowSvc.Activate(ctx, wfID)
}

// PauseWorkflow stops new runs of a workflow.
func (b *Beacon) PauseWorkflow(ctx context.Context, wfID id.ID) (*workflow.Workflow, error) {
	return b.workflowSvc.Pause(ctx, wfID)
}

// CompleteWorkflow retires a workflow.
func (b *Beacon) CompleteWorkflow(ctx context.Context, wfID id.ID) (*workflow.Workflow, error) {
	return b.workflowSvc.Complete(ctx, wfID)
}

// TriggerWorkflow starts a run of an active workflow for one subject. A
// subject outside the audience yields Matched false, not an error.
func (b *Beacon) TriggerWorkflow(ctx context.Context, wfID, subjID id.ID, vars map[string]any) (*automation.TriggerResult, error) {
	return b.orchestrator.Trigger(ctx, automation.TriggerInput{
		WorkflowID: wfID,
		SubjectID:  subjID,
		Variables:  vars,
		Source:     run.SourceManual,
	})
}

// CancelRun flags a run as cancelled; it stops at its next step boundary.
func (b *Beacon) CancelRun(ctx context.Context, runID id.ID) (*run.Run, error) {
	return b.orchestrator.Cancel(ctx, runID)
}

// PutSubject creates or replaces a subject record.
func (b *Beacon) PutSubject(ctx context.Context, s *subject.Subject) error {
	if s.ID.IsNil() {
		return errs.Invalid("id", "subject id is required")
	}
	now := b.clock.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return b.store.PutSubject(ctx, s)
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Config returns the active configuration.
func (b *Beacon) Config() Config { return b.config }

// Store returns the underlying store.
func (b *Beacon) Store() store.Store { return b.store }

// Logger returns the logger.
func (b *Beacon) Logger() *slog.Logger { return b.logger }

// Endpoints returns the endpoint management service.
func (b *Beacon) Endpoints() *endpoint.Service { return b.endpointSvc }

// Workflows returns the workflow management service.
func (b *Beacon) Workflows() *workflow.Service { return b.workflowSvc }

// Orchestrator returns the run orchestrator.
func (b *Beacon) Orchestrator() *automation.Orchestrator { return b.orchestrator }

// Dispatcher returns the event dispatcher.
func (b *Beacon) Dispatcher() *delivery.Dispatcher { return b.dispatcher }
