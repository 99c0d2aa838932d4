package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/internal/errs"
)

// Service manages workflow definitions and their lifecycle.
type Service struct {
	store     Store
	schemas   *Schemas
	evaluator *condition.Evaluator
	clock     clockwork.Clock
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock sets the clock used for lifecycle timestamps.
func WithClock(c clockwork.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithEvaluator shares a condition evaluator (and its expression cache).
func WithEvaluator(e *condition.Evaluator) ServiceOption {
	return func(s *Service) { s.evaluator = e }
}

// NewService creates a workflow service.
func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		store:   store,
		schemas: NewSchemas(),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.evaluator == nil {
		svc.evaluator = condition.NewEvaluator()
	}
	return svc
}

// Create validates a definition and stores it as a draft.
func (svc *Service) Create(ctx context.Context, in Input) (*Workflow, error) {
	now := svc.clock.Now().UTC()
	wf := &Workflow{
		Entity:      entity.At(now),
		ID:          id.NewWorkflowID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Steps:       in.Steps,
		Trigger:     in.Trigger,
		Audience:    in.Audience,
		Status:      StatusDraft,
		Metadata:    in.Metadata,
	}
	if wf.Trigger.Type == "" {
		wf.Trigger.Type = TriggerManual
	}

	if err := svc.Validate(wf); err != nil {
		return nil, err
	}
	if err := svc.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("beacon: create workflow: %w", err)
	}

	svc.logger.InfoContext(ctx, "workflow created",
		"workflow_id", wf.ID,
		"name", wf.Name,
		"steps", len(wf.Steps),
		"trigger", wf.Trigger.Type,
	)
	return wf, nil
}

// Get returns a workflow by ID.
func (svc *Service) Get(ctx context.Context, wfID id.ID) (*Workflow, error) {
	return svc.store.GetWorkflow(ctx, wfID)
}

// List returns workflows.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Workflow, error) {
	return svc.store.ListWorkflows(ctx, opts)
}

// Update replaces the definition of a draft or paused workflow.
func (svc *Service) Update(ctx context.Context, wfID id.ID, in Input) (*Workflow, error) {
	wf, err := svc.store.GetWorkflow(ctx, wfID)
	if err != nil {
		return nil, err
	}
	if !wf.Status.Editable() {
		return nil, fmt.Errorf("%w: cannot edit a %s workflow", errs.ErrInvalidTransition, wf.Status)
	}

	wf.Name = strings.TrimSpace(in.Name)
	wf.Description = in.Description
	wf.Steps = in.Steps
	wf.Trigger = in.Trigger
	if wf.Trigger.Type == "" {
		wf.Trigger.Type = TriggerManual
	}
	wf.Audience = in.Audience
	wf.Metadata = in.Metadata

	if err := svc.Validate(wf); err != nil {
		return nil, err
	}

	wf.Touch(svc.clock.Now().UTC())
	if err := svc.store.UpdateWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("beacon: update workflow: %w", err)
	}
	return wf, nil
}

// Activate moves a draft or paused workflow to active so runs can start.
func (svc *Service) Activate(ctx context.Context, wfID id.ID) (*Workflow, error) {
	return svc.transition(ctx, wfID, StatusActive)
}

// Pause stops new runs from starting. Runs already started continue.
func (svc *Service) Pause(ctx context.Context, wfID id.ID) (*Workflow, error) {
	return svc.transition(ctx, wfID, StatusPaused)
}

// Complete retires a workflow.
func (svc *Service) Complete(ctx context.Context, wfID id.ID) (*Workflow, error) {
	return svc.transition(ctx, wfID, StatusCompleted)
}

// Fail marks a workflow as failed.
func (svc *Service) Fail(ctx context.Context, wfID id.ID) (*Workflow, error) {
	return svc.transition(ctx, wfID, StatusFailed)
}

func (svc *Service) transition(ctx context.Context, wfID id.ID, next Status) (*Workflow, error) {
	wf, err := svc.store.GetWorkflow(ctx, wfID)
	if err != nil {
		return nil, err
	}
	if !wf.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, wf.Status, next)
	}

	now := svc.clock.Now().UTC()
	prev := wf.Status
	wf.Status = next
	switch next {
	case StatusActive:
		wf.ActivatedAt = &now
		wf.PausedAt = nil
	case StatusPaused:
		wf.PausedAt = &now
	case StatusCompleted, StatusFailed:
		wf.CompletedAt = &now
	}
	wf.Touch(now)

	if err := svc.store.UpdateWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("beacon: update workflow: %w", err)
	}

	svc.logger.InfoContext(ctx, "workflow status changed",
		"workflow_id", wf.ID,
		"from", prev,
		"to", next,
	)
	return wf, nil
}

// Validate checks a workflow definition: trigger, audience, and every
// step's kind, config schema, conditions and delay.
func (svc *Service) Validate(wf *Workflow) error {
	if wf.Name == "" {
		return errs.Invalid("name", "must not be empty")
	}
	if len(wf.Steps) == 0 {
		return errs.Invalid("steps", "must contain at least one step")
	}

	switch wf.Trigger.Type {
	case TriggerManual:
	case TriggerEvent:
		if strings.TrimSpace(wf.Trigger.EventType) == "" {
			return errs.Invalid("trigger.event_type", "required for event triggers")
		}
	default:
		return errs.Invalid("trigger.type", "unknown trigger type %q", wf.Trigger.Type)
	}

	for i, c := range wf.Audience {
		if err := svc.evaluator.Validate(c); err != nil {
			return errs.Invalid(fmt.Sprintf("audience[%d]", i), "%v", err)
		}
	}

	for i, step := range wf.Steps {
		if err := svc.validateStep(step); err != nil {
			return errs.Invalid(fmt.Sprintf("steps[%d]", i), "%v", err)
		}
	}
	return nil
}

func (svc *Service) validateStep(step Step) error {
	if !step.Kind.Known() {
		return fmt.Errorf("%w %q", errs.ErrUnknownAction, step.Kind)
	}
	if step.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if err := svc.schemas.Validate(step.Kind, step.Config); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, c := range step.Conditions {
		if err := svc.evaluator.Validate(c); err != nil {
			return err
		}
	}

	switch step.Kind {
	case ActionWait:
		if _, err := time.ParseDuration(fmt.Sprint(step.Config["duration"])); err != nil {
			return fmt.Errorf("config: duration: %w", err)
		}
	case ActionCreateTask:
		if v, ok := step.Config["due_in"]; ok {
			if _, err := time.ParseDuration(fmt.Sprint(v)); err != nil {
				return fmt.Errorf("config: due_in: %w", err)
			}
		}
	case ActionWebhook:
		if v, ok := step.Config["timeout"]; ok {
			if _, err := time.ParseDuration(fmt.Sprint(v)); err != nil {
				return fmt.Errorf("config: timeout: %w", err)
			}
		}
	case ActionBranch:
		var cfg BranchConfig
		if err := DecodeConfig(step.Config, &cfg); err != nil {
			return err
		}
		for _, b := range cfg.Branches {
			for _, c := range b.Conditions {
				if err := svc.evaluator.Validate(c); err != nil {
					return fmt.Errorf("branch %q: %w", b.Name, err)
				}
			}
		}
	}
	return nil
}
