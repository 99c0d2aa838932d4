// Package workflow defines automation workflows: an ordered list of steps,
// the trigger that starts runs and the audience a subject must match.
package workflow

import (
	"time"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// ActionKind names the action a step performs.
type ActionKind string

const (
	ActionSendEmail         ActionKind = "send_email"
	ActionSendSMS           ActionKind = "send_sms"
	ActionSendPush          ActionKind = "send_push"
	ActionUpdateField       ActionKind = "update_field"
	ActionAddToSegment      ActionKind = "add_to_segment"
	ActionRemoveFromSegment ActionKind = "remove_from_segment"
	ActionWait              ActionKind = "wait"
	ActionWebhook           ActionKind = "webhook"
	ActionCreateTask        ActionKind = "create_task"
	ActionAddTag            ActionKind = "add_tag"
	ActionUpdateScore       ActionKind = "update_score"
	ActionBranch            ActionKind = "branch"
)

// ActionKinds lists the closed action vocabulary in a stable order.
var ActionKinds = []ActionKind{
	ActionSendEmail,
	ActionSendSMS,
	ActionSendPush,
	ActionUpdateField,
	ActionAddToSegment,
	ActionRemoveFromSegment,
	ActionWait,
	ActionWebhook,
	ActionCreateTask,
	ActionAddTag,
	ActionUpdateScore,
	ActionBranch,
}

// Known reports whether k is part of the vocabulary.
func (k ActionKind) Known() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Step is one action in a workflow.
type Step struct {
	Kind ActionKind `json:"kind"`
	Name string     `json:"name,omitempty"`

	// Config is the action-specific configuration, checked against the
	// kind's schema when the workflow is created.
	Config map[string]any `json:"config,omitempty"`

	// Conditions must all hold for the step to execute; otherwise it is
	// skipped and the run moves on.
	Conditions []condition.Condition `json:"conditions,omitempty"`

	// Delay suspends the run before the step executes.
	Delay time.Duration `json:"delay,omitempty"`

	// ContinueOnError keeps the run going when the step fails.
	ContinueOnError bool `json:"continue_on_error,omitempty"`
}

// Label returns the step name, falling back to its kind.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Kind)
}

// TriggerType says how runs of a workflow start.
type TriggerType string

const (
	// TriggerManual runs start only through an explicit trigger call.
	TriggerManual TriggerType = "manual"

	// TriggerEvent runs also start whenever an event of EventType that
	// references a subject is triggered.
	TriggerEvent TriggerType = "event"
)

// Trigger describes what starts a run.
type Trigger struct {
	Type      TriggerType `json:"type"`
	EventType string      `json:"event_type,omitempty"`
}

// Status is the lifecycle state of a workflow.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var transitions = map[Status][]Status{
	StatusDraft:  {StatusActive},
	StatusActive: {StatusPaused, StatusCompleted, StatusFailed},
	StatusPaused: {StatusActive, StatusCompleted, StatusFailed},
}

// CanTransition reports whether a workflow may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether the definition may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusPaused
}

// Metrics aggregates run outcomes for a workflow.
type Metrics struct {
	RunsStarted   int64 `json:"runs_started"`
	RunsCompleted int64 `json:"runs_completed"`
	RunsFailed    int64 `json:"runs_failed"`
	RunsCancelled int64 `json:"runs_cancelled"`
}

// Workflow is a reusable automation definition.
type Workflow struct {
	entity.Entity

	ID          id.ID                 `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Steps       []Step                `json:"steps"`
	Trigger     Trigger               `json:"trigger"`
	Audience    []condition.Condition `json:"audience,omitempty"`
	Status      Status                `json:"status"`
	ActivatedAt *time.Time            `json:"activated_at,omitempty"`
	PausedAt    *time.Time            `json:"paused_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Metrics     Metrics               `json:"metrics"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
}

// Input is the operator-supplied definition.
type Input struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Steps       []Step                `json:"steps"`
	Trigger     Trigger               `json:"trigger"`
	Audience    []condition.Condition `json:"audience,omitempty"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
}

// ListOpts filters workflow listings.
type ListOpts struct {
	Offset int
	Limit  int
	Status Status
}
