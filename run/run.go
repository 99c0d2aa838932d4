// Package run defines workflow runs and the append-only step log that
// records every step a run executes.
package run

import (
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// Status is the state of a run.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further steps will execute.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Source records what started a run.
type Source string

const (
	SourceManual Source = "manual"
	SourceEvent  Source = "event"
	SourceAPI    Source = "api"
)

// Run is one execution of a workflow for one subject.
type Run struct {
	entity.Entity

	ID         id.ID `json:"id"`
	WorkflowID id.ID `json:"workflow_id"`
	SubjectID  id.ID `json:"subject_id"`

	// CurrentStep is the index of the next step to execute. It only ever
	// grows during an execution.
	CurrentStep int `json:"current_step"`

	Variables     map[string]any `json:"variables,omitempty"`
	Status        Status         `json:"status"`
	TriggerSource Source         `json:"trigger_source"`
	EventID       id.ID          `json:"event_id,omitzero"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Outcome is the result recorded for one step execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepLog records one step execution. Exactly one is written per step the
// run reaches, whatever the outcome.
type StepLog struct {
	ID         id.ID          `json:"id"`
	RunID      id.ID          `json:"run_id"`
	StepIndex  int            `json:"step_index"`
	Kind       string         `json:"kind"`
	Name       string         `json:"name,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Message    string         `json:"message,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DurationMs int64          `json:"duration_ms"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	BranchPath string         `json:"branch_path,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ListOpts filters run listings.
type ListOpts struct {
	Offset     int
	Limit      int
	WorkflowID id.ID
	SubjectID  id.ID
	Status     Status
}
