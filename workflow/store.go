package workflow

import (
	"context"

	"github.com/xraph/beacon/id"
)

// Store defines the persistence contract for workflows.
type Store interface {
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, wfID id.ID) (*Workflow, error)

	// UpdateWorkflow replaces the definition, status and lifecycle
	// timestamps. Metrics are owned by IncrWorkflowMetrics.
	UpdateWorkflow(ctx context.Context, wf *Workflow) error

	ListWorkflows(ctx context.Context, opts ListOpts) ([]*Workflow, error)

	// ListWorkflowsByTrigger returns active workflows with an event trigger
	// on eventType.
	ListWorkflowsByTrigger(ctx context.Context, eventType string) ([]*Workflow, error)

	// IncrWorkflowMetrics atomically adds delta to the stored metrics.
	IncrWorkflowMetrics(ctx context.Context, wfID id.ID, delta Metrics) error
}
