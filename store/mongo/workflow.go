package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/workflow"
)

// CreateWorkflow persists a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	_, err := s.mdb.NewInsert(toWorkflowModel(wf)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: create workflow: %w", err)
	}

	return nil
}

// GetWorkflow returns a workflow by ID.
func (s *Store) GetWorkflow(ctx context.Context, wfID id.ID) (*workflow.Workflow, error) {
	var m workflowModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": wfID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, beacon.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("beacon/mongo: get workflow: %w", err)
	}

	return fromWorkflowModel(&m)
}

// UpdateWorkflow sets the definition and lifecycle fields. Metrics are only
// written by IncrWorkflowMetrics.
func (s *Store) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	m := toWorkflowModel(wf)

	res, err := s.mdb.NewUpdate((*workflowModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("name", m.Name).
		Set("description", m.Description).
		Set("steps", m.Steps).
		Set("trigger_type", m.TriggerType).
		Set("trigger_event_type", m.TriggerEventType).
		Set("audience", m.Audience).
		Set("status", m.Status).
		Set("activated_at", m.ActivatedAt).
		Set("paused_at", m.PausedAt).
		Set("completed_at", m.CompletedAt).
		Set("metadata", m.Metadata).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: update workflow: %w", err)
	}

	if res.MatchedCount() == 0 {
		return beacon.ErrWorkflowNotFound
	}

	return nil
}

// ListWorkflows returns workflows, oldest first.
func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	var models []workflowModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(oldestFirst)

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list workflows: %w", err)
	}

	return convert(models, fromWorkflowModel)
}

// ListWorkflowsByTrigger returns active workflows triggered by eventType.
func (s *Store) ListWorkflowsByTrigger(ctx context.Context, eventType string) ([]*workflow.Workflow, error) {
	var models []workflowModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":             string(workflow.StatusActive),
			"trigger_type":       string(workflow.TriggerEvent),
			"trigger_event_type": eventType,
		}).
		Sort(oldestFirst).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list workflows by trigger: %w", err)
	}

	return convert(models, fromWorkflowModel)
}

// IncrWorkflowMetrics adds delta to a workflow's metrics.
func (s *Store) IncrWorkflowMetrics(ctx context.Context, wfID id.ID, delta workflow.Metrics) error {
	res, err := s.mdb.Collection(colWorkflows).UpdateOne(ctx,
		bson.M{"_id": wfID.String()},
		bson.M{"$inc": bson.M{
			"runs_started":   delta.RunsStarted,
			"runs_completed": delta.RunsCompleted,
			"runs_failed":    delta.RunsFailed,
			"runs_cancelled": delta.RunsCancelled,
		}},
	)
	if err != nil {
		return fmt.Errorf("beacon/mongo: incr workflow metrics: %w", err)
	}

	if res.MatchedCount == 0 {
		return beacon.ErrWorkflowNotFound
	}

	return nil
}
