package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/run"
)

// CreateRun persists a new run.
func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	_, err := s.mdb.NewInsert(toRunModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: create run: %w", err)
	}

	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.ID) (*run.Run, error) {
	var m runModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": runID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, beacon.ErrRunNotFound
		}

		return nil, fmt.Errorf("beacon/mongo: get run: %w", err)
	}

	return fromRunModel(&m)
}

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	var models []runModel

	filter := bson.M{}
	if !opts.WorkflowID.IsNil() {
		filter["workflow_id"] = opts.WorkflowID.String()
	}

	if !opts.SubjectID.IsNil() {
		filter["subject_id"] = opts.SubjectID.String()
	}

	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(newestFirst)

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list runs: %w", err)
	}

	return convert(models, fromRunModel)
}

// UpdateRunProgress stores progress only while the run is started.
func (s *Store) UpdateRunProgress(ctx context.Context, runID id.ID, currentStep int, vars map[string]any, at time.Time) error {
	return s.updateStartedRun(ctx, runID, bson.M{
		"current_step": currentStep,
		"variables":    vars,
		"updated_at":   at,
	})
}

// FinishRun moves a started run to a terminal status.
func (s *Store) FinishRun(ctx context.Context, runID id.ID, status run.Status, errMsg string, at time.Time) error {
	return s.updateStartedRun(ctx, runID, bson.M{
		"status":       string(status),
		"error":        errMsg,
		"completed_at": at,
		"updated_at":   at,
	})
}

func (s *Store) updateStartedRun(ctx context.Context, runID id.ID, set bson.M) error {
	res, err := s.mdb.Collection(colRuns).UpdateOne(ctx,
		bson.M{"_id": runID.String(), "status": string(run.StatusStarted)},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("beacon/mongo: update run: %w", err)
	}

	if res.MatchedCount > 0 {
		return nil
	}

	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}

	return beacon.ErrRunNotActive
}

// CreateStepLog appends a step log entry.
func (s *Store) CreateStepLog(ctx context.Context, l *run.StepLog) error {
	_, err := s.mdb.NewInsert(toStepLogModel(l)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: create step log: %w", err)
	}

	return nil
}

// ListStepLogs returns a run's step logs in execution order.
func (s *Store) ListStepLogs(ctx context.Context, runID id.ID) ([]*run.StepLog, error) {
	var models []stepLogModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"run_id": runID.String()}).
		Sort(bson.D{{Key: "started_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list step logs: %w", err)
	}

	return convert(models, fromStepLogModel)
}
