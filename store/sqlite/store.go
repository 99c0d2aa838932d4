package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/run"
	beaconstore "github.com/xraph/beacon/store"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// compile-time interface check
var _ beaconstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("beacon/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: sqlite: %w", beacon.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Endpoint Store ====================

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	_, err := s.sdb.NewInsert(toEndpointModel(ep)).Exec(ctx)
	return err
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", epID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, beacon.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

// UpdateEndpoint writes the configuration columns only; delivery counters
// are owned by RecordAttempt.
func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	res, err := s.sdb.NewUpdate((*endpointModel)(nil)).
		Set("url = ?", m.URL).
		Set("description = ?", m.Description).
		Set("method = ?", m.Method).
		Set("secret = ?", m.Secret).
		Set("event_types = ?", m.EventTypes).
		Set("filters = ?", m.Filters).
		Set("headers = ?", m.Headers).
		Set("timeout_ms = ?", m.TimeoutMs).
		Set("max_attempts = ?", m.MaxAttempts).
		Set("backoff_base_ms = ?", m.BackoffBaseMs).
		Set("rate_limit_per_minute = ?", m.RateLimitPerMinute).
		Set("active = ?", m.Active).
		Set("metadata = ?", m.Metadata).
		Set("updated_at = ?", now()).
		Where("id = ?", m.ID).
		Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.sdb.NewDelete((*endpointModel)(nil)).
		Where("id = ?", epID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	q := s.sdb.NewSelect(&models)

	if opts.Active != nil {
		q = q.Where("active = ?", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromEndpointModel)
}

func (s *Store) ListActiveEndpoints(ctx context.Context) ([]*endpoint.Endpoint, error) {
	active := true
	return s.ListEndpoints(ctx, endpoint.ListOpts{Active: &active})
}

func (s *Store) SetActive(ctx context.Context, epID id.ID, active bool) error {
	res, err := s.sdb.NewUpdate((*endpointModel)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", now()).
		Where("id = ?", epID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

// RecordAttempt increments the counters in a single statement so concurrent
// workers never lose an update.
func (s *Store) RecordAttempt(ctx context.Context, epID id.ID, success bool, at time.Time) error {
	q := s.sdb.NewUpdate((*endpointModel)(nil)).
		Set("total_deliveries = total_deliveries + 1").
		Set("last_attempt_at = ?", at)
	if success {
		q = q.Set("successful_deliveries = successful_deliveries + 1").
			Set("last_success_at = ?", at)
	} else {
		q = q.Set("failed_deliveries = failed_deliveries + 1")
	}
	res, err := q.Where("id = ?", epID.String()).Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	if evt.IdempotencyKey != "" {
		res, err := s.sdb.NewInsert(m).
			OnConflict("(idempotency_key) WHERE idempotency_key != '' DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return beacon.ErrDuplicateEvent
		}
		return nil
	}

	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	return s.getEvent(ctx, "id = ?", evtID.String())
}

func (s *Store) GetEventByIdempotencyKey(ctx context.Context, key string) (*event.Event, error) {
	if key == "" {
		return nil, beacon.ErrEventNotFound
	}
	return s.getEvent(ctx, "idempotency_key = ?", key)
}

func (s *Store) getEvent(ctx context.Context, where string, arg any) (*event.Event, error) {
	m := new(eventModel)
	err := s.sdb.NewSelect(m).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, beacon.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.sdb.NewSelect(&models)

	if opts.Type != "" {
		q = q.Where("type = ?", opts.Type)
	}
	if opts.Processed != nil {
		q = q.Where("processed = ?", *opts.Processed)
	}
	if opts.From != nil {
		q = q.Where("created_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("created_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromEventModel)
}

func (s *Store) MarkEventProcessed(ctx context.Context, evtID id.ID, counts event.Counts, at time.Time) error {
	res, err := s.sdb.NewUpdate((*eventModel)(nil)).
		Set("processed = ?", true).
		Set("processed_at = ?", at).
		Set("delivery_count = ?", counts.Deliveries).
		Set("success_count = ?", counts.Succeeded).
		Set("failure_count = ?", counts.Failed).
		Set("updated_at = ?", at).
		Where("id = ?", evtID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrEventNotFound)
}

// ==================== Delivery Store ====================

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	_, err := s.sdb.NewInsert(toDeliveryModel(d)).Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", delID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, beacon.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	res, err := s.sdb.NewUpdate(toDeliveryModel(d)).WherePK().Exec(ctx)
	return affected(res, err, beacon.ErrDeliveryNotFound)
}

// ClaimRetries moves due retries to processing. SQLite serializes writers,
// so the UPDATE ... RETURNING is atomic without row locks.
func (s *Store) ClaimRetries(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	if limit <= 0 {
		limit = -1
	}
	var models []deliveryModel
	err := s.sdb.NewRaw(`
		UPDATE beacon_deliveries
		SET state = 'processing',
		    attempt_number = attempt_number + 1,
		    next_retry_at = NULL,
		    updated_at = ?
		WHERE id IN (
			SELECT id FROM beacon_deliveries
			WHERE state = 'retry'
			  AND attempt_number < max_attempts
			  AND next_retry_at IS NOT NULL
			  AND next_retry_at <= ?
			ORDER BY next_retry_at ASC
			LIMIT ?
		)
		RETURNING *
	`, at, at, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	return convert(models, fromDeliveryModel)
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	q := s.sdb.NewSelect(&models)

	if !opts.EndpointID.IsNil() {
		q = q.Where("endpoint_id = ?", opts.EndpointID.String())
	}
	if !opts.EventID.IsNil() {
		q = q.Where("event_id = ?", opts.EventID.String())
	}
	if opts.State != "" {
		q = q.Where("state = ?", string(opts.State))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromDeliveryModel)
}

func (s *Store) CountOpenDeliveries(ctx context.Context, epID id.ID) (int64, error) {
	return s.sdb.NewSelect((*deliveryModel)(nil)).
		Where("endpoint_id = ?", epID.String()).
		Where("state IN (?, ?, ?)",
			string(delivery.StatePending),
			string(delivery.StateProcessing),
			string(delivery.StateRetry)).
		Count(ctx)
}

func (s *Store) CountDeliveriesByState(ctx context.Context) (map[delivery.State]int64, error) {
	counts := make(map[delivery.State]int64)
	for _, state := range delivery.States {
		n, err := s.sdb.NewSelect((*deliveryModel)(nil)).
			Where("state = ?", string(state)).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[state] = n
		}
	}
	return counts, nil
}

func (s *Store) CreateAttempt(ctx context.Context, a *delivery.Attempt) error {
	_, err := s.sdb.NewInsert(toAttemptModel(a)).Exec(ctx)
	return err
}

func (s *Store) ListAttempts(ctx context.Context, delID id.ID) ([]*delivery.Attempt, error) {
	var models []attemptModel
	if err := s.sdb.NewSelect(&models).
		Where("delivery_id = ?", delID.String()).
		OrderExpr("attempt_number ASC, attempted_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromAttemptModel)
}

// ==================== Workflow Store ====================

func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	_, err := s.sdb.NewInsert(toWorkflowModel(wf)).Exec(ctx)
	return err
}

func (s *Store) GetWorkflow(ctx context.Context, wfID id.ID) (*workflow.Workflow, error) {
	m := new(workflowModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", wfID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, beacon.ErrWorkflowNotFound
		}
		return nil, err
	}
	return fromWorkflowModel(m)
}

// UpdateWorkflow leaves the run metrics untouched.
func (s *Store) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	m := toWorkflowModel(wf)
	res, err := s.sdb.NewUpdate((*workflowModel)(nil)).
		Set("name = ?", m.Name).
		Set("description = ?", m.Description).
		Set("steps = ?", m.Steps).
		Set("trigger_type = ?", m.TriggerType).
		Set("trigger_event_type = ?", m.TriggerEventType).
		Set("audience = ?", m.Audience).
		Set("status = ?", m.Status).
		Set("activated_at = ?", m.ActivatedAt).
		Set("paused_at = ?", m.PausedAt).
		Set("completed_at = ?", m.CompletedAt).
		Set("metadata = ?", m.Metadata).
		Set("updated_at = ?", m.UpdatedAt).
		Where("id = ?", m.ID).
		Exec(ctx)
	return affected(res, err, beacon.ErrWorkflowNotFound)
}

func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	var models []workflowModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromWorkflowModel)
}

func (s *Store) ListWorkflowsByTrigger(ctx context.Context, eventType string) ([]*workflow.Workflow, error) {
	var models []workflowModel
	if err := s.sdb.NewSelect(&models).
		Where("status = ?", string(workflow.StatusActive)).
		Where("trigger_type = ?", string(workflow.TriggerEvent)).
		Where("trigger_event_type = ?", eventType).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromWorkflowModel)
}

func (s *Store) IncrWorkflowMetrics(ctx context.Context, wfID id.ID, delta workflow.Metrics) error {
	res, err := s.sdb.NewUpdate((*workflowModel)(nil)).
		Set("runs_started = runs_started + ?", delta.RunsStarted).
		Set("runs_completed = runs_completed + ?", delta.RunsCompleted).
		Set("runs_failed = runs_failed + ?", delta.RunsFailed).
		Set("runs_cancelled = runs_cancelled + ?", delta.RunsCancelled).
		Where("id = ?", wfID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrWorkflowNotFound)
}

// ==================== Run Store ====================

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	_, err := s.sdb.NewInsert(toRunModel(r)).Exec(ctx)
	return err
}

func (s *Store) GetRun(ctx context.Context, runID id.ID) (*run.Run, error) {
	m := new(runModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", runID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, beacon.ErrRunNotFound
		}
		return nil, err
	}
	return fromRunModel(m)
}

func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	var models []runModel
	q := s.sdb.NewSelect(&models)

	if !opts.WorkflowID.IsNil() {
		q = q.Where("workflow_id = ?", opts.WorkflowID.String())
	}
	if !opts.SubjectID.IsNil() {
		q = q.Where("subject_id = ?", opts.SubjectID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromRunModel)
}

// UpdateRunProgress only touches started runs, so a concurrent cancel is
// never overwritten.
func (s *Store) UpdateRunProgress(ctx context.Context, runID id.ID, currentStep int, vars map[string]any, at time.Time) error {
	res, err := s.sdb.NewUpdate((*runModel)(nil)).
		Set("current_step = ?", currentStep).
		Set("variables = ?", encodeJSON(vars, "{}")).
		Set("updated_at = ?", at).
		Where("id = ?", runID.String()).
		Where("status = ?", string(run.StatusStarted)).
		Exec(ctx)
	return s.guardedRun(ctx, runID, res, err)
}

func (s *Store) FinishRun(ctx context.Context, runID id.ID, status run.Status, errMsg string, at time.Time) error {
	res, err := s.sdb.NewUpdate((*runModel)(nil)).
		Set("status = ?", string(status)).
		Set("error = ?", errMsg).
		Set("completed_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", runID.String()).
		Where("status = ?", string(run.StatusStarted)).
		Exec(ctx)
	return s.guardedRun(ctx, runID, res, err)
}

// guardedRun tells a missing run apart from one that is no longer started.
func (s *Store) guardedRun(ctx context.Context, runID id.ID, res result, err error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}
	return beacon.ErrRunNotActive
}

func (s *Store) CreateStepLog(ctx context.Context, l *run.StepLog) error {
	_, err := s.sdb.NewInsert(toStepLogModel(l)).Exec(ctx)
	return err
}

func (s *Store) ListStepLogs(ctx context.Context, runID id.ID) ([]*run.StepLog, error) {
	var models []stepLogModel
	if err := s.sdb.NewSelect(&models).
		Where("run_id = ?", runID.String()).
		OrderExpr("started_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromStepLogModel)
}

// ==================== Subject Store ====================

func (s *Store) GetSubject(ctx context.Context, subjID id.ID) (*subject.Subject, error) {
	m := new(subjectModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", subjID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, beacon.ErrSubjectNotFound
		}
		return nil, err
	}
	return fromSubjectModel(m)
}

func (s *Store) PutSubject(ctx context.Context, subj *subject.Subject) error {
	_, err := s.sdb.NewInsert(toSubjectModel(subj)).
		OnConflict("(id) DO UPDATE").
		Set("fields = EXCLUDED.fields").
		Set("tags = EXCLUDED.tags").
		Set("score = EXCLUDED.score").
		Set("segments = EXCLUDED.segments").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) SetSubjectField(ctx context.Context, subjID id.ID, field string, value any) error {
	return s.mutateSubject(ctx, subjID, func(subj *subject.Subject) {
		if subj.Fields == nil {
			subj.Fields = make(map[string]any)
		}
		subj.Fields[field] = value
	})
}

func (s *Store) AddSubjectTag(ctx context.Context, subjID id.ID, tag string) error {
	return s.mutateSubject(ctx, subjID, func(subj *subject.Subject) {
		if !slices.Contains(subj.Tags, tag) {
			subj.Tags = append(subj.Tags, tag)
		}
	})
}

// AdjustSubjectScore applies delta in SQL and returns the stored result.
func (s *Store) AdjustSubjectScore(ctx context.Context, subjID id.ID, delta float64) (float64, error) {
	var models []subjectModel
	err := s.sdb.NewRaw(`
		UPDATE beacon_subjects
		SET score = score + ?, updated_at = ?
		WHERE id = ?
		RETURNING *
	`, delta, now(), subjID.String()).Scan(ctx, &models)
	if err != nil {
		return 0, err
	}
	if len(models) == 0 {
		return 0, beacon.ErrSubjectNotFound
	}
	return models[0].Score, nil
}

func (s *Store) AddToSegment(ctx context.Context, subjID id.ID, segment string) error {
	return s.mutateSubject(ctx, subjID, func(subj *subject.Subject) {
		if !slices.Contains(subj.Segments, segment) {
			subj.Segments = append(subj.Segments, segment)
		}
	})
}

func (s *Store) RemoveFromSegment(ctx context.Context, subjID id.ID, segment string) error {
	return s.mutateSubject(ctx, subjID, func(subj *subject.Subject) {
		subj.Segments = slices.DeleteFunc(subj.Segments, func(v string) bool { return v == segment })
	})
}

// mutateSubject is a read-modify-write of the JSON columns. Runs for one
// subject are not serialized across processes, so the last writer wins.
func (s *Store) mutateSubject(ctx context.Context, subjID id.ID, fn func(*subject.Subject)) error {
	subj, err := s.GetSubject(ctx, subjID)
	if err != nil {
		return err
	}
	fn(subj)
	m := toSubjectModel(subj)
	res, err := s.sdb.NewUpdate((*subjectModel)(nil)).
		Set("fields = ?", m.Fields).
		Set("tags = ?", m.Tags).
		Set("segments = ?", m.Segments).
		Set("updated_at = ?", now()).
		Where("id = ?", m.ID).
		Exec(ctx)
	return affected(res, err, beacon.ErrSubjectNotFound)
}

func (s *Store) CreateTask(ctx context.Context, t *subject.Task) error {
	_, err := s.sdb.NewInsert(toTaskModel(t)).Exec(ctx)
	return err
}

func (s *Store) ListTasks(ctx context.Context, subjID id.ID) ([]*subject.Task, error) {
	var models []taskModel
	if err := s.sdb.NewSelect(&models).
		Where("subject_id = ?", subjID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromTaskModel)
}

// ==================== Helpers ====================

// convert maps scanned rows to domain records.
func convert[M, T any](models []M, from func(*M) (*T, error)) ([]*T, error) {
	result := make([]*T, len(models))
	for i := range models {
		v, err := from(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

// result is the part of a grove exec result the store inspects.
type result interface {
	RowsAffected() (int64, error)
}

// affected maps a zero-row write to notFound.
func affected(res result, err, notFound error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
