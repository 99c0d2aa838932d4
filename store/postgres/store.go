package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("beacon/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %w", beacon.ErrMigrationFailed, err)
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
	_, err := s.pg.NewInsert(toEndpointModel(ep)).Exec(ctx)
	return err
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", epID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, beacon.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

// UpdateEndpoint writes the configuration columns only; the counters belong
// to RecordAttempt.
func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	res, err := s.pg.NewUpdate((*endpointModel)(nil)).
		Set("url = $1", m.URL).
		Set("description = $2", m.Description).
		Set("method = $3", m.Method).
		Set("secret = $4", m.Secret).
		Set("event_types = $5", m.EventTypes).
		Set("filters = $6::jsonb", jsonArg(m.Filters)).
		Set("headers = $7::jsonb", jsonArg(m.Headers)).
		Set("timeout_ms = $8", m.TimeoutMs).
		Set("max_attempts = $9", m.MaxAttempts).
		Set("backoff_base_ms = $10", m.BackoffBaseMs).
		Set("rate_limit_per_minute = $11", m.RateLimitPerMinute).
		Set("active = $12", m.Active).
		Set("metadata = $13::jsonb", jsonArg(m.Metadata)).
		Set("updated_at = $14", time.Now().UTC()).
		Where("id = $15", m.ID).
		Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.pg.NewDelete((*endpointModel)(nil)).
		Where("id = $1", epID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	q := s.pg.NewSelect(&models)

	if opts.Active != nil {
		q = q.Where("active = $1", *opts.Active)
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
	res, err := s.pg.NewUpdate((*endpointModel)(nil)).
		Set("active = $1", active).
		Set("updated_at = $2", time.Now().UTC()).
		Where("id = $3", epID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

func (s *Store) RecordAttempt(ctx context.Context, epID id.ID, success bool, at time.Time) error {
	q := s.pg.NewUpdate((*endpointModel)(nil)).
		Set("total_deliveries = total_deliveries + 1").
		Set("last_attempt_at = $1", at)
	if success {
		q = q.Set("successful_deliveries = successful_deliveries + 1").
			Set("last_success_at = $1")
	} else {
		q = q.Set("failed_deliveries = failed_deliveries + 1")
	}
	res, err := q.Where("id = $2", epID.String()).Exec(ctx)
	return affected(res, err, beacon.ErrEndpointNotFound)
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	if evt.IdempotencyKey != "" {
		res, err := s.pg.NewInsert(m).
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

	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	return s.getEvent(ctx, "id = $1", evtID.String())
}

func (s *Store) GetEventByIdempotencyKey(ctx context.Context, key string) (*event.Event, error) {
	if key == "" {
		return nil, beacon.ErrEventNotFound
	}
	return s.getEvent(ctx, "idempotency_key = $1", key)
}

func (s *Store) getEvent(ctx context.Context, where string, arg any) (*event.Event, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), opts.Type)
	}
	if opts.Processed != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("processed = $%d", argIdx), *opts.Processed)
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at <= $%d", argIdx), *opts.To)
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
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("processed = TRUE").
		Set("processed_at = $1", at).
		Set("delivery_count = $2", counts.Deliveries).
		Set("success_count = $3", counts.Succeeded).
		Set("failure_count = $4", counts.Failed).
		Set("updated_at = $1").
		Where("id = $5", evtID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrEventNotFound)
}

// ==================== Delivery Store ====================

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	_, err := s.pg.NewInsert(toDeliveryModel(d)).Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", delID.String()).
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
	res, err := s.pg.NewUpdate(toDeliveryModel(d)).WherePK().Exec(ctx)
	return affected(res, err, beacon.ErrDeliveryNotFound)
}

// ClaimRetries uses FOR UPDATE SKIP LOCKED so concurrent sweepers on
// different nodes claim disjoint batches.
func (s *Store) ClaimRetries(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	var models []deliveryModel
	err := s.pg.NewRaw(`
		UPDATE beacon_deliveries
		SET state = 'processing',
		    attempt_number = attempt_number + 1,
		    next_retry_at = NULL,
		    updated_at = $1
		WHERE id IN (
			SELECT id FROM beacon_deliveries
			WHERE state = 'retry'
			  AND attempt_number < max_attempts
			  AND next_retry_at <= $1
			ORDER BY next_retry_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, at, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	return convert(models, fromDeliveryModel)
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.EndpointID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("endpoint_id = $%d", argIdx), opts.EndpointID.String())
	}
	if !opts.EventID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("event_id = $%d", argIdx), opts.EventID.String())
	}
	if opts.State != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("state = $%d", argIdx), string(opts.State))
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
	return s.pg.NewSelect((*deliveryModel)(nil)).
		Where("endpoint_id = $1", epID.String()).
		Where("state IN ('pending', 'processing', 'retry')").
		Count(ctx)
}

func (s *Store) CountDeliveriesByState(ctx context.Context) (map[delivery.State]int64, error) {
	counts := make(map[delivery.State]int64)
	for _, state := range delivery.States {
		n, err := s.pg.NewSelect((*deliveryModel)(nil)).
			Where("state = $1", string(state)).
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
	_, err := s.pg.NewInsert(toAttemptModel(a)).Exec(ctx)
	return err
}

func (s *Store) ListAttempts(ctx context.Context, delID id.ID) ([]*delivery.Attempt, error) {
	var models []attemptModel
	if err := s.pg.NewSelect(&models).
		Where("delivery_id = $1", delID.String()).
		OrderExpr("attempt_number ASC, attempted_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromAttemptModel)
}

// ==================== Workflow Store ====================

func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	_, err := s.pg.NewInsert(toWorkflowModel(wf)).Exec(ctx)
	return err
}

func (s *Store) GetWorkflow(ctx context.Context, wfID id.ID) (*workflow.Workflow, error) {
	m := new(workflowModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", wfID.String()).
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
	res, err := s.pg.NewUpdate((*workflowModel)(nil)).
		Set("name = $1", m.Name).
		Set("description = $2", m.Description).
		Set("steps = $3::jsonb", jsonArg(m.Steps)).
		Set("trigger_type = $4", m.TriggerType).
		Set("trigger_event_type = $5", m.TriggerEventType).
		Set("audience = $6::jsonb", jsonArg(m.Audience)).
		Set("status = $7", m.Status).
		Set("activated_at = $8", m.ActivatedAt).
		Set("paused_at = $9", m.PausedAt).
		Set("completed_at = $10", m.CompletedAt).
		Set("metadata = $11::jsonb", jsonArg(m.Metadata)).
		Set("updated_at = $12", m.UpdatedAt).
		Where("id = $13", m.ID).
		Exec(ctx)
	return affected(res, err, beacon.ErrWorkflowNotFound)
}

func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	var models []workflowModel
	q := s.pg.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = $1", string(opts.Status))
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
	if err := s.pg.NewSelect(&models).
		Where("status = $1", string(workflow.StatusActive)).
		Where("trigger_type = $2", string(workflow.TriggerEvent)).
		Where("trigger_event_type = $3", eventType).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromWorkflowModel)
}

func (s *Store) IncrWorkflowMetrics(ctx context.Context, wfID id.ID, delta workflow.Metrics) error {
	res, err := s.pg.NewUpdate((*workflowModel)(nil)).
		Set("runs_started = runs_started + $1", delta.RunsStarted).
		Set("runs_completed = runs_completed + $2", delta.RunsCompleted).
		Set("runs_failed = runs_failed + $3", delta.RunsFailed).
		Set("runs_cancelled = runs_cancelled + $4", delta.RunsCancelled).
		Where("id = $5", wfID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrWorkflowNotFound)
}

// ==================== Run Store ====================

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	_, err := s.pg.NewInsert(toRunModel(r)).Exec(ctx)
	return err
}

func (s *Store) GetRun(ctx context.Context, runID id.ID) (*run.Run, error) {
	m := new(runModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", runID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.WorkflowID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("workflow_id = $%d", argIdx), opts.WorkflowID.String())
	}
	if !opts.SubjectID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("subject_id = $%d", argIdx), opts.SubjectID.String())
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
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
	res, err := s.pg.NewUpdate((*runModel)(nil)).
		Set("current_step = $1", currentStep).
		Set("variables = $2::jsonb", jsonArg(vars)).
		Set("updated_at = $3", at).
		Where("id = $4", runID.String()).
		Where("status = 'started'").
		Exec(ctx)
	return s.guardedRun(ctx, runID, res, err)
}

func (s *Store) FinishRun(ctx context.Context, runID id.ID, status run.Status, errMsg string, at time.Time) error {
	res, err := s.pg.NewUpdate((*runModel)(nil)).
		Set("status = $1", string(status)).
		Set("error = $2", errMsg).
		Set("completed_at = $3", at).
		Set("updated_at = $3").
		Where("id = $4", runID.String()).
		Where("status = 'started'").
		Exec(ctx)
	return s.guardedRun(ctx, runID, res, err)
}

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
	_, err := s.pg.NewInsert(toStepLogModel(l)).Exec(ctx)
	return err
}

func (s *Store) ListStepLogs(ctx context.Context, runID id.ID) ([]*run.StepLog, error) {
	var models []stepLogModel
	if err := s.pg.NewSelect(&models).
		Where("run_id = $1", runID.String()).
		OrderExpr("started_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromStepLogModel)
}

// ==================== Subject Store ====================

func (s *Store) GetSubject(ctx context.Context, subjID id.ID) (*subject.Subject, error) {
	m := new(subjectModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", subjID.String()).
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
	_, err := s.pg.NewInsert(toSubjectModel(subj)).
		OnConflict("(id) DO UPDATE").
		Set("fields = EXCLUDED.fields").
		Set("tags = EXCLUDED.tags").
		Set("score = EXCLUDED.score").
		Set("segments = EXCLUDED.segments").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// The subject mutations below run as single statements over the jsonb and
// array columns, so concurrent runs against one subject do not lose writes.

func (s *Store) SetSubjectField(ctx context.Context, subjID id.ID, field string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode subject field %q: %w", field, err)
	}
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("fields = jsonb_set(COALESCE(fields, '{}'::jsonb), ARRAY[$1::text], $2::jsonb, TRUE)", field, string(raw)).
		Set("updated_at = $3", time.Now().UTC()).
		Where("id = $4", subjID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrSubjectNotFound)
}

func (s *Store) AddSubjectTag(ctx context.Context, subjID id.ID, tag string) error {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("tags = CASE WHEN $1::text = ANY(tags) THEN tags ELSE array_append(tags, $1::text) END", tag).
		Set("updated_at = $2", time.Now().UTC()).
		Where("id = $3", subjID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrSubjectNotFound)
}

func (s *Store) AdjustSubjectScore(ctx context.Context, subjID id.ID, delta float64) (float64, error) {
	var models []subjectModel
	err := s.pg.NewRaw(`
		UPDATE beacon_subjects
		SET score = score + $1, updated_at = $2
		WHERE id = $3
		RETURNING *
	`, delta, time.Now().UTC(), subjID.String()).Scan(ctx, &models)
	if err != nil {
		return 0, err
	}
	if len(models) == 0 {
		return 0, beacon.ErrSubjectNotFound
	}
	return models[0].Score, nil
}

func (s *Store) AddToSegment(ctx context.Context, subjID id.ID, segment string) error {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("segments = CASE WHEN $1::text = ANY(segments) THEN segments ELSE array_append(segments, $1::text) END", segment).
		Set("updated_at = $2", time.Now().UTC()).
		Where("id = $3", subjID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrSubjectNotFound)
}

func (s *Store) RemoveFromSegment(ctx context.Context, subjID id.ID, segment string) error {
	res, err := s.pg.NewUpdate((*subjectModel)(nil)).
		Set("segments = array_remove(segments, $1::text)", segment).
		Set("updated_at = $2", time.Now().UTC()).
		Where("id = $3", subjID.String()).
		Exec(ctx)
	return affected(res, err, beacon.ErrSubjectNotFound)
}

func (s *Store) CreateTask(ctx context.Context, t *subject.Task) error {
	_, err := s.pg.NewInsert(toTaskModel(t)).Exec(ctx)
	return err
}

func (s *Store) ListTasks(ctx context.Context, subjID id.ID) ([]*subject.Task, error) {
	var models []taskModel
	if err := s.pg.NewSelect(&models).
		Where("subject_id = $1", subjID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromTaskModel)
}

// ==================== Helpers ====================

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

type result interface {
	RowsAffected() (int64, error)
}

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

// jsonArg encodes v for an explicit ::jsonb parameter. A nil value is
// stored as JSON null.
func jsonArg(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
