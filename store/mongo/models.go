package mongo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/grove"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// normalize turns decoded BSON containers back into the plain maps and
// slices the condition evaluator and template renderer walk.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return int64(t)
	case bson.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeConditions(conds []condition.Condition) []condition.Condition {
	for i := range conds {
		conds[i].Value = normalize(conds[i].Value)
	}
	return conds
}

func parseOptionalID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}

// --- Endpoint models ---

type endpointModel struct {
	grove.BaseModel `grove:"table:beacon_endpoints"`

	ID                   string            `grove:"id,pk"                 bson:"_id"`
	URL                  string            `grove:"url"                   bson:"url"`
	Description          string            `grove:"description"           bson:"description"`
	Method               string            `grove:"method"                bson:"method"`
	Secret               string            `grove:"secret"                bson:"secret"`
	EventTypes           []string          `grove:"event_types"           bson:"event_types"`
	Filters              map[string]any    `grove:"filters"               bson:"filters,omitempty"`
	Headers              map[string]string `grove:"headers"               bson:"headers,omitempty"`
	TimeoutMs            int64             `grove:"timeout_ms"            bson:"timeout_ms"`
	MaxAttempts          int               `grove:"max_attempts"          bson:"max_attempts"`
	BackoffBaseMs        int64             `grove:"backoff_base_ms"       bson:"backoff_base_ms"`
	RateLimitPerMinute   int               `grove:"rate_limit_per_minute" bson:"rate_limit_per_minute"`
	Active               bool              `grove:"active"                bson:"active"`
	TotalDeliveries      int64             `grove:"total_deliveries"      bson:"total_deliveries"`
	SuccessfulDeliveries int64             `grove:"successful_deliveries" bson:"successful_deliveries"`
	FailedDeliveries     int64             `grove:"failed_deliveries"     bson:"failed_deliveries"`
	LastAttemptAt        *time.Time        `grove:"last_attempt_at"       bson:"last_attempt_at,omitempty"`
	LastSuccessAt        *time.Time        `grove:"last_success_at"       bson:"last_success_at,omitempty"`
	Metadata             map[string]string `grove:"metadata"              bson:"metadata,omitempty"`
	CreatedAt            time.Time         `grove:"created_at"            bson:"created_at"`
	UpdatedAt            time.Time         `grove:"updated_at"            bson:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	eventTypes := ep.EventTypes
	if eventTypes == nil {
		eventTypes = []string{}
	}
	return &endpointModel{
		ID:                   ep.ID.String(),
		URL:                  ep.URL,
		Description:          ep.Description,
		Method:               ep.Method,
		Secret:               ep.Secret,
		EventTypes:           eventTypes,
		Filters:              ep.Filters,
		Headers:              ep.Headers,
		TimeoutMs:            ep.Timeout.Milliseconds(),
		MaxAttempts:          ep.MaxAttempts,
		BackoffBaseMs:        ep.BackoffBase.Milliseconds(),
		RateLimitPerMinute:   ep.RateLimitPerMinute,
		Active:               ep.Active,
		TotalDeliveries:      ep.TotalDeliveries,
		SuccessfulDeliveries: ep.SuccessfulDeliveries,
		FailedDeliveries:     ep.FailedDeliveries,
		LastAttemptAt:        ep.LastAttemptAt,
		LastSuccessAt:        ep.LastSuccessAt,
		Metadata:             ep.Metadata,
		CreatedAt:            ep.CreatedAt,
		UpdatedAt:            ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	return &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   epID,
		URL:                  m.URL,
		Description:          m.Description,
		Method:               m.Method,
		Secret:               m.Secret,
		EventTypes:           m.EventTypes,
		Filters:              normalizeMap(m.Filters),
		Headers:              m.Headers,
		Timeout:              time.Duration(m.TimeoutMs) * time.Millisecond,
		MaxAttempts:          m.MaxAttempts,
		BackoffBase:          time.Duration(m.BackoffBaseMs) * time.Millisecond,
		RateLimitPerMinute:   m.RateLimitPerMinute,
		Active:               m.Active,
		TotalDeliveries:      m.TotalDeliveries,
		SuccessfulDeliveries: m.SuccessfulDeliveries,
		FailedDeliveries:     m.FailedDeliveries,
		LastAttemptAt:        m.LastAttemptAt,
		LastSuccessAt:        m.LastSuccessAt,
		Metadata:             m.Metadata,
	}, nil
}

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:beacon_events"`

	ID             string         `grove:"id,pk"           bson:"_id"`
	Type           string         `grove:"type"            bson:"type"`
	SourceType     string         `grove:"source_type"     bson:"source_type"`
	SourceID       string         `grove:"source_id"       bson:"source_id"`
	Data           map[string]any `grove:"data"            bson:"data,omitempty"`
	Metadata       map[string]any `grove:"metadata"        bson:"metadata,omitempty"`
	Context        map[string]any `grove:"context"         bson:"context,omitempty"`
	IdempotencyKey string         `grove:"idempotency_key" bson:"idempotency_key,omitempty"`
	OccurredAt     time.Time      `grove:"occurred_at"     bson:"occurred_at"`
	Processed      bool           `grove:"processed"       bson:"processed"`
	ProcessedAt    *time.Time     `grove:"processed_at"    bson:"processed_at,omitempty"`
	DeliveryCount  int            `grove:"delivery_count"  bson:"delivery_count"`
	SuccessCount   int            `grove:"success_count"   bson:"success_count"`
	FailureCount   int            `grove:"failure_count"   bson:"failure_count"`
	CreatedAt      time.Time      `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time      `grove:"updated_at"      bson:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:             evt.ID.String(),
		Type:           evt.Type,
		SourceType:     evt.SourceType,
		SourceID:       evt.SourceID,
		Data:           evt.Data,
		Metadata:       evt.Metadata,
		Context:        evt.Context,
		IdempotencyKey: evt.IdempotencyKey,
		OccurredAt:     evt.OccurredAt,
		Processed:      evt.Processed,
		ProcessedAt:    evt.ProcessedAt,
		DeliveryCount:  evt.DeliveryCount,
		SuccessCount:   evt.SuccessCount,
		FailureCount:   evt.FailureCount,
		CreatedAt:      evt.CreatedAt,
		UpdatedAt:      evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             evtID,
		Type:           m.Type,
		SourceType:     m.SourceType,
		SourceID:       m.SourceID,
		Data:           normalizeMap(m.Data),
		Metadata:       normalizeMap(m.Metadata),
		Context:        normalizeMap(m.Context),
		IdempotencyKey: m.IdempotencyKey,
		OccurredAt:     m.OccurredAt,
		Processed:      m.Processed,
		ProcessedAt:    m.ProcessedAt,
		DeliveryCount:  m.DeliveryCount,
		SuccessCount:   m.SuccessCount,
		FailureCount:   m.FailureCount,
	}, nil
}

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:beacon_deliveries"`

	ID              string              `grove:"id,pk"            bson:"_id"`
	EventID         string              `grove:"event_id"         bson:"event_id"`
	EventType       string              `grove:"event_type"       bson:"event_type"`
	EndpointID      string              `grove:"endpoint_id"      bson:"endpoint_id"`
	State           string              `grove:"state"            bson:"state"`
	Method          string              `grove:"method"           bson:"method"`
	URL             string              `grove:"url"              bson:"url"`
	RequestHeaders  map[string][]string `grove:"request_headers"  bson:"request_headers,omitempty"`
	RequestBody     string              `grove:"request_body"     bson:"request_body"`
	ResponseStatus  int                 `grove:"response_status"  bson:"response_status"`
	ResponseHeaders map[string][]string `grove:"response_headers" bson:"response_headers,omitempty"`
	ResponseBody    string              `grove:"response_body"    bson:"response_body"`
	LatencyMs       int64               `grove:"latency_ms"       bson:"latency_ms"`
	AttemptNumber   int                 `grove:"attempt_number"   bson:"attempt_number"`
	MaxAttempts     int                 `grove:"max_attempts"     bson:"max_attempts"`
	NextRetryAt     *time.Time          `grove:"next_retry_at"    bson:"next_retry_at"`
	LastAttemptAt   *time.Time          `grove:"last_attempt_at"  bson:"last_attempt_at,omitempty"`
	DeliveredAt     *time.Time          `grove:"delivered_at"     bson:"delivered_at,omitempty"`
	Error           string              `grove:"error"            bson:"error"`
	ErrorKind       string              `grove:"error_kind"       bson:"error_kind"`
	CreatedAt       time.Time           `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time           `grove:"updated_at"       bson:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:              d.ID.String(),
		EventID:         d.EventID.String(),
		EventType:       d.EventType,
		EndpointID:      d.EndpointID.String(),
		State:           string(d.State),
		Method:          d.Method,
		URL:             d.URL,
		RequestHeaders:  d.RequestHeaders,
		RequestBody:     string(d.RequestBody),
		ResponseStatus:  d.ResponseStatus,
		ResponseHeaders: d.ResponseHeaders,
		ResponseBody:    d.ResponseBody,
		LatencyMs:       d.LatencyMs,
		AttemptNumber:   d.AttemptNumber,
		MaxAttempts:     d.MaxAttempts,
		NextRetryAt:     d.NextRetryAt,
		LastAttemptAt:   d.LastAttemptAt,
		DeliveredAt:     d.DeliveredAt,
		Error:           d.Error,
		ErrorKind:       string(d.ErrorKind),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	evtID, err := parseOptionalID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	epID, err := parseOptionalID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	d := &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              delID,
		EventID:         evtID,
		EventType:       m.EventType,
		EndpointID:      epID,
		State:           delivery.State(m.State),
		Method:          m.Method,
		URL:             m.URL,
		RequestHeaders:  http.Header(m.RequestHeaders),
		ResponseStatus:  m.ResponseStatus,
		ResponseHeaders: http.Header(m.ResponseHeaders),
		ResponseBody:    m.ResponseBody,
		LatencyMs:       m.LatencyMs,
		AttemptNumber:   m.AttemptNumber,
		MaxAttempts:     m.MaxAttempts,
		NextRetryAt:     m.NextRetryAt,
		LastAttemptAt:   m.LastAttemptAt,
		DeliveredAt:     m.DeliveredAt,
		Error:           m.Error,
		ErrorKind:       delivery.ErrorKind(m.ErrorKind),
	}
	if m.RequestBody != "" {
		d.RequestBody = json.RawMessage(m.RequestBody)
	}
	return d, nil
}

type attemptModel struct {
	grove.BaseModel `grove:"table:beacon_attempts"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	DeliveryID    string    `grove:"delivery_id"    bson:"delivery_id"`
	EndpointID    string    `grove:"endpoint_id"    bson:"endpoint_id"`
	AttemptNumber int       `grove:"attempt_number" bson:"attempt_number"`
	StatusCode    int       `grove:"status_code"    bson:"status_code"`
	Error         string    `grove:"error"          bson:"error"`
	ErrorKind     string    `grove:"error_kind"     bson:"error_kind"`
	LatencyMs     int64     `grove:"latency_ms"     bson:"latency_ms"`
	AttemptedAt   time.Time `grove:"attempted_at"   bson:"attempted_at"`
}

func toAttemptModel(a *delivery.Attempt) *attemptModel {
	return &attemptModel{
		ID:            a.ID.String(),
		DeliveryID:    a.DeliveryID.String(),
		EndpointID:    a.EndpointID.String(),
		AttemptNumber: a.AttemptNumber,
		StatusCode:    a.StatusCode,
		Error:         a.Error,
		ErrorKind:     string(a.ErrorKind),
		LatencyMs:     a.LatencyMs,
		AttemptedAt:   a.AttemptedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*delivery.Attempt, error) {
	attID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	epID, err := parseOptionalID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	return &delivery.Attempt{
		ID:            attID,
		DeliveryID:    delID,
		EndpointID:    epID,
		AttemptNumber: m.AttemptNumber,
		StatusCode:    m.StatusCode,
		Error:         m.Error,
		ErrorKind:     delivery.ErrorKind(m.ErrorKind),
		LatencyMs:     m.LatencyMs,
		AttemptedAt:   m.AttemptedAt,
	}, nil
}

// --- Workflow models ---

type workflowModel struct {
	grove.BaseModel `grove:"table:beacon_workflows"`

	ID               string                `grove:"id,pk"              bson:"_id"`
	Name             string                `grove:"name"               bson:"name"`
	Description      string                `grove:"description"        bson:"description"`
	Steps            []workflow.Step       `grove:"steps"              bson:"steps"`
	TriggerType      string                `grove:"trigger_type"       bson:"trigger_type"`
	TriggerEventType string                `grove:"trigger_event_type" bson:"trigger_event_type"`
	Audience         []condition.Condition `grove:"audience"           bson:"audience,omitempty"`
	Status           string                `grove:"status"             bson:"status"`
	ActivatedAt      *time.Time            `grove:"activated_at"       bson:"activated_at,omitempty"`
	PausedAt         *time.Time            `grove:"paused_at"          bson:"paused_at,omitempty"`
	CompletedAt      *time.Time            `grove:"completed_at"       bson:"completed_at,omitempty"`
	RunsStarted      int64                 `grove:"runs_started"       bson:"runs_started"`
	RunsCompleted    int64                 `grove:"runs_completed"     bson:"runs_completed"`
	RunsFailed       int64                 `grove:"runs_failed"        bson:"runs_failed"`
	RunsCancelled    int64                 `grove:"runs_cancelled"     bson:"runs_cancelled"`
	Metadata         map[string]string     `grove:"metadata"           bson:"metadata,omitempty"`
	CreatedAt        time.Time             `grove:"created_at"         bson:"created_at"`
	UpdatedAt        time.Time             `grove:"updated_at"         bson:"updated_at"`
}

func toWorkflowModel(wf *workflow.Workflow) *workflowModel {
	return &workflowModel{
		ID:               wf.ID.String(),
		Name:             wf.Name,
		Description:      wf.Description,
		Steps:            wf.Steps,
		TriggerType:      string(wf.Trigger.Type),
		TriggerEventType: wf.Trigger.EventType,
		Audience:         wf.Audience,
		Status:           string(wf.Status),
		ActivatedAt:      wf.ActivatedAt,
		PausedAt:         wf.PausedAt,
		CompletedAt:      wf.CompletedAt,
		RunsStarted:      wf.Metrics.RunsStarted,
		RunsCompleted:    wf.Metrics.RunsCompleted,
		RunsFailed:       wf.Metrics.RunsFailed,
		RunsCancelled:    wf.Metrics.RunsCancelled,
		Metadata:         wf.Metadata,
		CreatedAt:        wf.CreatedAt,
		UpdatedAt:        wf.UpdatedAt,
	}
}

func fromWorkflowModel(m *workflowModel) (*workflow.Workflow, error) {
	wfID, err := id.ParseWorkflowID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse workflow ID %q: %w", m.ID, err)
	}
	steps := m.Steps
	for i := range steps {
		steps[i].Config = normalizeMap(steps[i].Config)
		steps[i].Conditions = normalizeConditions(steps[i].Conditions)
	}
	return &workflow.Workflow{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          wfID,
		Name:        m.Name,
		Description: m.Description,
		Steps:       steps,
		Trigger: workflow.Trigger{
			Type:      workflow.TriggerType(m.TriggerType),
			EventType: m.TriggerEventType,
		},
		Audience:    normalizeConditions(m.Audience),
		Status:      workflow.Status(m.Status),
		ActivatedAt: m.ActivatedAt,
		PausedAt:    m.PausedAt,
		CompletedAt: m.CompletedAt,
		Metrics: workflow.Metrics{
			RunsStarted:   m.RunsStarted,
			RunsCompleted: m.RunsCompleted,
			RunsFailed:    m.RunsFailed,
			RunsCancelled: m.RunsCancelled,
		},
		Metadata: m.Metadata,
	}, nil
}

// --- Run models ---

type runModel struct {
	grove.BaseModel `grove:"table:beacon_runs"`

	ID            string         `grove:"id,pk"          bson:"_id"`
	WorkflowID    string         `grove:"workflow_id"    bson:"workflow_id"`
	SubjectID     string         `grove:"subject_id"     bson:"subject_id"`
	CurrentStep   int            `grove:"current_step"   bson:"current_step"`
	Variables     map[string]any `grove:"variables"      bson:"variables,omitempty"`
	Status        string         `grove:"status"         bson:"status"`
	TriggerSource string         `grove:"trigger_source" bson:"trigger_source"`
	EventID       string         `grove:"event_id"       bson:"event_id"`
	StartedAt     time.Time      `grove:"started_at"     bson:"started_at"`
	CompletedAt   *time.Time     `grove:"completed_at"   bson:"completed_at,omitempty"`
	Error         string         `grove:"error"          bson:"error"`
	CreatedAt     time.Time      `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time      `grove:"updated_at"     bson:"updated_at"`
}

func toRunModel(r *run.Run) *runModel {
	return &runModel{
		ID:            r.ID.String(),
		WorkflowID:    r.WorkflowID.String(),
		SubjectID:     r.SubjectID.String(),
		CurrentStep:   r.CurrentStep,
		Variables:     r.Variables,
		Status:        string(r.Status),
		TriggerSource: string(r.TriggerSource),
		EventID:       r.EventID.String(),
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func fromRunModel(m *runModel) (*run.Run, error) {
	runID, err := id.ParseRunID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", m.ID, err)
	}
	wfID, err := parseOptionalID(m.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("parse workflow ID %q: %w", m.WorkflowID, err)
	}
	subjID, err := parseOptionalID(m.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("parse subject ID %q: %w", m.SubjectID, err)
	}
	evtID, err := parseOptionalID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &run.Run{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            runID,
		WorkflowID:    wfID,
		SubjectID:     subjID,
		CurrentStep:   m.CurrentStep,
		Variables:     normalizeMap(m.Variables),
		Status:        run.Status(m.Status),
		TriggerSource: run.Source(m.TriggerSource),
		EventID:       evtID,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		Error:         m.Error,
	}, nil
}

type stepLogModel struct {
	grove.BaseModel `grove:"table:beacon_step_logs"`

	ID         string         `grove:"id,pk"       bson:"_id"`
	RunID      string         `grove:"run_id"      bson:"run_id"`
	StepIndex  int            `grove:"step_index"  bson:"step_index"`
	Kind       string         `grove:"kind"        bson:"kind"`
	Name       string         `grove:"name"        bson:"name"`
	Outcome    string         `grove:"outcome"     bson:"outcome"`
	Message    string         `grove:"message"     bson:"message"`
	StartedAt  time.Time      `grove:"started_at"  bson:"started_at"`
	FinishedAt time.Time      `grove:"finished_at" bson:"finished_at"`
	DurationMs int64          `grove:"duration_ms" bson:"duration_ms"`
	Input      map[string]any `grove:"input"       bson:"input,omitempty"`
	Output     map[string]any `grove:"output"      bson:"output,omitempty"`
	BranchPath string         `grove:"branch_path" bson:"branch_path"`
	Error      string         `grove:"error"       bson:"error"`
}

func toStepLogModel(l *run.StepLog) *stepLogModel {
	return &stepLogModel{
		ID:         l.ID.String(),
		RunID:      l.RunID.String(),
		StepIndex:  l.StepIndex,
		Kind:       l.Kind,
		Name:       l.Name,
		Outcome:    string(l.Outcome),
		Message:    l.Message,
		StartedAt:  l.StartedAt,
		FinishedAt: l.FinishedAt,
		DurationMs: l.DurationMs,
		Input:      l.Input,
		Output:     l.Output,
		BranchPath: l.BranchPath,
		Error:      l.Error,
	}
}

func fromStepLogModel(m *stepLogModel) (*run.StepLog, error) {
	logID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse step log ID %q: %w", m.ID, err)
	}
	runID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", m.RunID, err)
	}
	return &run.StepLog{
		ID:         logID,
		RunID:      runID,
		StepIndex:  m.StepIndex,
		Kind:       m.Kind,
		Name:       m.Name,
		Outcome:    run.Outcome(m.Outcome),
		Message:    m.Message,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		DurationMs: m.DurationMs,
		Input:      normalizeMap(m.Input),
		Output:     normalizeMap(m.Output),
		BranchPath: m.BranchPath,
		Error:      m.Error,
	}, nil
}

// --- Subject models ---

type subjectModel struct {
	grove.BaseModel `grove:"table:beacon_subjects"`

	ID        string         `grove:"id,pk"      bson:"_id"`
	Fields    map[string]any `grove:"fields"     bson:"fields"`
	Tags      []string       `grove:"tags"       bson:"tags"`
	Score     float64        `grove:"score"      bson:"score"`
	Segments  []string       `grove:"segments"   bson:"segments"`
	CreatedAt time.Time      `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `grove:"updated_at" bson:"updated_at"`
}

func toSubjectModel(s *subject.Subject) *subjectModel {
	m := &subjectModel{
		ID:        s.ID.String(),
		Fields:    s.Fields,
		Tags:      s.Tags,
		Score:     s.Score,
		Segments:  s.Segments,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	// $addToSet and $set on a nested path need existing containers.
	if m.Fields == nil {
		m.Fields = map[string]any{}
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.Segments == nil {
		m.Segments = []string{}
	}
	return m
}

func fromSubjectModel(m *subjectModel) (*subject.Subject, error) {
	subjID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subject ID %q: %w", m.ID, err)
	}
	return &subject.Subject{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       subjID,
		Fields:   normalizeMap(m.Fields),
		Tags:     m.Tags,
		Score:    m.Score,
		Segments: m.Segments,
	}, nil
}

type taskModel struct {
	grove.BaseModel `grove:"table:beacon_tasks"`

	ID          string     `grove:"id,pk"       bson:"_id"`
	SubjectID   string     `grove:"subject_id"  bson:"subject_id"`
	RunID       string     `grove:"run_id"      bson:"run_id"`
	Title       string     `grove:"title"       bson:"title"`
	Description string     `grove:"description" bson:"description"`
	Assignee    string     `grove:"assignee"    bson:"assignee"`
	DueAt       *time.Time `grove:"due_at"      bson:"due_at,omitempty"`
	Done        bool       `grove:"done"        bson:"done"`
	CreatedAt   time.Time  `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"  bson:"updated_at"`
}

func toTaskModel(t *subject.Task) *taskModel {
	return &taskModel{
		ID:          t.ID.String(),
		SubjectID:   t.SubjectID.String(),
		RunID:       t.RunID.String(),
		Title:       t.Title,
		Description: t.Description,
		Assignee:    t.Assignee,
		DueAt:       t.DueAt,
		Done:        t.Done,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func fromTaskModel(m *taskModel) (*subject.Task, error) {
	taskID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse task ID %q: %w", m.ID, err)
	}
	subjID, err := id.Parse(m.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("parse subject ID %q: %w", m.SubjectID, err)
	}
	runID, err := parseOptionalID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", m.RunID, err)
	}
	return &subject.Task{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          taskID,
		SubjectID:   subjID,
		RunID:       runID,
		Title:       m.Title,
		Description: m.Description,
		Assignee:    m.Assignee,
		DueAt:       m.DueAt,
		Done:        m.Done,
	}, nil
}
