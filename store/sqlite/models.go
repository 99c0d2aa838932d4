package sqlite

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

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

// JSON columns are stored as TEXT. Encoding errors are impossible for the
// value types used here, so marshal failures fall back to the column default.

func encodeJSON(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return fallback
	}
	return string(b)
}

func decodeJSON(s string, dst any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
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

	ID                   string     `grove:"id,pk"`
	URL                  string     `grove:"url"`
	Description          string     `grove:"description"`
	Method               string     `grove:"method"`
	Secret               string     `grove:"secret"`
	EventTypes           string     `grove:"event_types"`
	Filters              string     `grove:"filters"`
	Headers              string     `grove:"headers"`
	TimeoutMs            int64      `grove:"timeout_ms"`
	MaxAttempts          int        `grove:"max_attempts"`
	BackoffBaseMs        int64      `grove:"backoff_base_ms"`
	RateLimitPerMinute   int        `grove:"rate_limit_per_minute"`
	Active               bool       `grove:"active"`
	TotalDeliveries      int64      `grove:"total_deliveries"`
	SuccessfulDeliveries int64      `grove:"successful_deliveries"`
	FailedDeliveries     int64      `grove:"failed_deliveries"`
	LastAttemptAt        *time.Time `grove:"last_attempt_at"`
	LastSuccessAt        *time.Time `grove:"last_success_at"`
	Metadata             string     `grove:"metadata"`
	CreatedAt            time.Time  `grove:"created_at"`
	UpdatedAt            time.Time  `grove:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	return &endpointModel{
		ID:                   ep.ID.String(),
		URL:                  ep.URL,
		Description:          ep.Description,
		Method:               ep.Method,
		Secret:               ep.Secret,
		EventTypes:           encodeJSON(ep.EventTypes, "[]"),
		Filters:              encodeJSON(ep.Filters, "{}"),
		Headers:              encodeJSON(ep.Headers, "{}"),
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
		Metadata:             encodeJSON(ep.Metadata, "{}"),
		CreatedAt:            ep.CreatedAt,
		UpdatedAt:            ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	ep := &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   epID,
		URL:                  m.URL,
		Description:          m.Description,
		Method:               m.Method,
		Secret:               m.Secret,
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
	}
	if err := decodeJSON(m.EventTypes, &ep.EventTypes); err != nil {
		return nil, fmt.Errorf("decode endpoint event types: %w", err)
	}
	if err := decodeJSON(m.Filters, &ep.Filters); err != nil {
		return nil, fmt.Errorf("decode endpoint filters: %w", err)
	}
	if err := decodeJSON(m.Headers, &ep.Headers); err != nil {
		return nil, fmt.Errorf("decode endpoint headers: %w", err)
	}
	if err := decodeJSON(m.Metadata, &ep.Metadata); err != nil {
		return nil, fmt.Errorf("decode endpoint metadata: %w", err)
	}
	return ep, nil
}

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:beacon_events"`

	ID             string     `grove:"id,pk"`
	Type           string     `grove:"type"`
	SourceType     string     `grove:"source_type"`
	SourceID       string     `grove:"source_id"`
	Data           string     `grove:"data"`
	Metadata       string     `grove:"metadata"`
	Context        string     `grove:"context"`
	IdempotencyKey string     `grove:"idempotency_key"`
	OccurredAt     time.Time  `grove:"occurred_at"`
	Processed      bool       `grove:"processed"`
	ProcessedAt    *time.Time `grove:"processed_at"`
	DeliveryCount  int        `grove:"delivery_count"`
	SuccessCount   int        `grove:"success_count"`
	FailureCount   int        `grove:"failure_count"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:             evt.ID.String(),
		Type:           evt.Type,
		SourceType:     evt.SourceType,
		SourceID:       evt.SourceID,
		Data:           encodeJSON(evt.Data, "{}"),
		Metadata:       encodeJSON(evt.Metadata, "{}"),
		Context:        encodeJSON(evt.Context, "{}"),
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
	evt := &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             evtID,
		Type:           m.Type,
		SourceType:     m.SourceType,
		SourceID:       m.SourceID,
		IdempotencyKey: m.IdempotencyKey,
		OccurredAt:     m.OccurredAt,
		Processed:      m.Processed,
		ProcessedAt:    m.ProcessedAt,
		DeliveryCount:  m.DeliveryCount,
		SuccessCount:   m.SuccessCount,
		FailureCount:   m.FailureCount,
	}
	if err := decodeJSON(m.Data, &evt.Data); err != nil {
		return nil, fmt.Errorf("decode event data: %w", err)
	}
	if err := decodeJSON(m.Metadata, &evt.Metadata); err != nil {
		return nil, fmt.Errorf("decode event metadata: %w", err)
	}
	if err := decodeJSON(m.Context, &evt.Context); err != nil {
		return nil, fmt.Errorf("decode event context: %w", err)
	}
	return evt, nil
}

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:beacon_deliveries"`

	ID              string     `grove:"id,pk"`
	EventID         string     `grove:"event_id"`
	EventType       string     `grove:"event_type"`
	EndpointID      string     `grove:"endpoint_id"`
	State           string     `grove:"state"`
	Method          string     `grove:"method"`
	URL             string     `grove:"url"`
	RequestHeaders  string     `grove:"request_headers"`
	RequestBody     string     `grove:"request_body"`
	ResponseStatus  int        `grove:"response_status"`
	ResponseHeaders string     `grove:"response_headers"`
	ResponseBody    string     `grove:"response_body"`
	LatencyMs       int64      `grove:"latency_ms"`
	AttemptNumber   int        `grove:"attempt_number"`
	MaxAttempts     int        `grove:"max_attempts"`
	NextRetryAt     *time.Time `grove:"next_retry_at"`
	LastAttemptAt   *time.Time `grove:"last_attempt_at"`
	DeliveredAt     *time.Time `grove:"delivered_at"`
	Error           string     `grove:"error"`
	ErrorKind       string     `grove:"error_kind"`
	CreatedAt       time.Time  `grove:"created_at"`
	UpdatedAt       time.Time  `grove:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	body := "null"
	if len(d.RequestBody) > 0 {
		body = string(d.RequestBody)
	}
	return &deliveryModel{
		ID:              d.ID.String(),
		EventID:         d.EventID.String(),
		EventType:       d.EventType,
		EndpointID:      d.EndpointID.String(),
		State:           string(d.State),
		Method:          d.Method,
		URL:             d.URL,
		RequestHeaders:  encodeJSON(d.RequestHeaders, "{}"),
		RequestBody:     body,
		ResponseStatus:  d.ResponseStatus,
		ResponseHeaders: encodeJSON(d.ResponseHeaders, "{}"),
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
		ID:             delID,
		EventID:        evtID,
		EventType:      m.EventType,
		EndpointID:     epID,
		State:          delivery.State(m.State),
		Method:         m.Method,
		URL:            m.URL,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   m.ResponseBody,
		LatencyMs:      m.LatencyMs,
		AttemptNumber:  m.AttemptNumber,
		MaxAttempts:    m.MaxAttempts,
		NextRetryAt:    m.NextRetryAt,
		LastAttemptAt:  m.LastAttemptAt,
		DeliveredAt:    m.DeliveredAt,
		Error:          m.Error,
		ErrorKind:      delivery.ErrorKind(m.ErrorKind),
	}
	if m.RequestBody != "" && m.RequestBody != "null" {
		d.RequestBody = json.RawMessage(m.RequestBody)
	}
	var reqHeaders, respHeaders http.Header
	if err := decodeJSON(m.RequestHeaders, &reqHeaders); err != nil {
		return nil, fmt.Errorf("decode request headers: %w", err)
	}
	if err := decodeJSON(m.ResponseHeaders, &respHeaders); err != nil {
		return nil, fmt.Errorf("decode response headers: %w", err)
	}
	d.RequestHeaders = reqHeaders
	d.ResponseHeaders = respHeaders
	return d, nil
}

type attemptModel struct {
	grove.BaseModel `grove:"table:beacon_attempts"`

	ID            string    `grove:"id,pk"`
	DeliveryID    string    `grove:"delivery_id"`
	EndpointID    string    `grove:"endpoint_id"`
	AttemptNumber int       `grove:"attempt_number"`
	StatusCode    int       `grove:"status_code"`
	Error         string    `grove:"error"`
	ErrorKind     string    `grove:"error_kind"`
	LatencyMs     int64     `grove:"latency_ms"`
	AttemptedAt   time.Time `grove:"attempted_at"`
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

	ID               string     `grove:"id,pk"`
	Name             string     `grove:"name"`
	Description      string     `grove:"description"`
	Steps            string     `grove:"steps"`
	TriggerType      string     `grove:"trigger_type"`
	TriggerEventType string     `grove:"trigger_event_type"`
	Audience         string     `grove:"audience"`
	Status           string     `grove:"status"`
	ActivatedAt      *time.Time `grove:"activated_at"`
	PausedAt         *time.Time `grove:"paused_at"`
	CompletedAt      *time.Time `grove:"completed_at"`
	RunsStarted      int64      `grove:"runs_started"`
	RunsCompleted    int64      `grove:"runs_completed"`
	RunsFailed       int64      `grove:"runs_failed"`
	RunsCancelled    int64      `grove:"runs_cancelled"`
	Metadata         string     `grove:"metadata"`
	CreatedAt        time.Time  `grove:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"`
}

func toWorkflowModel(wf *workflow.Workflow) *workflowModel {
	return &workflowModel{
		ID:               wf.ID.String(),
		Name:             wf.Name,
		Description:      wf.Description,
		Steps:            encodeJSON(wf.Steps, "[]"),
		TriggerType:      string(wf.Trigger.Type),
		TriggerEventType: wf.Trigger.EventType,
		Audience:         encodeJSON(wf.Audience, "[]"),
		Status:           string(wf.Status),
		ActivatedAt:      wf.ActivatedAt,
		PausedAt:         wf.PausedAt,
		CompletedAt:      wf.CompletedAt,
		RunsStarted:      wf.Metrics.RunsStarted,
		RunsCompleted:    wf.Metrics.RunsCompleted,
		RunsFailed:       wf.Metrics.RunsFailed,
		RunsCancelled:    wf.Metrics.RunsCancelled,
		Metadata:         encodeJSON(wf.Metadata, "{}"),
		CreatedAt:        wf.CreatedAt,
		UpdatedAt:        wf.UpdatedAt,
	}
}

func fromWorkflowModel(m *workflowModel) (*workflow.Workflow, error) {
	wfID, err := id.ParseWorkflowID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse workflow ID %q: %w", m.ID, err)
	}
	wf := &workflow.Workflow{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          wfID,
		Name:        m.Name,
		Description: m.Description,
		Trigger: workflow.Trigger{
			Type:      workflow.TriggerType(m.TriggerType),
			EventType: m.TriggerEventType,
		},
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
	}
	if err := decodeJSON(m.Steps, &wf.Steps); err != nil {
		return nil, fmt.Errorf("decode workflow steps: %w", err)
	}
	var audience []condition.Condition
	if err := decodeJSON(m.Audience, &audience); err != nil {
		return nil, fmt.Errorf("decode workflow audience: %w", err)
	}
	if len(audience) > 0 {
		wf.Audience = audience
	}
	if err := decodeJSON(m.Metadata, &wf.Metadata); err != nil {
		return nil, fmt.Errorf("decode workflow metadata: %w", err)
	}
	return wf, nil
}

// --- Run models ---

type runModel struct {
	grove.BaseModel `grove:"table:beacon_runs"`

	ID            string     `grove:"id,pk"`
	WorkflowID    string     `grove:"workflow_id"`
	SubjectID     string     `grove:"subject_id"`
	CurrentStep   int        `grove:"current_step"`
	Variables     string     `grove:"variables"`
	Status        string     `grove:"status"`
	TriggerSource string     `grove:"trigger_source"`
	EventID       string     `grove:"event_id"`
	StartedAt     time.Time  `grove:"started_at"`
	CompletedAt   *time.Time `grove:"completed_at"`
	Error         string     `grove:"error"`
	CreatedAt     time.Time  `grove:"created_at"`
	UpdatedAt     time.Time  `grove:"updated_at"`
}

func toRunModel(r *run.Run) *runModel {
	return &runModel{
		ID:            r.ID.String(),
		WorkflowID:    r.WorkflowID.String(),
		SubjectID:     r.SubjectID.String(),
		CurrentStep:   r.CurrentStep,
		Variables:     encodeJSON(r.Variables, "{}"),
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
	r := &run.Run{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            runID,
		WorkflowID:    wfID,
		SubjectID:     subjID,
		CurrentStep:   m.CurrentStep,
		Status:        run.Status(m.Status),
		TriggerSource: run.Source(m.TriggerSource),
		EventID:       evtID,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		Error:         m.Error,
	}
	if err := decodeJSON(m.Variables, &r.Variables); err != nil {
		return nil, fmt.Errorf("decode run variables: %w", err)
	}
	return r, nil
}

type stepLogModel struct {
	grove.BaseModel `grove:"table:beacon_step_logs"`

	ID         string    `grove:"id,pk"`
	RunID      string    `grove:"run_id"`
	StepIndex  int       `grove:"step_index"`
	Kind       string    `grove:"kind"`
	Name       string    `grove:"name"`
	Outcome    string    `grove:"outcome"`
	Message    string    `grove:"message"`
	StartedAt  time.Time `grove:"started_at"`
	FinishedAt time.Time `grove:"finished_at"`
	DurationMs int64     `grove:"duration_ms"`
	Input      string    `grove:"input"`
	Output     string    `grove:"output"`
	BranchPath string    `grove:"branch_path"`
	Error      string    `grove:"error"`
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
		Input:      encodeJSON(l.Input, "{}"),
		Output:     encodeJSON(l.Output, "{}"),
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
	l := &run.StepLog{
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
		BranchPath: m.BranchPath,
		Error:      m.Error,
	}
	if err := decodeJSON(m.Input, &l.Input); err != nil {
		return nil, fmt.Errorf("decode step input: %w", err)
	}
	if err := decodeJSON(m.Output, &l.Output); err != nil {
		return nil, fmt.Errorf("decode step output: %w", err)
	}
	return l, nil
}

// --- Subject models ---

type subjectModel struct {
	grove.BaseModel `grove:"table:beacon_subjects"`

	ID        string    `grove:"id,pk"`
	Fields    string    `grove:"fields"`
	Tags      string    `grove:"tags"`
	Score     float64   `grove:"score"`
	Segments  string    `grove:"segments"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toSubjectModel(s *subject.Subject) *subjectModel {
	return &subjectModel{
		ID:        s.ID.String(),
		Fields:    encodeJSON(s.Fields, "{}"),
		Tags:      encodeJSON(s.Tags, "[]"),
		Score:     s.Score,
		Segments:  encodeJSON(s.Segments, "[]"),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSubjectModel(m *subjectModel) (*subject.Subject, error) {
	subjID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subject ID %q: %w", m.ID, err)
	}
	s := &subject.Subject{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:    subjID,
		Score: m.Score,
	}
	if err := decodeJSON(m.Fields, &s.Fields); err != nil {
		return nil, fmt.Errorf("decode subject fields: %w", err)
	}
	if err := decodeJSON(m.Tags, &s.Tags); err != nil {
		return nil, fmt.Errorf("decode subject tags: %w", err)
	}
	if err := decodeJSON(m.Segments, &s.Segments); err != nil {
		return nil, fmt.Errorf("decode subject segments: %w", err)
	}
	return s, nil
}

type taskModel struct {
	grove.BaseModel `grove:"table:beacon_tasks"`

	ID          string     `grove:"id,pk"`
	SubjectID   string     `grove:"subject_id"`
	RunID       string     `grove:"run_id"`
	Title       string     `grove:"title"`
	Description string     `grove:"description"`
	Assignee    string     `grove:"assignee"`
	DueAt       *time.Time `grove:"due_at"`
	Done        bool       `grove:"done"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
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
