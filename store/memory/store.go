// Package memory provides an in-memory Store implementation for tests and
// single-process deployments.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

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

// compile-time interface check.
var _ beaconstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store. Records are copied
// on the way in and out, so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	endpoints       map[string]*endpoint.Endpoint  // keyed by ID string
	events          map[string]*event.Event        // keyed by ID string
	eventsByIdemKey map[string]string              // idempotency key -> event ID
	deliveries      map[string]*delivery.Delivery  // keyed by ID string
	attempts        map[string][]*delivery.Attempt // keyed by delivery ID
	workflows       map[string]*workflow.Workflow  // keyed by ID string
	runs            map[string]*run.Run            // keyed by ID string
	stepLogs        map[string][]*run.StepLog      // keyed by run ID
	subjects        map[string]*subject.Subject    // keyed by ID string
	tasks           map[string][]*subject.Task     // keyed by subject ID

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		endpoints:       make(map[string]*endpoint.Endpoint),
		events:          make(map[string]*event.Event),
		eventsByIdemKey: make(map[string]string),
		deliveries:      make(map[string]*delivery.Delivery),
		attempts:        make(map[string][]*delivery.Attempt),
		workflows:       make(map[string]*workflow.Workflow),
		runs:            make(map[string]*run.Run),
		stepLogs:        make(map[string][]*run.StepLog),
		subjects:        make(map[string]*subject.Subject),
		tasks:           make(map[string][]*subject.Task),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return beacon.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endpoints[ep.ID.String()] = copyEndpoint(ep)
	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(_ context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return nil, beacon.ErrEndpointNotFound
	}
	return copyEndpoint(ep), nil
}

// UpdateEndpoint replaces the configuration, keeping the stored counters.
func (s *Store) UpdateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.endpoints[ep.ID.String()]
	if !ok {
		return beacon.ErrEndpointNotFound
	}

	next := copyEndpoint(ep)
	next.CreatedAt = existing.CreatedAt
	next.TotalDeliveries = existing.TotalDeliveries
	next.SuccessfulDeliveries = existing.SuccessfulDeliveries
	next.FailedDeliveries = existing.FailedDeliveries
	next.LastAttemptAt = existing.LastAttemptAt
	next.LastSuccessAt = existing.LastSuccessAt
	s.endpoints[ep.ID.String()] = next
	return nil
}

// DeleteEndpoint removes an endpoint.
func (s *Store) DeleteEndpoint(_ context.Context, epID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := epID.String()
	if _, ok := s.endpoints[key]; !ok {
		return beacon.ErrEndpointNotFound
	}
	delete(s.endpoints, key)
	return nil
}

// ListEndpoints returns endpoints, oldest first.
func (s *Store) ListEndpoints(_ context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*endpoint.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if opts.Active != nil && ep.Active != *opts.Active {
			continue
		}
		result = append(result, copyEndpoint(ep))
	}
	sortOldestFirst(result, func(ep *endpoint.Endpoint) (time.Time, id.ID) { return ep.CreatedAt, ep.ID })

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ListActiveEndpoints returns every active endpoint.
func (s *Store) ListActiveEndpoints(ctx context.Context) ([]*endpoint.Endpoint, error) {
	active := true
	return s.ListEndpoints(ctx, endpoint.ListOpts{Active: &active})
}

// SetActive activates or deactivates an endpoint.
func (s *Store) SetActive(_ context.Context, epID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return beacon.ErrEndpointNotFound
	}
	ep.Active = active
	ep.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordAttempt updates delivery counters under the store lock.
func (s *Store) RecordAttempt(_ context.Context, epID id.ID, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return beacon.ErrEndpointNotFound
	}

	ep.TotalDeliveries++
	ep.LastAttemptAt = &at
	if success {
		ep.SuccessfulDeliveries++
		ep.LastSuccessAt = &at
	} else {
		ep.FailedDeliveries++
	}
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists an event, rejecting repeated idempotency keys.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.IdempotencyKey != "" {
		if _, dup := s.eventsByIdemKey[evt.IdempotencyKey]; dup {
			return beacon.ErrDuplicateEvent
		}
		s.eventsByIdemKey[evt.IdempotencyKey] = evt.ID.String()
	}
	s.events[evt.ID.String()] = copyEvent(evt)
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, beacon.ErrEventNotFound
	}
	return copyEvent(evt), nil
}

// GetEventByIdempotencyKey returns the event stored under key.
func (s *Store) GetEventByIdempotencyKey(_ context.Context, key string) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evtID, ok := s.eventsByIdemKey[key]
	if !ok {
		return nil, beacon.ErrEventNotFound
	}
	return copyEvent(s.events[evtID]), nil
}

// ListEvents returns events, newest first.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if !matchEventOpts(evt, opts) {
			continue
		}
		result = append(result, copyEvent(evt))
	}
	sortNewestFirst(result, func(e *event.Event) (time.Time, id.ID) { return e.CreatedAt, e.ID })

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// MarkEventProcessed sets the processed flag and final counters.
func (s *Store) MarkEventProcessed(_ context.Context, evtID id.ID, counts event.Counts, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return beacon.ErrEventNotFound
	}
	evt.Processed = true
	evt.ProcessedAt = &at
	evt.DeliveryCount = counts.Deliveries
	evt.SuccessCount = counts.Succeeded
	evt.FailureCount = counts.Failed
	evt.UpdatedAt = at
	return nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// CreateDelivery persists a new delivery.
func (s *Store) CreateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = copyDelivery(d)
	return nil
}

// GetDelivery returns a delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, beacon.ErrDeliveryNotFound
	}
	return copyDelivery(d), nil
}

// UpdateDelivery replaces a delivery.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return beacon.ErrDeliveryNotFound
	}
	s.deliveries[d.ID.String()] = copyDelivery(d)
	return nil
}

// ClaimRetries moves due retries to processing under the store lock, so
// concurrent callers never claim the same delivery.
func (s *Store) ClaimRetries(_ context.Context, now time.Time, limit int) ([]*delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*delivery.Delivery
	for _, d := range s.deliveries {
		if d.State != delivery.StateRetry || d.AttemptNumber >= d.MaxAttempts {
			continue
		}
		if d.NextRetryAt == nil || d.NextRetryAt.After(now) {
			continue
		}
		due = append(due, d)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(*due[j].NextRetryAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*delivery.Delivery, 0, len(due))
	for _, d := range due {
		d.State = delivery.StateProcessing
		d.AttemptNumber++
		d.NextRetryAt = nil
		d.UpdatedAt = now
		claimed = append(claimed, copyDelivery(d))
	}
	return claimed, nil
}

// ListDeliveries returns deliveries, newest first.
func (s *Store) ListDeliveries(_ context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0)
	for _, d := range s.deliveries {
		if !opts.EndpointID.IsNil() && d.EndpointID != opts.EndpointID {
			continue
		}
		if !opts.EventID.IsNil() && d.EventID != opts.EventID {
			continue
		}
		if opts.State != "" && d.State != opts.State {
			continue
		}
		result = append(result, copyDelivery(d))
	}
	sortNewestFirst(result, func(d *delivery.Delivery) (time.Time, id.ID) { return d.CreatedAt, d.ID })

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountOpenDeliveries counts deliveries of an endpoint still in flight.
func (s *Store) CountOpenDeliveries(_ context.Context, epID id.ID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, d := range s.deliveries {
		if d.EndpointID == epID && d.State.Open() {
			n++
		}
	}
	return n, nil
}

// CountDeliveriesByState returns the number of deliveries per state.
func (s *Store) CountDeliveriesByState(_ context.Context) (map[delivery.State]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[delivery.State]int64)
	for _, d := range s.deliveries {
		counts[d.State]++
	}
	return counts, nil
}

// CreateAttempt appends an attempt record.
func (s *Store) CreateAttempt(_ context.Context, a *delivery.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	key := a.DeliveryID.String()
	s.attempts[key] = append(s.attempts[key], &cp)
	return nil
}

// ListAttempts returns the attempts of a delivery, oldest first.
func (s *Store) ListAttempts(_ context.Context, delID id.ID) ([]*delivery.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.attempts[delID.String()]
	result := make([]*delivery.Attempt, len(stored))
	for i, a := range stored {
		cp := *a
		result[i] = &cp
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// workflow.Store
// ──────────────────────────────────────────────────

// CreateWorkflow persists a new workflow.
func (s *Store) CreateWorkflow(_ context.Context, wf *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[wf.ID.String()] = copyWorkflow(wf)
	return nil
}

// GetWorkflow returns a workflow by ID.
func (s *Store) GetWorkflow(_ context.Context, wfID id.ID) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[wfID.String()]
	if !ok {
		return nil, beacon.ErrWorkflowNotFound
	}
	return copyWorkflow(wf), nil
}

// UpdateWorkflow replaces a workflow, keeping the stored metrics.
func (s *Store) UpdateWorkflow(_ context.Context, wf *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workflows[wf.ID.String()]
	if !ok {
		return beacon.ErrWorkflowNotFound
	}
	next := copyWorkflow(wf)
	next.CreatedAt = existing.CreatedAt
	next.Metrics = existing.Metrics
	s.workflows[wf.ID.String()] = next
	return nil
}

// ListWorkflows returns workflows, oldest first.
func (s *Store) ListWorkflows(_ context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*workflow.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		if opts.Status != "" && wf.Status != opts.Status {
			continue
		}
		result = append(result, copyWorkflow(wf))
	}
	sortOldestFirst(result, func(wf *workflow.Workflow) (time.Time, id.ID) { return wf.CreatedAt, wf.ID })

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ListWorkflowsByTrigger returns active workflows triggered by eventType.
func (s *Store) ListWorkflowsByTrigger(_ context.Context, eventType string) ([]*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*workflow.Workflow
	for _, wf := range s.workflows {
		if wf.Status != workflow.StatusActive || wf.Trigger.Type != workflow.TriggerEvent {
			continue
		}
		if wf.Trigger.EventType != eventType {
			continue
		}
		result = append(result, copyWorkflow(wf))
	}
	sortOldestFirst(result, func(wf *workflow.Workflow) (time.Time, id.ID) { return wf.CreatedAt, wf.ID })
	return result, nil
}

// IncrWorkflowMetrics adds delta to a workflow's metrics.
func (s *Store) IncrWorkflowMetrics(_ context.Context, wfID id.ID, delta workflow.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[wfID.String()]
	if !ok {
		return beacon.ErrWorkflowNotFound
	}
	wf.Metrics.RunsStarted += delta.RunsStarted
	wf.Metrics.RunsCompleted += delta.RunsCompleted
	wf.Metrics.RunsFailed += delta.RunsFailed
	wf.Metrics.RunsCancelled += delta.RunsCancelled
	return nil
}

// ──────────────────────────────────────────────────
// run.Store
// ──────────────────────────────────────────────────

// CreateRun persists a new run.
func (s *Store) CreateRun(_ context.Context, r *run.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[r.ID.String()] = copyRun(r)
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(_ context.Context, runID id.ID) (*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID.String()]
	if !ok {
		return nil, beacon.ErrRunNotFound
	}
	return copyRun(r), nil
}

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(_ context.Context, opts run.ListOpts) ([]*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*run.Run, 0)
	for _, r := range s.runs {
		if !opts.WorkflowID.IsNil() && r.WorkflowID != opts.WorkflowID {
			continue
		}
		if !opts.SubjectID.IsNil() && r.SubjectID != opts.SubjectID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		result = append(result, copyRun(r))
	}
	sortNewestFirst(result, func(r *run.Run) (time.Time, id.ID) { return r.CreatedAt, r.ID })

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// UpdateRunProgress stores progress of a started run.
func (s *Store) UpdateRunProgress(_ context.Context, runID id.ID, currentStep int, vars map[string]any, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID.String()]
	if !ok {
		return beacon.ErrRunNotFound
	}
	if r.Status != run.StatusStarted {
		return beacon.ErrRunNotActive
	}
	r.CurrentStep = currentStep
	r.Variables = maps.Clone(vars)
	r.UpdatedAt = at
	return nil
}

// FinishRun moves a started run to a terminal status.
func (s *Store) FinishRun(_ context.Context, runID id.ID, status run.Status, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID.String()]
	if !ok {
		return beacon.ErrRunNotFound
	}
	if r.Status != run.StatusStarted {
		return beacon.ErrRunNotActive
	}
	r.Status = status
	r.Error = errMsg
	r.CompletedAt = &at
	r.UpdatedAt = at
	return nil
}

// CreateStepLog appends a step log entry.
func (s *Store) CreateStepLog(_ context.Context, l *run.StepLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	key := l.RunID.String()
	s.stepLogs[key] = append(s.stepLogs[key], &cp)
	return nil
}

// ListStepLogs returns a run's step logs in the order they were written.
func (s *Store) ListStepLogs(_ context.Context, runID id.ID) ([]*run.StepLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.stepLogs[runID.String()]
	result := make([]*run.StepLog, len(stored))
	for i, l := range stored {
		cp := *l
		result[i] = &cp
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// subject.Store
// ──────────────────────────────────────────────────

// GetSubject returns a subject by ID.
func (s *Store) GetSubject(_ context.Context, subjID id.ID) (*subject.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subj, ok := s.subjects[subjID.String()]
	if !ok {
		return nil, beacon.ErrSubjectNotFound
	}
	return copySubject(subj), nil
}

// PutSubject creates or replaces a subject.
func (s *Store) PutSubject(_ context.Context, subj *subject.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subjects[subj.ID.String()] = copySubject(subj)
	return nil
}

// SetSubjectField sets one field.
func (s *Store) SetSubjectField(_ context.Context, subjID id.ID, field string, value any) error {
	return s.mutateSubject(subjID, func(subj *subject.Subject) {
		if subj.Fields == nil {
			subj.Fields = make(map[string]any)
		}
		subj.Fields[field] = value
	})
}

// AddSubjectTag adds a tag once.
func (s *Store) AddSubjectTag(_ context.Context, subjID id.ID, tag string) error {
	return s.mutateSubject(subjID, func(subj *subject.Subject) {
		if !slices.Contains(subj.Tags, tag) {
			subj.Tags = append(subj.Tags, tag)
		}
	})
}

// AdjustSubjectScore adds delta to the score.
func (s *Store) AdjustSubjectScore(_ context.Context, subjID id.ID, delta float64) (float64, error) {
	var score float64
	err := s.mutateSubject(subjID, func(subj *subject.Subject) {
		subj.Score += delta
		score = subj.Score
	})
	return score, err
}

// AddToSegment adds the subject to a segment once.
func (s *Store) AddToSegment(_ context.Context, subjID id.ID, segment string) error {
	return s.mutateSubject(subjID, func(subj *subject.Subject) {
		if !slices.Contains(subj.Segments, segment) {
			subj.Segments = append(subj.Segments, segment)
		}
	})
}

// RemoveFromSegment removes the subject from a segment.
func (s *Store) RemoveFromSegment(_ context.Context, subjID id.ID, segment string) error {
	return s.mutateSubject(subjID, func(subj *subject.Subject) {
		subj.Segments = slices.DeleteFunc(subj.Segments, func(v string) bool { return v == segment })
	})
}

// CreateTask stores a task.
func (s *Store) CreateTask(_ context.Context, t *subject.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	key := t.SubjectID.String()
	s.tasks[key] = append(s.tasks[key], &cp)
	return nil
}

// ListTasks returns a subject's tasks, oldest first.
func (s *Store) ListTasks(_ context.Context, subjID id.ID) ([]*subject.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.tasks[subjID.String()]
	result := make([]*subject.Task, len(stored))
	for i, t := range stored {
		cp := *t
		result[i] = &cp
	}
	return result, nil
}

func (s *Store) mutateSubject(subjID id.ID, fn func(*subject.Subject)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.subjects[subjID.String()]
	if !ok {
		return beacon.ErrSubjectNotFound
	}
	fn(subj)
	subj.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func matchEventOpts(evt *event.Event, opts event.ListOpts) bool {
	if opts.Type != "" && evt.Type != opts.Type {
		return false
	}
	if opts.Processed != nil && evt.Processed != *opts.Processed {
		return false
	}
	if opts.From != nil && evt.CreatedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && evt.CreatedAt.After(*opts.To) {
		return false
	}
	return true
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return []*T{}
		}
		items = items[offset:]
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}

func sortOldestFirst[T any](items []*T, key func(*T) (time.Time, id.ID)) {
	sort.Slice(items, func(i, j int) bool {
		ti, ii := key(items[i])
		tj, ij := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ii.Less(ij)
	})
}

func sortNewestFirst[T any](items []*T, key func(*T) (time.Time, id.ID)) {
	sort.Slice(items, func(i, j int) bool {
		ti, ii := key(items[i])
		tj, ij := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ij.Less(ii)
	})
}

func copyEndpoint(ep *endpoint.Endpoint) *endpoint.Endpoint {
	cp := *ep
	cp.EventTypes = slices.Clone(ep.EventTypes)
	cp.Filters = maps.Clone(ep.Filters)
	cp.Headers = maps.Clone(ep.Headers)
	cp.Metadata = maps.Clone(ep.Metadata)
	return &cp
}

func copyEvent(evt *event.Event) *event.Event {
	cp := *evt
	cp.Data = maps.Clone(evt.Data)
	cp.Metadata = maps.Clone(evt.Metadata)
	cp.Context = maps.Clone(evt.Context)
	return &cp
}

func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	cp.RequestHeaders = d.RequestHeaders.Clone()
	cp.ResponseHeaders = d.ResponseHeaders.Clone()
	cp.RequestBody = slices.Clone(d.RequestBody)
	return &cp
}

func copyWorkflow(wf *workflow.Workflow) *workflow.Workflow {
	cp := *wf
	cp.Steps = slices.Clone(wf.Steps)
	cp.Audience = slices.Clone(wf.Audience)
	cp.Metadata = maps.Clone(wf.Metadata)
	return &cp
}

func copyRun(r *run.Run) *run.Run {
	cp := *r
	cp.Variables = maps.Clone(r.Variables)
	return &cp
}

func copySubject(subj *subject.Subject) *subject.Subject {
	cp := *subj
	cp.Fields = maps.Clone(subj.Fields)
	cp.Tags = slices.Clone(subj.Tags)
	cp.Segments = slices.Clone(subj.Segments)
	return &cp
}
