package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/ratelimit"
)

// TriggerInput describes an event to record and fan out.
type TriggerInput struct {
	Type           string         `json:"type"`
	Data           map[string]any `json:"data"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	SourceType     string         `json:"source_type,omitempty"`
	SourceID       string         `json:"source_id,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`

	// OccurredAt defaults to the current time.
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Outcome is the result of a trigger.
type Outcome struct {
	Event      *event.Event `json:"event"`
	Deliveries []*Delivery  `json:"deliveries"`

	// RateLimited lists matching targets that were skipped because their
	// per-minute cap was reached. No delivery exists for them.
	RateLimited []id.ID `json:"rate_limited,omitempty"`

	// Duplicate is set when the idempotency key matched an earlier event;
	// Event is that event and nothing was dispatched.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Payload is the JSON body sent to targets.
type Payload struct {
	ID         id.ID          `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Source     *PayloadSource `json:"source,omitempty"`
	Data       map[string]any `json:"data"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// PayloadSource is the source reference inside a Payload.
type PayloadSource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	Metrics *observability.Metrics
}

// Dispatcher matches events to targets and fans out delivery attempts.
type Dispatcher struct {
	backend  Backend
	executor *Executor
	limiter  ratelimit.Limiter
	clock    clockwork.Clock
	config   DispatcherConfig
	logger   *slog.Logger
}

// NewDispatcher creates an event dispatcher. A nil limiter disables rate
// limiting.
func NewDispatcher(backend Backend, executor *Executor, limiter ratelimit.Limiter, clock clockwork.Clock, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		backend:  backend,
		executor: executor,
		limiter:  limiter,
		clock:    clock,
		config:   cfg,
		logger:   logger,
	}
}

// Trigger persists an event, delivers it to every matching active target
// concurrently and waits for all attempts to finish before marking the event
// processed. A failing delivery never affects its siblings or the event;
// only persistence errors are returned.
func (dp *Dispatcher) Trigger(ctx context.Context, in TriggerInput) (*Outcome, error) {
	if strings.TrimSpace(in.Type) == "" {
		return nil, errs.Invalid("type", "event type is required")
	}

	now := dp.clock.Now().UTC()
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	data := in.Data
	if data == nil {
		data = map[string]any{}
	}

	evt := &event.Event{
		Entity:         entity.At(now),
		ID:             id.NewEventID(),
		Type:           in.Type,
		SourceType:     in.SourceType,
		SourceID:       in.SourceID,
		Data:           data,
		Metadata:       in.Metadata,
		Context:        in.Context,
		IdempotencyKey: in.IdempotencyKey,
		OccurredAt:     occurred.UTC(),
	}

	if err := dp.backend.CreateEvent(ctx, evt); err != nil {
		if errors.Is(err, errs.ErrDuplicateEvent) {
			existing, getErr := dp.backend.GetEventByIdempotencyKey(ctx, in.IdempotencyKey)
			if getErr != nil {
				return nil, fmt.Errorf("beacon: load duplicate event: %w", getErr)
			}
			return &Outcome{Event: existing, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("beacon: persist event: %w", err)
	}
	dp.config.Metrics.RecordEvent()

	body, err := json.Marshal(newPayload(evt))
	if err != nil {
		return nil, fmt.Errorf("beacon: encode payload: %w", err)
	}

	targets, err := dp.backend.ListActiveEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("beacon: list endpoints: %w", err)
	}

	out := &Outcome{Event: evt}
	for _, ep := range targets {
		if !ep.Matches(evt.Type, evt.Data) {
			continue
		}
		if !dp.allow(ctx, ep) {
			out.RateLimited = append(out.RateLimited, ep.ID)
			continue
		}

		d := newDelivery(evt, ep, body, now)
		if err := dp.backend.CreateDelivery(ctx, d); err != nil {
			// Deliveries already created are still executed below so the
			// event's bookkeeping stays consistent with what exists.
			dp.logger.ErrorContext(ctx, "create delivery failed",
				"event_id", evt.ID,
				"endpoint_id", ep.ID,
				"error", err,
			)
			dp.refund(ctx, ep)
			continue
		}
		out.Deliveries = append(out.Deliveries, d)
	}

	counts := dp.executeAll(ctx, out.Deliveries)

	processedAt := dp.clock.Now().UTC()
	if err := dp.backend.MarkEventProcessed(context.WithoutCancel(ctx), evt.ID, counts, processedAt); err != nil {
		return out, fmt.Errorf("beacon: mark event processed: %w", err)
	}
	evt.Processed = true
	evt.ProcessedAt = &processedAt
	evt.DeliveryCount = counts.Deliveries
	evt.SuccessCount = counts.Succeeded
	evt.FailureCount = counts.Failed

	dp.logger.InfoContext(ctx, "event dispatched",
		"event_id", evt.ID,
		"type", evt.Type,
		"deliveries", counts.Deliveries,
		"succeeded", counts.Succeeded,
		"failed", counts.Failed,
		"rate_limited", len(out.RateLimited),
	)
	return out, nil
}

// Redeliver starts over a delivery that failed permanently: a new delivery
// with a fresh attempt budget is created for the same event and target and
// attempted once now. The failed delivery is left untouched.
func (dp *Dispatcher) Redeliver(ctx context.Context, delID id.ID) (*Delivery, error) {
	old, err := dp.backend.GetDelivery(ctx, delID)
	if err != nil {
		return nil, err
	}
	if old.State != StateFailed {
		return nil, fmt.Errorf("%w: %s is %s", errs.ErrDeliveryNotFailed, delID, old.State)
	}
	ep, err := dp.backend.GetEndpoint(ctx, old.EndpointID)
	if err != nil {
		return nil, err
	}

	now := dp.clock.Now().UTC()
	d := &Delivery{
		Entity:        entity.At(now),
		ID:            id.NewDeliveryID(),
		EventID:       old.EventID,
		EventType:     old.EventType,
		EndpointID:    old.EndpointID,
		State:         StatePending,
		Method:        ep.Method,
		URL:           ep.URL,
		RequestBody:   old.RequestBody,
		AttemptNumber: 1,
		MaxAttempts:   ep.MaxAttempts,
	}
	if err := dp.backend.CreateDelivery(ctx, d); err != nil {
		return nil, fmt.Errorf("beacon: create redelivery: %w", err)
	}

	dp.logger.InfoContext(ctx, "redelivering failed delivery",
		"delivery_id", d.ID,
		"previous_delivery_id", old.ID,
		"endpoint_id", d.EndpointID,
	)
	if err := dp.executor.Execute(ctx, d); err != nil {
		return d, err
	}
	return d, nil
}

// refund gives back the rate-limit slot of a delivery that was never created.
func (dp *Dispatcher) refund(ctx context.Context, ep *endpoint.Endpoint) {
	r, ok := dp.limiter.(ratelimit.Refunder)
	if !ok || ep.RateLimitPerMinute <= 0 {
		return
	}
	if err := r.Refund(context.WithoutCancel(ctx), ep.ID.String()); err != nil {
		dp.logger.WarnContext(ctx, "rate limit refund failed", "endpoint_id", ep.ID, "error", err)
	}
}

func (dp *Dispatcher) allow(ctx context.Context, ep *endpoint.Endpoint) bool {
	if dp.limiter == nil || ep.RateLimitPerMinute <= 0 {
		return true
	}
	ok, err := dp.limiter.Allow(ctx, ep.ID.String(), ep.RateLimitPerMinute)
	if err != nil {
		// An unavailable limiter must not drop events.
		dp.logger.WarnContext(ctx, "rate limiter unavailable, allowing delivery",
			"endpoint_id", ep.ID,
			"error", err,
		)
		return true
	}
	if !ok {
		dp.config.Metrics.RecordRateLimited()
		dp.logger.InfoContext(ctx, "delivery rate limited, not sent",
			"endpoint_id", ep.ID,
			"limit_per_minute", ep.RateLimitPerMinute,
		)
	}
	return ok
}

// executeAll runs every delivery concurrently and tallies the outcomes.
func (dp *Dispatcher) executeAll(ctx context.Context, ds []*Delivery) event.Counts {
	var wg sync.WaitGroup
	for _, d := range ds {
		wg.Add(1)
		go func(d *Delivery) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					dp.logger.ErrorContext(ctx, "delivery panicked",
						"delivery_id", d.ID,
						"panic", r,
					)
				}
			}()
			if err := dp.executor.Execute(ctx, d); err != nil {
				dp.logger.ErrorContext(ctx, "delivery execution failed",
					"delivery_id", d.ID,
					"error", err,
				)
			}
		}(d)
	}
	wg.Wait()

	counts := event.Counts{Deliveries: len(ds)}
	for _, d := range ds {
		if d.State == StateDelivered {
			counts.Succeeded++
		} else {
			counts.Failed++
		}
	}
	return counts
}

func newPayload(evt *event.Event) Payload {
	p := Payload{
		ID:         evt.ID,
		Type:       evt.Type,
		OccurredAt: evt.OccurredAt,
		Data:       evt.Data,
		Metadata:   evt.Metadata,
		Context:    evt.Context,
	}
	if evt.SourceType != "" || evt.SourceID != "" {
		p.Source = &PayloadSource{Type: evt.SourceType, ID: evt.SourceID}
	}
	return p
}

func newDelivery(evt *event.Event, ep *endpoint.Endpoint, body []byte, now time.Time) *Delivery {
	return &Delivery{
		Entity:        entity.At(now),
		ID:            id.NewDeliveryID(),
		EventID:       evt.ID,
		EventType:     evt.Type,
		EndpointID:    ep.ID,
		State:         StatePending,
		Method:        ep.Method,
		URL:           ep.URL,
		RequestBody:   body,
		AttemptNumber: 1,
		MaxAttempts:   ep.MaxAttempts,
	}
}
