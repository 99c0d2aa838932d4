package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/signature"
)

// Header names set on every delivery.
const (
	HeaderEventType  = "X-Beacon-Event-Type"
	HeaderEventID    = "X-Beacon-Event-ID"
	HeaderDeliveryID = "X-Beacon-Delivery-ID"
	HeaderAttempt    = "X-Beacon-Attempt"
	HeaderTimestamp  = "X-Beacon-Timestamp"
	HeaderSignature  = "X-Beacon-Signature"

	DefaultUserAgent = "Beacon/1.0"
)

// ReleaseDelay is how long a delivery whose attempt could not start waits
// before the sweeper claims it again.
const ReleaseDelay = time.Minute

// ExecutorConfig holds executor configuration.
type ExecutorConfig struct {
	Backoff   Backoff
	UserAgent string
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
}

// Executor performs single delivery attempts.
type Executor struct {
	store     Store
	endpoints endpoint.Store
	transport Transport
	clock     clockwork.Clock
	config    ExecutorConfig
	logger    *slog.Logger
}

// NewExecutor creates a delivery executor.
func NewExecutor(store Store, endpoints endpoint.Store, transport Transport, clock clockwork.Clock, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if transport == nil {
		transport = NewHTTPTransport(nil, 0)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Executor{
		store:     store,
		endpoints: endpoints,
		transport: transport,
		clock:     clock,
		config:    cfg,
		logger:    logger,
	}
}

// Execute performs one attempt of d and persists the outcome: the delivery
// state, one Attempt record and the target counters. The attempt's success
// or failure is recorded on d; the returned error reports persistence
// problems only.
//
// The caller owns d exclusively for the duration of the call: it was either
// just created or claimed from StateRetry by the sweeper.
func (e *Executor) Execute(ctx context.Context, d *Delivery) error {
	// Bookkeeping must land even if the caller is shutting down mid-call.
	bg := context.WithoutCancel(ctx)

	ep, err := e.endpoints.GetEndpoint(ctx, d.EndpointID)
	switch {
	case errors.Is(err, errs.ErrEndpointNotFound):
		return e.disable(bg, d, "endpoint not found")
	case err != nil:
		return e.release(bg, d, fmt.Errorf("beacon: load endpoint %s: %w", d.EndpointID, err))
	case !ep.Active:
		return e.disable(bg, d, "endpoint inactive")
	}

	if d.AttemptNumber < 1 {
		d.AttemptNumber = 1
	}
	if d.AttemptNumber > d.MaxAttempts {
		// A claim never produces this; refuse rather than overshoot.
		return fmt.Errorf("beacon: delivery %s attempt %d exceeds max %d", d.ID, d.AttemptNumber, d.MaxAttempts)
	}

	now := e.clock.Now().UTC()
	d.State = StateProcessing
	d.LastAttemptAt = &now
	d.NextRetryAt = nil
	d.Touch(now)
	if err := e.store.UpdateDelivery(bg, d); err != nil {
		return e.release(bg, d, fmt.Errorf("beacon: mark delivery processing: %w", err))
	}

	req := e.buildRequest(ep, d, now)
	d.Method = req.Method
	d.URL = req.URL
	d.RequestHeaders = req.Header

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, d.ID.String(), d.EventID.String(), d.EndpointID.String(), d.AttemptNumber)
	}

	resp, callErr := e.call(ctx, req)
	finished := e.clock.Now().UTC()
	kind := Classify(resp, callErr)
	e.applyResponse(d, resp, callErr, kind, finished.Sub(now))

	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, d.ResponseStatus, d.LatencyMs, d.Error)
	}

	success := kind == ErrorKindNone
	decision := e.config.Backoff.Decide(success, d.AttemptNumber, d.MaxAttempts)
	latency := float64(d.LatencyMs) / 1000.0

	switch decision {
	case Delivered:
		d.State = StateDelivered
		d.DeliveredAt = &finished
		e.config.Metrics.RecordDelivery("delivered", latency)
		e.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID,
			"endpoint_id", d.EndpointID,
			"status", d.ResponseStatus,
			"attempt", d.AttemptNumber,
			"latency_ms", d.LatencyMs,
		)

	case Retry:
		next := finished.Add(e.config.Backoff.Delay(ep.BackoffBase, d.AttemptNumber))
		d.State = StateRetry
		d.NextRetryAt = &next
		e.config.Metrics.RecordDelivery("retry", latency)
		e.config.Metrics.RetryScheduled()
		e.logger.InfoContext(ctx, "delivery attempt failed, retry scheduled",
			"delivery_id", d.ID,
			"endpoint_id", d.EndpointID,
			"attempt", d.AttemptNumber,
			"max_attempts", d.MaxAttempts,
			"error_kind", d.ErrorKind,
			"next_retry_at", next,
		)

	case Exhausted:
		d.State = StateFailed
		e.config.Metrics.RecordDelivery("failed", latency)
		e.logger.WarnContext(ctx, "delivery failed permanently",
			"delivery_id", d.ID,
			"endpoint_id", d.EndpointID,
			"attempts", d.AttemptNumber,
			"error_kind", d.ErrorKind,
			"error", d.Error,
		)
	}
	d.Touch(finished)

	var errsOut []error
	if err := e.endpoints.RecordAttempt(bg, d.EndpointID, success, finished); err != nil {
		errsOut = append(errsOut, fmt.Errorf("record endpoint attempt: %w", err))
	}
	if err := e.store.CreateAttempt(bg, &Attempt{
		ID:            id.NewAttemptID(),
		DeliveryID:    d.ID,
		EndpointID:    d.EndpointID,
		AttemptNumber: d.AttemptNumber,
		StatusCode:    d.ResponseStatus,
		Error:         d.Error,
		ErrorKind:     d.ErrorKind,
		LatencyMs:     d.LatencyMs,
		AttemptedAt:   now,
	}); err != nil {
		errsOut = append(errsOut, fmt.Errorf("create attempt: %w", err))
	}
	if err := e.store.UpdateDelivery(bg, d); err != nil {
		errsOut = append(errsOut, fmt.Errorf("update delivery: %w", err))
	}
	if len(errsOut) > 0 {
		err := errors.Join(errsOut...)
		e.logger.ErrorContext(ctx, "persist delivery outcome failed",
			"delivery_id", d.ID,
			"error", err,
		)
		return fmt.Errorf("beacon: delivery %s: %w", d.ID, err)
	}
	return nil
}

// call invokes the transport, converting a panic into a transport error.
func (e *Executor) call(ctx context.Context, req Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("transport panic: %v", r)
		}
	}()
	return e.transport.Do(ctx, req)
}

func (e *Executor) buildRequest(ep *endpoint.Endpoint, d *Delivery, now time.Time) Request {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", e.config.UserAgent)
	h.Set(HeaderEventType, d.EventType)
	h.Set(HeaderEventID, d.EventID.String())
	h.Set(HeaderDeliveryID, d.ID.String())
	h.Set(HeaderAttempt, strconv.Itoa(d.AttemptNumber))
	h.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	if ep.Signed() {
		h.Set(HeaderSignature, signature.Header(ep.Secret, d.RequestBody))
	}
	for k, v := range ep.Headers {
		h.Set(k, v)
	}

	return Request{
		Method:  ep.Method,
		URL:     ep.URL,
		Header:  h,
		Body:    d.RequestBody,
		Timeout: ep.Timeout,
	}
}

func (e *Executor) applyResponse(d *Delivery, resp *Response, callErr error, kind ErrorKind, elapsed time.Duration) {
	d.ErrorKind = kind
	d.ResponseStatus = 0
	d.ResponseHeaders = nil
	d.ResponseBody = ""
	d.Error = ""
	d.LatencyMs = elapsed.Milliseconds()

	if resp != nil {
		d.ResponseStatus = resp.StatusCode
		d.ResponseHeaders = resp.Header
		d.ResponseBody = string(resp.Body)
		if resp.Latency > 0 {
			d.LatencyMs = resp.Latency.Milliseconds()
		}
	}

	switch kind {
	case ErrorKindHTTP:
		d.Error = fmt.Sprintf("HTTP %d: %s", d.ResponseStatus, d.ResponseBody)
	case ErrorKindTimeout:
		d.Error = "timeout: " + callErr.Error()
	case ErrorKindTransport:
		if callErr == nil {
			callErr = errors.New("transport returned no response")
		}
		d.Error = "transport: " + callErr.Error()
	}
}

// release returns a delivery whose attempt never started to StateRetry so a
// later sweep picks it up. The attempt number is given back, since nothing
// was sent, and cause is returned joined with any write failure.
func (e *Executor) release(ctx context.Context, d *Delivery, cause error) error {
	now := e.clock.Now().UTC()
	next := now.Add(ReleaseDelay)
	d.State = StateRetry
	d.NextRetryAt = &next
	if d.AttemptNumber > 0 {
		d.AttemptNumber--
	}
	d.Touch(now)

	e.logger.WarnContext(ctx, "delivery attempt not started, released for retry",
		"delivery_id", d.ID,
		"endpoint_id", d.EndpointID,
		"next_retry_at", next,
		"error", cause,
	)

	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		return errors.Join(cause, fmt.Errorf("beacon: release delivery %s: %w", d.ID, err))
	}
	e.config.Metrics.RetryScheduled()
	return cause
}

// disable moves a delivery to StateDisabled without sending anything.
func (e *Executor) disable(ctx context.Context, d *Delivery, reason string) error {
	now := e.clock.Now().UTC()
	d.State = StateDisabled
	d.Error = reason
	d.NextRetryAt = nil
	d.Touch(now)

	e.config.Metrics.RecordDelivery("disabled", 0)
	e.logger.WarnContext(ctx, "delivery disabled",
		"delivery_id", d.ID,
		"endpoint_id", d.EndpointID,
		"reason", reason,
	)

	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		return fmt.Errorf("beacon: disable delivery %s: %w", d.ID, err)
	}
	return nil
}
