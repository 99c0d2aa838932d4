// Package delivery sends events to delivery targets.
//
// An Executor performs exactly one outbound attempt for a Delivery and
// decides what happens next. The Dispatcher turns a triggered event into one
// Delivery per matching target and runs them concurrently. The Sweeper
// periodically claims deliveries whose retry time has come and hands them
// back to the Executor.
package delivery

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// State is the lifecycle state of a delivery.
type State string

const (
	// StatePending is a delivery created but not yet attempted.
	StatePending State = "pending"

	// StateProcessing is a delivery with an attempt in flight. The sweeper
	// never claims it.
	StateProcessing State = "processing"

	// StateDelivered is terminal: the target answered 2xx.
	StateDelivered State = "delivered"

	// StateFailed is terminal once attempts are exhausted.
	StateFailed State = "failed"

	// StateRetry is a failed attempt waiting for NextRetryAt.
	StateRetry State = "retry"

	// StateDisabled is terminal: the target was inactive or gone when the
	// attempt was due, so nothing was sent.
	StateDisabled State = "disabled"
)

// States lists every delivery state.
var States = []State{
	StatePending,
	StateProcessing,
	StateDelivered,
	StateFailed,
	StateRetry,
	StateDisabled,
}

// Terminal reports whether no further attempt will be made automatically.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed || s == StateDisabled
}

// Open reports whether a delivery in this state still references its target.
func (s State) Open() bool {
	return s == StatePending || s == StateProcessing || s == StateRetry
}

// ErrorKind classifies why an attempt failed.
type ErrorKind string

const (
	ErrorKindNone ErrorKind = ""

	// ErrorKindHTTP is a response outside [200,300).
	ErrorKindHTTP ErrorKind = "http"

	// ErrorKindTimeout is an attempt that exceeded the target timeout.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindTransport is any other failure to complete the call.
	ErrorKindTransport ErrorKind = "transport"
)

// Delivery is one (event, target) pairing and the state of its attempts.
type Delivery struct {
	entity.Entity

	ID         id.ID  `json:"id"`
	EventID    id.ID  `json:"event_id"`
	EventType  string `json:"event_type"`
	EndpointID id.ID  `json:"endpoint_id"`
	State      State  `json:"state"`

	// Method, URL, RequestHeaders and RequestBody are what was actually
	// sent on the latest attempt. RequestBody is fixed at creation so every
	// retry sends identical bytes.
	Method         string          `json:"method"`
	URL            string          `json:"url"`
	RequestHeaders http.Header     `json:"request_headers,omitempty"`
	RequestBody    json.RawMessage `json:"request_body"`

	ResponseStatus  int         `json:"response_status,omitempty"`
	ResponseHeaders http.Header `json:"response_headers,omitempty"`
	ResponseBody    string      `json:"response_body,omitempty"`
	LatencyMs       int64       `json:"latency_ms,omitempty"`

	AttemptNumber int        `json:"attempt_number"`
	MaxAttempts   int        `json:"max_attempts"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Attempt is the append-only record of one delivery attempt.
type Attempt struct {
	ID            id.ID     `json:"id"`
	DeliveryID    id.ID     `json:"delivery_id"`
	EndpointID    id.ID     `json:"endpoint_id"`
	AttemptNumber int       `json:"attempt_number"`
	StatusCode    int       `json:"status_code,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	LatencyMs     int64     `json:"latency_ms"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// Succeeded reports whether the attempt got a 2xx response.
func (a *Attempt) Succeeded() bool {
	return a.ErrorKind == ErrorKindNone && a.StatusCode >= 200 && a.StatusCode < 300
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset     int
	Limit      int
	EndpointID id.ID
	EventID    id.ID
	State      State
}
