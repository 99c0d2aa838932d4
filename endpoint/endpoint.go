// Package endpoint defines delivery targets: registered destinations that
// receive webhook deliveries for the event types they subscribe to.
package endpoint

import (
	"time"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// Endpoint is a webhook delivery target.
type Endpoint struct {
	entity.Entity

	ID          id.ID  `json:"id"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`

	// Method is the HTTP method used for deliveries. Defaults to POST.
	Method string `json:"method"`

	// Secret is the HMAC signing key. Deliveries are signed only when it is
	// set. Never serialized.
	Secret string `json:"-"`

	// EventTypes is the exact set of event types this target receives.
	// An empty set receives nothing.
	EventTypes []string `json:"event_types"`

	// Filters are payload conditions: every key (a dotted path into the
	// event data) must equal its value for the event to match.
	Filters map[string]any `json:"filters,omitempty"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	Timeout     time.Duration `json:"timeout"`
	MaxAttempts int           `json:"max_attempts"`

	// BackoffBase is the delay before the first retry. Later retries double it.
	BackoffBase time.Duration `json:"backoff_base"`

	// RateLimitPerMinute caps delivery attempts per minute. 0 means unlimited.
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	Active bool `json:"active"`

	TotalDeliveries      int64      `json:"total_deliveries"`
	SuccessfulDeliveries int64      `json:"successful_deliveries"`
	FailedDeliveries     int64      `json:"failed_deliveries"`
	LastAttemptAt        *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt        *time.Time `json:"last_success_at,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Signed reports whether deliveries to this target carry a signature.
func (e *Endpoint) Signed() bool { return e.Secret != "" }

// Subscribes reports whether eventType is in the target's subscription set.
func (e *Endpoint) Subscribes(eventType string) bool {
	for _, t := range e.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// MatchesFilters reports whether every filter equals the corresponding field
// of data. Numbers compare numerically, so 60 and 60.0 match.
func (e *Endpoint) MatchesFilters(data map[string]any) bool {
	for path, want := range e.Filters {
		got, ok := condition.Lookup(data, path)
		if !ok || !condition.Equal(got, want) {
			return false
		}
	}
	return true
}

// Matches reports whether an event of the given type and payload matches
// this target. It does not consult the rate limiter.
func (e *Endpoint) Matches(eventType string, data map[string]any) bool {
	return e.Active && e.Subscribes(eventType) && e.MatchesFilters(data)
}
