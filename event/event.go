// Package event defines the immutable fact records that fan out to
// delivery targets and event-triggered workflows.
package event

import (
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// SourceSubject is the SourceType of events about a CRM subject. Such events
// can start workflows whose trigger listens for their type.
const SourceSubject = "subject"

// Event is something that happened. It is written once at trigger time and
// updated once when its deliveries have settled.
type Event struct {
	entity.Entity

	ID   id.ID  `json:"id"`
	Type string `json:"type"`

	// SourceType and SourceID reference the entity the event is about.
	SourceType string `json:"source_type,omitempty"`
	SourceID   string `json:"source_id,omitempty"`

	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Context  map[string]any `json:"context,omitempty"`

	// IdempotencyKey deduplicates triggers. A repeated key returns the
	// original event without another fan-out.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`

	Processed     bool       `json:"processed"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	DeliveryCount int        `json:"delivery_count"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
}

// Counts are the per-event delivery totals written when processing completes.
type Counts struct {
	Deliveries int `json:"deliveries"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// SubjectID returns the subject the event is about, if any.
func (e *Event) SubjectID() (id.ID, bool) {
	if e.SourceType != SourceSubject || e.SourceID == "" {
		return id.Nil, false
	}
	sid, err := id.Parse(e.SourceID)
	if err != nil {
		return id.Nil, false
	}
	return sid, true
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset    int
	Limit     int
	Type      string
	Processed *bool
	From      *time.Time
	To        *time.Time
}
