package event

import (
	"context"
	"time"

	"github.com/xraph/beacon/id"
)

// Store defines the persistence contract for events.
type Store interface {
	// CreateEvent persists an event. A non-empty idempotency key that
	// already exists yields ErrDuplicateEvent.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// GetEventByIdempotencyKey returns the event stored under key.
	GetEventByIdempotencyKey(ctx context.Context, key string) (*Event, error)

	// ListEvents returns events, newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)

	// MarkEventProcessed sets the processed flag and final counters.
	MarkEventProcessed(ctx context.Context, evtID id.ID, counts Counts, at time.Time) error
}
