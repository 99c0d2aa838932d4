package delivery

import (
	"context"
	"time"

	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
)

// Store defines the persistence contract for deliveries and their attempts.
type Store interface {
	// CreateDelivery persists a new delivery.
	CreateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// UpdateDelivery writes the full delivery record.
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// ClaimRetries atomically moves up to limit deliveries in StateRetry
	// with NextRetryAt <= now to StateProcessing and increments their
	// AttemptNumber. A claimed delivery is never returned to another caller.
	// Deliveries whose AttemptNumber already equals MaxAttempts are not
	// claimed.
	ClaimRetries(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// ListDeliveries returns deliveries, newest first.
	ListDeliveries(ctx context.Context, opts ListOpts) ([]*Delivery, error)

	// CountOpenDeliveries counts pending, processing and retry deliveries
	// of an endpoint.
	CountOpenDeliveries(ctx context.Context, epID id.ID) (int64, error)

	// CountDeliveriesByState returns the number of deliveries per state.
	CountDeliveriesByState(ctx context.Context) (map[State]int64, error)

	// CreateAttempt appends an attempt record.
	CreateAttempt(ctx context.Context, a *Attempt) error

	// ListAttempts returns the attempts of a delivery, oldest first.
	ListAttempts(ctx context.Context, delID id.ID) ([]*Attempt, error)
}

// Backend is the persistence the delivery components need. The composite
// store satisfies it.
type Backend interface {
	Store
	endpoint.Store
	event.Store
}
