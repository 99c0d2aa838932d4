package endpoint

import (
	"context"
	"time"

	"github.com/xraph/beacon/id"
)

// Store defines the persistence contract for delivery targets.
type Store interface {
	// CreateEndpoint persists a new endpoint.
	CreateEndpoint(ctx context.Context, ep *Endpoint) error

	// GetEndpoint returns an endpoint by ID.
	GetEndpoint(ctx context.Context, epID id.ID) (*Endpoint, error)

	// UpdateEndpoint replaces the mutable configuration of an endpoint.
	// Delivery counters are owned by RecordAttempt and are not written.
	UpdateEndpoint(ctx context.Context, ep *Endpoint) error

	// DeleteEndpoint removes an endpoint.
	DeleteEndpoint(ctx context.Context, epID id.ID) error

	// ListEndpoints returns endpoints, optionally filtered by active flag.
	ListEndpoints(ctx context.Context, opts ListOpts) ([]*Endpoint, error)

	// ListActiveEndpoints returns every active endpoint. This is the
	// dispatcher's hot path.
	ListActiveEndpoints(ctx context.Context) ([]*Endpoint, error)

	// SetActive activates or deactivates an endpoint without deleting it.
	SetActive(ctx context.Context, epID id.ID, active bool) error

	// RecordAttempt atomically increments the total counter and either the
	// success or failure counter, and stamps LastAttemptAt (and
	// LastSuccessAt on success).
	RecordAttempt(ctx context.Context, epID id.ID, success bool, at time.Time) error
}

// OpenDeliveries counts deliveries of an endpoint that have not reached a
// terminal state. The delivery store implements it.
type OpenDeliveries interface {
	CountOpenDeliveries(ctx context.Context, epID id.ID) (int64, error)
}
