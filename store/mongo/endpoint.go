package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/id"
)

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: create endpoint: %w", err)
	}

	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	var m endpointModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": epID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, beacon.ErrEndpointNotFound
		}

		return nil, fmt.Errorf("beacon/mongo: get endpoint: %w", err)
	}

	return fromEndpointModel(&m)
}

// UpdateEndpoint sets the configuration fields, leaving the counters alone.
func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)

	res, err := s.mdb.NewUpdate((*endpointModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("url", m.URL).
		Set("description", m.Description).
		Set("method", m.Method).
		Set("secret", m.Secret).
		Set("event_types", m.EventTypes).
		Set("filters", m.Filters).
		Set("headers", m.Headers).
		Set("timeout_ms", m.TimeoutMs).
		Set("max_attempts", m.MaxAttempts).
		Set("backoff_base_ms", m.BackoffBaseMs).
		Set("rate_limit_per_minute", m.RateLimitPerMinute).
		Set("active", m.Active).
		Set("metadata", m.Metadata).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: update endpoint: %w", err)
	}

	if res.MatchedCount() == 0 {
		return beacon.ErrEndpointNotFound
	}

	return nil
}

// DeleteEndpoint removes an endpoint.
func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.mdb.NewDelete((*endpointModel)(nil)).
		Filter(bson.M{"_id": epID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: delete endpoint: %w", err)
	}

	if res.DeletedCount() == 0 {
		return beacon.ErrEndpointNotFound
	}

	return nil
}

// ListEndpoints returns endpoints, oldest first.
func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel

	filter := bson.M{}
	if opts.Active != nil {
		filter["active"] = *opts.Active
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(oldestFirst)

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list endpoints: %w", err)
	}

	return convert(models, fromEndpointModel)
}

// ListActiveEndpoints returns every active endpoint.
func (s *Store) ListActiveEndpoints(ctx context.Context) ([]*endpoint.Endpoint, error) {
	active := true
	return s.ListEndpoints(ctx, endpoint.ListOpts{Active: &active})
}

// SetActive activates or deactivates an endpoint.
func (s *Store) SetActive(ctx context.Context, epID id.ID, active bool) error {
	res, err := s.mdb.NewUpdate((*endpointModel)(nil)).
		Filter(bson.M{"_id": epID.String()}).
		Set("active", active).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: set active: %w", err)
	}

	if res.MatchedCount() == 0 {
		return beacon.ErrEndpointNotFound
	}

	return nil
}

// RecordAttempt bumps the delivery counters with $inc.
func (s *Store) RecordAttempt(ctx context.Context, epID id.ID, success bool, at time.Time) error {
	inc := bson.M{"total_deliveries": 1}
	set := bson.M{"last_attempt_at": at}

	if success {
		inc["successful_deliveries"] = 1
		set["last_success_at"] = at
	} else {
		inc["failed_deliveries"] = 1
	}

	res, err := s.mdb.Collection(colEndpoints).UpdateOne(ctx,
		bson.M{"_id": epID.String()},
		bson.M{"$inc": inc, "$set": set},
	)
	if err != nil {
		return fmt.Errorf("beacon/mongo: record attempt: %w", err)
	}

	if res.MatchedCount == 0 {
		return beacon.ErrEndpointNotFound
	}

	return nil
}
