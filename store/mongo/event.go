package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
)

// CreateEvent persists an event. The unique idempotency index turns a
// repeated key into ErrDuplicateEvent.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return beacon.ErrDuplicateEvent
		}

		return fmt.Errorf("beacon/mongo: create event: %w", err)
	}

	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	return s.findEvent(ctx, bson.M{"_id": evtID.String()})
}

// GetEventByIdempotencyKey returns the event stored under key.
func (s *Store) GetEventByIdempotencyKey(ctx context.Context, key string) (*event.Event, error) {
	if key == "" {
		return nil, beacon.ErrEventNotFound
	}

	return s.findEvent(ctx, bson.M{"idempotency_key": key})
}

func (s *Store) findEvent(ctx context.Context, filter bson.M) (*event.Event, error) {
	var m eventModel

	err := s.mdb.NewFind(&m).
		Filter(filter).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, beacon.ErrEventNotFound
		}

		return nil, fmt.Errorf("beacon/mongo: get event: %w", err)
	}

	return fromEventModel(&m)
}

// ListEvents returns events, newest first.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = opts.Type
	}

	if opts.Processed != nil {
		filter["processed"] = *opts.Processed
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}

		filter["created_at"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(newestFirst)

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list events: %w", err)
	}

	return convert(models, fromEventModel)
}

// MarkEventProcessed sets the processed flag and final counters.
func (s *Store) MarkEventProcessed(ctx context.Context, evtID id.ID, counts event.Counts, at time.Time) error {
	res, err := s.mdb.NewUpdate((*eventModel)(nil)).
		Filter(bson.M{"_id": evtID.String()}).
		Set("processed", true).
		Set("processed_at", at).
		Set("delivery_count", counts.Deliveries).
		Set("success_count", counts.Succeeded).
		Set("failure_count", counts.Failed).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: mark event processed: %w", err)
	}

	if res.MatchedCount() == 0 {
		return beacon.ErrEventNotFound
	}

	return nil
}
