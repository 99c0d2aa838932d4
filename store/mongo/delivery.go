package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/id"
)

// maxClaimBatch caps an unbounded ClaimRetries call.
const maxClaimBatch = 1000

// CreateDelivery persists a new delivery.
func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: create delivery: %w", err)
	}

	return nil
}

// GetDelivery returns a delivery by ID.
func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": delID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, beacon.ErrDeliveryNotFound
		}

		return nil, fmt.Errorf("beacon/mongo: get delivery: %w", err)
	}

	return fromDeliveryModel(&m)
}

// UpdateDelivery replaces a delivery document.
func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: update delivery: %w", err)
	}

	if res.MatchedCount() == 0 {
		return beacon.ErrDeliveryNotFound
	}

	return nil
}

// ClaimRetries claims due retries one document at a time with
// FindOneAndUpdate, so two sweepers never claim the same delivery.
func (s *Store) ClaimRetries(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	if limit <= 0 {
		limit = maxClaimBatch
	}

	result := make([]*delivery.Delivery, 0, limit)
	col := s.mdb.Collection(colDeliveries)

	for range limit {
		filter := bson.M{
			"state":         string(delivery.StateRetry),
			"next_retry_at": bson.M{"$lte": at},
			"$expr":         bson.M{"$lt": bson.A{"$attempt_number", "$max_attempts"}},
		}

		update := bson.M{
			"$set": bson.M{
				"state":         string(delivery.StateProcessing),
				"next_retry_at": nil,
				"updated_at":    at,
			},
			"$inc": bson.M{"attempt_number": 1},
		}

		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetSort(bson.D{{Key: "next_retry_at", Value: 1}})

		var m deliveryModel

		err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if err != nil {
			if errors.Is(err, mongod.ErrNoDocuments) {
				break
			}

			return nil, fmt.Errorf("beacon/mongo: claim retries: %w", err)
		}

		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

// ListDeliveries returns deliveries, newest first.
func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel

	filter := bson.M{}
	if !opts.EndpointID.IsNil() {
		filter["endpoint_id"] = opts.EndpointID.String()
	}

	if !opts.EventID.IsNil() {
		filter["event_id"] = opts.EventID.String()
	}

	if opts.State != "" {
		filter["state"] = string(opts.State)
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
		return nil, fmt.Errorf("beacon/mongo: list deliveries: %w", err)
	}

	return convert(models, fromDeliveryModel)
}

// CountOpenDeliveries counts deliveries of an endpoint still in flight.
func (s *Store) CountOpenDeliveries(ctx context.Context, epID id.ID) (int64, error) {
	count, err := s.mdb.NewFind((*deliveryModel)(nil)).
		Filter(bson.M{
			"endpoint_id": epID.String(),
			"state": bson.M{"$in": bson.A{
				string(delivery.StatePending),
				string(delivery.StateProcessing),
				string(delivery.StateRetry),
			}},
		}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("beacon/mongo: count open deliveries: %w", err)
	}

	return count, nil
}

// CountDeliveriesByState groups deliveries by state in one aggregation.
func (s *Store) CountDeliveriesByState(ctx context.Context) (map[delivery.State]int64, error) {
	pipeline := mongod.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$state"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.mdb.Collection(colDeliveries).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("beacon/mongo: count by state: %w", err)
	}

	var rows []struct {
		State string `bson:"_id"`
		Count int64  `bson:"count"`
	}

	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("beacon/mongo: count by state: %w", err)
	}

	counts := make(map[delivery.State]int64, len(rows))
	for _, r := range rows {
		counts[delivery.State(r.State)] = r.Count
	}

	return counts, nil
}

// CreateAttempt appends an attempt record.
func (s *Store) CreateAttempt(ctx context.Context, a *delivery.Attempt) error {
	_, err := s.mdb.NewInsert(toAttemptModel(a)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: create attempt: %w", err)
	}

	return nil
}

// ListAttempts returns the attempts of a delivery, oldest first.
func (s *Store) ListAttempts(ctx context.Context, delID id.ID) ([]*delivery.Attempt, error) {
	var models []attemptModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"delivery_id": delID.String()}).
		Sort(bson.D{{Key: "attempt_number", Value: 1}, {Key: "attempted_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list attempts: %w", err)
	}

	return convert(models, fromAttemptModel)
}
