package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/store"
)

// Collection name constants.
const (
	colEndpoints  = "beacon_endpoints"
	colEvents     = "beacon_events"
	colDeliveries = "beacon_deliveries"
	colAttempts   = "beacon_attempts"
	colWorkflows  = "beacon_workflows"
	colRuns       = "beacon_runs"
	colStepLogs   = "beacon_step_logs"
	colSubjects   = "beacon_subjects"
	colTasks      = "beacon_tasks"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all beacon collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo: %s indexes: %w", beacon.ErrMigrationFailed, col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// newestFirst and oldestFirst break created_at ties on _id, which sorts by
// creation time for TypeIDs.
var (
	newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	oldestFirst = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
)

// convert maps decoded documents to domain records.
func convert[M, T any](models []M, from func(*M) (*T, error)) ([]*T, error) {
	result := make([]*T, 0, len(models))

	for i := range models {
		v, err := from(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, v)
	}

	return result, nil
}

// migrationIndexes returns the index definitions for all beacon collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEndpoints: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "idempotency_key", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
			},
		},
		colDeliveries: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_retry_at", Value: 1}}},
			{Keys: bson.D{{Key: "endpoint_id", Value: 1}, {Key: "state", Value: 1}}},
			{Keys: bson.D{{Key: "event_id", Value: 1}}},
		},
		colAttempts: {
			{Keys: bson.D{{Key: "delivery_id", Value: 1}, {Key: "attempt_number", Value: 1}}},
		},
		colWorkflows: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "trigger_type", Value: 1}, {Key: "trigger_event_type", Value: 1}}},
		},
		colRuns: {
			{Keys: bson.D{{Key: "workflow_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colStepLogs: {
			{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "started_at", Value: 1}}},
		},
		colTasks: {
			{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}
