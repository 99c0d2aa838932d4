package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/subject"
)

// GetSubject returns a subject by ID.
func (s *Store) GetSubject(ctx context.Context, subjID id.ID) (*subject.Subject, error) {
	var m subjectModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subjID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, beacon.ErrSubjectNotFound
		}

		return nil, fmt.Errorf("beacon/mongo: get subject: %w", err)
	}

	return fromSubjectModel(&m)
}

// PutSubject creates or replaces a subject.
func (s *Store) PutSubject(ctx context.Context, subj *subject.Subject) error {
	m := toSubjectModel(subj)

	doc := bson.M{
		"_id":        m.ID,
		"fields":     m.Fields,
		"tags":       m.Tags,
		"score":      m.Score,
		"segments":   m.Segments,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}

	_, err := s.mdb.Collection(colSubjects).ReplaceOne(ctx,
		bson.M{"_id": m.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("beacon/mongo: put subject: %w", err)
	}

	return nil
}

// SetSubjectField sets one field. A dotted name addresses a nested field.
func (s *Store) SetSubjectField(ctx context.Context, subjID id.ID, field string, value any) error {
	return s.updateSubject(ctx, subjID, bson.M{"$set": bson.M{"fields." + field: value, "updated_at": now()}})
}

// AddSubjectTag adds a tag once.
func (s *Store) AddSubjectTag(ctx context.Context, subjID id.ID, tag string) error {
	return s.updateSubject(ctx, subjID, bson.M{
		"$addToSet": bson.M{"tags": tag},
		"$set":      bson.M{"updated_at": now()},
	})
}

// AdjustSubjectScore adds delta to the score and returns the new value.
func (s *Store) AdjustSubjectScore(ctx context.Context, subjID id.ID, delta float64) (float64, error) {
	var m subjectModel

	err := s.mdb.Collection(colSubjects).FindOneAndUpdate(ctx,
		bson.M{"_id": subjID.String()},
		bson.M{"$inc": bson.M{"score": delta}, "$set": bson.M{"updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, beacon.ErrSubjectNotFound
		}

		return 0, fmt.Errorf("beacon/mongo: adjust score: %w", err)
	}

	return m.Score, nil
}

// AddToSegment adds the subject to a segment once.
func (s *Store) AddToSegment(ctx context.Context, subjID id.ID, segment string) error {
	return s.updateSubject(ctx, subjID, bson.M{
		"$addToSet": bson.M{"segments": segment},
		"$set":      bson.M{"updated_at": now()},
	})
}

// RemoveFromSegment removes the subject from a segment.
func (s *Store) RemoveFromSegment(ctx context.Context, subjID id.ID, segment string) error {
	return s.updateSubject(ctx, subjID, bson.M{
		"$pull": bson.M{"segments": segment},
		"$set":  bson.M{"updated_at": now()},
	})
}

func (s *Store) updateSubject(ctx context.Context, subjID id.ID, update bson.M) error {
	res, err := s.mdb.Collection(colSubjects).UpdateOne(ctx, bson.M{"_id": subjID.String()}, update)
	if err != nil {
		return fmt.Errorf("beacon/mongo: update subject: %w", err)
	}

	if res.MatchedCount == 0 {
		return beacon.ErrSubjectNotFound
	}

	return nil
}

// CreateTask stores a task.
func (s *Store) CreateTask(ctx context.Context, t *subject.Task) error {
	_, err := s.mdb.NewInsert(toTaskModel(t)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("beacon/mongo: create task: %w", err)
	}

	return nil
}

// ListTasks returns a subject's tasks, oldest first.
func (s *Store) ListTasks(ctx context.Context, subjID id.ID) ([]*subject.Task, error) {
	var models []taskModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"subject_id": subjID.String()}).
		Sort(oldestFirst).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("beacon/mongo: list tasks: %w", err)
	}

	return convert(models, fromTaskModel)
}
