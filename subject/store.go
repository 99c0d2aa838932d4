package subject

import (
	"context"

	"github.com/xraph/beacon/id"
)

// Store is the subject lookup and mutation contract. Reads always return
// the current record; callers must not cache subjects across steps.
type Store interface {
	GetSubject(ctx context.Context, subjID id.ID) (*Subject, error)

	// PutSubject creates or replaces a subject.
	PutSubject(ctx context.Context, s *Subject) error

	SetSubjectField(ctx context.Context, subjID id.ID, field string, value any) error
	AddSubjectTag(ctx context.Context, subjID id.ID, tag string) error

	// AdjustSubjectScore adds delta and returns the new score.
	AdjustSubjectScore(ctx context.Context, subjID id.ID, delta float64) (float64, error)

	// AddToSegment and RemoveFromSegment are idempotent.
	AddToSegment(ctx context.Context, subjID id.ID, segment string) error
	RemoveFromSegment(ctx context.Context, subjID id.ID, segment string) error

	CreateTask(ctx context.Context, t *Task) error
	ListTasks(ctx context.Context, subjID id.ID) ([]*Task, error)
}
