// Package subject holds the CRM records workflows act on, and the tasks
// steps create for them.
package subject

import (
	"maps"
	"slices"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// Subject is a customer or contact.
type Subject struct {
	entity.Entity

	ID       id.ID          `json:"id"`
	Fields   map[string]any `json:"fields,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Score    float64        `json:"score"`
	Segments []string       `json:"segments,omitempty"`
}

// Snapshot flattens the subject into the map conditions and templates read:
// its free-form fields plus "id", "score", "tags" and "segments". The
// built-in keys win over fields of the same name.
func (s *Subject) Snapshot() map[string]any {
	out := make(map[string]any, len(s.Fields)+4)
	maps.Copy(out, s.Fields)
	out["id"] = s.ID.String()
	out["score"] = s.Score
	out["tags"] = toAny(s.Tags)
	out["segments"] = toAny(s.Segments)
	return out
}

// HasTag reports whether the subject carries tag.
func (s *Subject) HasTag(tag string) bool { return slices.Contains(s.Tags, tag) }

// InSegment reports whether the subject belongs to segment.
func (s *Subject) InSegment(segment string) bool { return slices.Contains(s.Segments, segment) }

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Task is a follow-up item created by a workflow step.
type Task struct {
	entity.Entity

	ID          id.ID      `json:"id"`
	SubjectID   id.ID      `json:"subject_id"`
	RunID       id.ID      `json:"run_id,omitzero"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Done        bool       `json:"done"`
}
