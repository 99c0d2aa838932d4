package action

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// ──────────────────────────────────────────────────
// update_field
// ──────────────────────────────────────────────────

// UpdateField sets one subject field. String values are rendered as
// templates first.
type UpdateField struct{ deps Deps }

// Kind implements Action.
func (a *UpdateField) Kind() workflow.ActionKind { return workflow.ActionUpdateField }

// Execute implements Action.
func (a *UpdateField) Execute(ctx context.Context, req *Request) (Result, error) {
	field, _ := req.Step.Config["field"].(string)
	value := req.Step.Config["value"]
	if s, ok := value.(string); ok {
		value = Render(s, req.Env)
	}

	if err := a.deps.Subjects.SetSubjectField(ctx, req.Subject.ID, field, value); err != nil {
		return Result{}, fmt.Errorf("update field %q: %w", field, err)
	}
	return Succeeded("field "+field+" updated", map[string]any{
		"field":    field,
		"value":    value,
		"previous": req.Subject.Fields[field],
	}), nil
}

// ──────────────────────────────────────────────────
// add_to_segment / remove_from_segment
// ──────────────────────────────────────────────────

// Segment adds the subject to, or removes it from, a segment.
type Segment struct {
	kind workflow.ActionKind
	add  bool
	deps Deps
}

// Kind implements Action.
func (a *Segment) Kind() workflow.ActionKind { return a.kind }

// Execute implements Action.
func (a *Segment) Execute(ctx context.Context, req *Request) (Result, error) {
	segment, _ := req.Step.Config["segment"].(string)
	was := req.Subject.InSegment(segment)

	if a.add {
		if err := a.deps.Subjects.AddToSegment(ctx, req.Subject.ID, segment); err != nil {
			return Result{}, fmt.Errorf("add to segment %q: %w", segment, err)
		}
		return Succeeded("added to segment "+segment, map[string]any{
			"segment": segment,
			"changed": !was,
		}), nil
	}

	if err := a.deps.Subjects.RemoveFromSegment(ctx, req.Subject.ID, segment); err != nil {
		return Result{}, fmt.Errorf("remove from segment %q: %w", segment, err)
	}
	return Succeeded("removed from segment "+segment, map[string]any{
		"segment": segment,
		"changed": was,
	}), nil
}

// ──────────────────────────────────────────────────
// add_tag
// ──────────────────────────────────────────────────

// AddTag tags the subject.
type AddTag struct{ deps Deps }

// Kind implements Action.
func (a *AddTag) Kind() workflow.ActionKind { return workflow.ActionAddTag }

// Execute implements Action.
func (a *AddTag) Execute(ctx context.Context, req *Request) (Result, error) {
	tag := Render(fmt.Sprint(req.Step.Config["tag"]), req.Env)
	if err := a.deps.Subjects.AddSubjectTag(ctx, req.Subject.ID, tag); err != nil {
		return Result{}, fmt.Errorf("add tag %q: %w", tag, err)
	}
	return Succeeded("tag "+tag+" added", map[string]any{"tag": tag}), nil
}

// ──────────────────────────────────────────────────
// update_score
// ──────────────────────────────────────────────────

// UpdateScore adds a delta to the subject's score.
type UpdateScore struct{ deps Deps }

// Kind implements Action.
func (a *UpdateScore) Kind() workflow.ActionKind { return workflow.ActionUpdateScore }

// Execute implements Action.
func (a *UpdateScore) Execute(ctx context.Context, req *Request) (Result, error) {
	var cfg struct {
		Delta float64 `json:"delta"`
	}
	if err := workflow.DecodeConfig(req.Step.Config, &cfg); err != nil {
		return Result{}, err
	}

	score, err := a.deps.Subjects.AdjustSubjectScore(ctx, req.Subject.ID, cfg.Delta)
	if err != nil {
		return Result{}, fmt.Errorf("adjust score: %w", err)
	}
	return Succeeded(fmt.Sprintf("score adjusted by %g", cfg.Delta), map[string]any{
		"delta":    cfg.Delta,
		"previous": req.Subject.Score,
		"score":    score,
	}), nil
}

// ──────────────────────────────────────────────────
// create_task
// ──────────────────────────────────────────────────

// CreateTask creates a follow-up task for the subject.
type CreateTask struct{ deps Deps }

// Kind implements Action.
func (a *CreateTask) Kind() workflow.ActionKind { return workflow.ActionCreateTask }

// Execute implements Action.
func (a *CreateTask) Execute(ctx context.Context, req *Request) (Result, error) {
	var cfg struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Assignee    string `json:"assignee"`
		DueIn       string `json:"due_in"`
	}
	if err := workflow.DecodeConfig(req.Step.Config, &cfg); err != nil {
		return Result{}, err
	}

	now := a.deps.Clock.Now().UTC()
	task := &subject.Task{
		Entity:      entity.At(now),
		ID:          id.NewTaskID(),
		SubjectID:   req.Subject.ID,
		RunID:       req.Run.ID,
		Title:       Render(cfg.Title, req.Env),
		Description: Render(cfg.Description, req.Env),
		Assignee:    cfg.Assignee,
	}
	if cfg.DueIn != "" {
		d, err := time.ParseDuration(cfg.DueIn)
		if err != nil {
			return Result{}, fmt.Errorf("due_in: %w", err)
		}
		due := now.Add(d)
		task.DueAt = &due
	}

	if err := a.deps.Subjects.CreateTask(ctx, task); err != nil {
		return Result{}, fmt.Errorf("create task: %w", err)
	}
	return Succeeded("task created: "+task.Title, map[string]any{
		"task_id": task.ID.String(),
		"title":   task.Title,
	}), nil
}
