package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/store/memory"
	"github.com/xraph/beacon/workflow"
)

func newService(t *testing.T) (*workflow.Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return workflow.NewService(memory.New(), nil, workflow.WithClock(clock)), clock
}

func onboarding() workflow.Input {
	return workflow.Input{
		Name: "Onboarding",
		Steps: []workflow.Step{
			{Kind: workflow.ActionSendEmail, Config: map[string]any{"subject": "Welcome {{first_name}}"}},
			{Kind: workflow.ActionWait, Config: map[string]any{"duration": "24h"}},
			{Kind: workflow.ActionAddTag, Config: map[string]any{"tag": "onboarded"}},
		},
		Audience: []condition.Condition{
			{Field: "email", Operator: condition.OpExists},
		},
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)

	wf, err := svc.Create(context.Background(), onboarding())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if wf.Status != workflow.StatusDraft {
		t.Errorf("status = %q, want draft", wf.Status)
	}
	if wf.Trigger.Type != workflow.TriggerManual {
		t.Errorf("trigger = %q, want manual", wf.Trigger.Type)
	}

	got, err := svc.Get(context.Background(), wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Steps) != 3 || got.Name != "Onboarding" {
		t.Errorf("stored = %+v", got)
	}
}

func TestCreate_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(in *workflow.Input)
	}{
		{"no name", "name", func(in *workflow.Input) { in.Name = " " }},
		{"no steps", "steps", func(in *workflow.Input) { in.Steps = nil }},
		{"unknown trigger", "trigger.type", func(in *workflow.Input) { in.Trigger.Type = "cron" }},
		{"event trigger without type", "trigger.event_type", func(in *workflow.Input) {
			in.Trigger = workflow.Trigger{Type: workflow.TriggerEvent}
		}},
		{"bad audience", "audience[0]", func(in *workflow.Input) {
			in.Audience = []condition.Condition{{Field: "score", Operator: "between"}}
		}},
		{"unknown action", "steps[1]", func(in *workflow.Input) { in.Steps[1].Kind = "teleport" }},
		{"schema violation", "steps[0]", func(in *workflow.Input) { in.Steps[0].Config = map[string]any{} }},
		{"bad duration", "steps[1]", func(in *workflow.Input) { in.Steps[1].Config["duration"] = "soon" }},
		{"negative delay", "steps[2]", func(in *workflow.Input) { in.Steps[2].Delay = -time.Minute }},
		{"bad step condition", "steps[2]", func(in *workflow.Input) {
			in.Steps[2].Conditions = []condition.Condition{{Operator: condition.OpExpr, Expression: "score >"}}
		}},
		{"bad branch condition", "steps[0]", func(in *workflow.Input) {
			in.Steps[0] = workflow.Step{Kind: workflow.ActionBranch, Config: map[string]any{
				"branches": []any{map[string]any{"name": "vip", "conditions": []any{
					map[string]any{"operator": "expr", "expression": "score >"},
				}}},
			}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			in := onboarding()
			tt.edit(&in)

			_, err := svc.Create(context.Background(), in)
			var ve *errs.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q (%s)", ve.Field, tt.field, ve.Message)
			}
		})
	}
}

func TestCreate_UnknownActionMessage(t *testing.T) {
	svc, _ := newService(t)
	in := onboarding()
	in.Steps[0].Kind = "teleport"

	_, err := svc.Create(context.Background(), in)
	if err == nil || !strings.Contains(err.Error(), "teleport") {
		t.Errorf("err = %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, clock := newService(t)

	wf, err := svc.Create(ctx, onboarding())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Pause(ctx, wf.ID); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("pause draft: err = %v", err)
	}

	wf, err = svc.Activate(ctx, wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if wf.Status != workflow.StatusActive || wf.ActivatedAt == nil || !wf.ActivatedAt.Equal(clock.Now()) {
		t.Errorf("activated = %+v", wf)
	}

	if _, err := svc.Update(ctx, wf.ID, onboarding()); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Errorf("update active: err = %v", err)
	}

	clock.Advance(time.Hour)
	wf, err = svc.Pause(ctx, wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if wf.PausedAt == nil || !wf.PausedAt.Equal(clock.Now()) {
		t.Errorf("paused at = %v", wf.PausedAt)
	}

	in := onboarding()
	in.Name = "Onboarding v2"
	wf, err = svc.Update(ctx, wf.ID, in)
	if err != nil {
		t.Fatalf("update paused: %v", err)
	}
	if wf.Name != "Onboarding v2" || wf.Status != workflow.StatusPaused {
		t.Errorf("updated = %+v", wf)
	}

	if _, err := svc.Activate(ctx, wf.ID); err != nil {
		t.Fatal(err)
	}
	wf, err = svc.Complete(ctx, wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if wf.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if _, err := svc.Activate(ctx, wf.ID); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Errorf("reactivate completed: err = %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	a, err := svc.Create(ctx, onboarding())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, onboarding()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Activate(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	all, err := svc.List(ctx, workflow.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}
	active, err := svc.List(ctx, workflow.ListOpts{Status: workflow.StatusActive})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Errorf("active = %v", active)
	}
}
