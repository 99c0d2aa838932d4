package automation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/action"
	"github.com/xraph/beacon/automation"
	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/store/memory"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	store *memory.Store
	clock *clockwork.FakeClock
	orch  *automation.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := memory.New()
	return newHarnessOn(t, s, clockwork.NewFakeClockAt(epoch))
}

func newHarnessOn(t *testing.T, s *memory.Store, clock *clockwork.FakeClock) *harness {
	t.Helper()
	eval := condition.NewEvaluator()
	registry := action.DefaultRegistry(action.Deps{
		Subjects:  s,
		Notifier:  action.NotifierFunc(func(context.Context, action.Message) error { return nil }),
		Evaluator: eval,
		Clock:     clock,
	})
	exec := action.NewExecutor(registry, s, s, eval, clock, action.ExecutorConfig{}, nil)
	return &harness{
		store: s,
		clock: clock,
		orch:  automation.New(s, s, s, exec, eval, clock, automation.Config{Concurrency: 4}, nil),
	}
}

func (h *harness) subject(t *testing.T, score float64, fields map[string]any) *subject.Subject {
	t.Helper()
	subj := &subject.Subject{
		Entity: entity.At(epoch),
		ID:     id.NewSubjectID(),
		Fields: fields,
		Score:  score,
	}
	if err := h.store.PutSubject(context.Background(), subj); err != nil {
		t.Fatal(err)
	}
	return subj
}

func (h *harness) workflow(t *testing.T, steps []workflow.Step, mutate func(wf *workflow.Workflow)) *workflow.Workflow {
	t.Helper()
	wf := &workflow.Workflow{
		Entity:  entity.At(epoch),
		ID:      id.NewWorkflowID(),
		Name:    t.Name(),
		Steps:   steps,
		Trigger: workflow.Trigger{Type: workflow.TriggerManual},
		Status:  workflow.StatusActive,
	}
	if mutate != nil {
		mutate(wf)
	}
	if err := h.store.CreateWorkflow(context.Background(), wf); err != nil {
		t.Fatal(err)
	}
	return wf
}

func (h *harness) trigger(t *testing.T, wf *workflow.Workflow, subj *subject.Subject) *run.Run {
	t.Helper()
	res, err := h.orch.Trigger(context.Background(), automation.TriggerInput{WorkflowID: wf.ID, SubjectID: subj.ID})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !res.Matched || res.Run == nil {
		t.Fatalf("trigger result = %+v", res)
	}
	return res.Run
}

func (h *harness) run(t *testing.T, runID id.ID) *run.Run {
	t.Helper()
	r, err := h.store.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (h *harness) logs(t *testing.T, runID id.ID) []*run.StepLog {
	t.Helper()
	logs, err := h.store.ListStepLogs(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	return logs
}

func (h *harness) reloadSubject(t *testing.T, subjID id.ID) *subject.Subject {
	t.Helper()
	subj, err := h.store.GetSubject(context.Background(), subjID)
	if err != nil {
		t.Fatal(err)
	}
	return subj
}

func tag(name string) workflow.Step {
	return workflow.Step{Kind: workflow.ActionAddTag, Config: map[string]any{"tag": name}}
}

func vipBranch() workflow.Step {
	return workflow.Step{Kind: workflow.ActionBranch, Config: map[string]any{
		"branches": []any{
			map[string]any{"name": "vip", "conditions": []any{
				map[string]any{"field": "score", "operator": "gt", "value": 50},
			}},
		},
		"default": "standard",
	}}
}

func TestRun_BranchesAndCompletes(t *testing.T) {
	h := newHarness(t)
	subj := h.subject(t, 60, map[string]any{"email": "ada@example.com"})
	wf := h.workflow(t, []workflow.Step{
		{Kind: workflow.ActionSendEmail, Config: map[string]any{"subject": "Hi"}},
		vipBranch(),
		{
			Kind:   workflow.ActionAddTag,
			Config: map[string]any{"tag": "vip-welcomed"},
			Conditions: []condition.Condition{
				{Source: condition.SourceVariable, Field: "branch", Operator: condition.OpEquals, Value: "vip"},
			},
		},
	}, nil)

	started := h.trigger(t, wf, subj)
	if started.Status != run.StatusStarted {
		t.Errorf("initial status = %q", started.Status)
	}
	h.orch.Wait()

	r := h.run(t, started.ID)
	if r.Status != run.StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", r.Status, r.Error)
	}
	if r.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if r.Variables[automation.VarBranch] != "vip" {
		t.Errorf("branch variable = %v", r.Variables[automation.VarBranch])
	}
	steps, _ := r.Variables[automation.VarSteps].(map[string]any)
	if _, ok := steps["0"]; !ok {
		t.Errorf("step 0 output missing from variables: %v", r.Variables)
	}

	logs := h.logs(t, started.ID)
	if len(logs) != 3 {
		t.Fatalf("step logs = %d, want 3", len(logs))
	}
	for i, l := range logs {
		if l.StepIndex != i {
			t.Errorf("log %d has step index %d", i, l.StepIndex)
		}
		if l.Outcome != run.OutcomeSuccess {
			t.Errorf("log %d outcome = %q", i, l.Outcome)
		}
	}
	if logs[1].BranchPath != "vip" {
		t.Errorf("branch path = %q, want vip", logs[1].BranchPath)
	}
	if !h.reloadSubject(t, subj.ID).HasTag("vip-welcomed") {
		t.Error("vip tag not added")
	}

	stored, err := h.store.GetWorkflow(context.Background(), wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Metrics.RunsStarted != 1 || stored.Metrics.RunsCompleted != 1 {
		t.Errorf("metrics = %+v", stored.Metrics)
	}
}

func TestRun_StandardBranchSkipsVipStep(t *testing.T) {
	h := newHarness(t)
	subj := h.subject(t, 20, nil)
	wf := h.workflow(t, []workflow.Step{
		vipBranch(),
		{
			Kind:   workflow.ActionAddTag,
			Config: map[string]any{"tag": "vip-welcomed"},
			Conditions: []condition.Condition{
				{Source: condition.SourceVariable, Field: "branch", Operator: condition.OpEquals, Value: "vip"},
			},
		},
	}, nil)

	r := h.trigger(t, wf, subj)
	h.orch.Wait()

	logs := h.logs(t, r.ID)
	if len(logs) != 2 || logs[0].BranchPath != "standard" || logs[1].Outcome != run.OutcomeSkipped {
		t.Fatalf("logs = %+v", logs)
	}
	if got := h.run(t, r.ID); got.Status != run.StatusCompleted {
		t.Errorf("status = %q", got.Status)
	}
}

func TestTrigger_AudienceMismatch(t *testing.T) {
	h := newHarness(t)
	subj := h.subject(t, 10, nil)
	wf := h.workflow(t, []workflow.Step{tag("x")}, func(wf *workflow.Workflow) {
		wf.Audience = []condition.Condition{{Field: "score", Operator: condition.OpGreater, Value: 50}}
	})

	res, err := h.orch.Trigger(context.Background(), automation.TriggerInput{WorkflowID: wf.ID, SubjectID: subj.ID})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched || res.Run != nil || res.Reason == "" {
		t.Errorf("result = %+v", res)
	}
	runs, _ := h.store.ListRuns(context.Background(), run.ListOpts{WorkflowID: wf.ID})
	if len(runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs))
	}
}

func TestTrigger_InactiveWorkflow(t *testing.T) {
	h := newHarness(t)
	subj := h.subject(t, 0, nil)
	for _, status := range []workflow.Status{workflow.StatusDraft, workflow.StatusPaused, workflow.StatusCompleted} {
		wf := h.workflow(t, []workflow.Step{tag("x")}, func(wf *workflow.Workflow) { wf.Status = status })
		_, err := h.orch.Trigger(context.Background(), automation.TriggerInput{WorkflowID: wf.ID, SubjectID: subj.ID})
		if !errors.Is(err, errs.ErrWorkflowNotActive) {
			t.Errorf("%s: err = %v, want ErrWorkflowNotActive", status, err)
		}
	}
}

func TestTrigger_UnknownSubject(t *testing.T) {
	h := newHarness(t)
	wf := h.workflow(t, []workflow.Step{tag("x")}, nil)
	_, err := h.orch.Trigger(context.Background(), automation.TriggerInput{WorkflowID: wf.ID, SubjectID: id.NewSubjectID()})
	if !errors.Is(err, errs.ErrSubjectNotFound) {
		t.Errorf("err = %v, want ErrSubjectNotFound", err)
	}
}

func TestRun_FailedStepStops(t *testing.T) {
	h := newHarness(t)
	subj := h.subject(t, 0, nil) // no email: send_email fails
	wf := h.workflow(t, []workflow.Step{
		tag("first"),
		{Kind: workflow.ActionSendEmail, Config: map[string]any{"subject": "Hi"}},
		tag("never"),
	}, nil)

	r := h.trigger(t, wf, subj)
	h.orch.Wait()

	got := h.run(t, r.ID)
	if got.Status != run.StatusFailed || got.Error == "" {
		t.Fatalf("run = %q %q, want failed", got.Status, got.Error)
	}
	if got.CurrentStep != 1 {
		t.Errorf("current step = %d, want 1", got.CurrentStep)
	}
	if logs := h.logs(t, r.ID); len(logs) != 2 {
		t.Errorf("step logs = %d, want 2", len(logs))
	}
	if h.reloadSubject(t, subj.ID).HasTag("never") {
		t.Error("step after failure executed")
	}

	stored, _ := h.store.GetWorkflow(context.Background(), wf.ID)
	if stored.Metrics.RunsFailed != 1 {
		t.Errorf("metrics = %+v", stored.Metrics)
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	h := newHarness(t)
	subj := h.subject(t, 0, nil)
	wf := h.workflow(t, []workflow.Step{
		{Kind: workflow.ActionSendEmail, Config: map[string]any{"subject": "Hi"}, ContinueOnError: true},
		tag("after"),
	}, nil)

	r := h.trigger(t, wf, subj)
	h.orch.Wait()

	if got := h.run(t, r.ID); got.Status != run.StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	logs := h.logs(t, r.ID)
	if len(logs) != 2 || logs[0].Outcome != run.OutcomeFailed || logs[1].Outcome != run.OutcomeSuccess {
		t.Errorf("logs = %+v", logs)
	}
	if !h.reloadSubject(t, subj.ID).HasTag("after") {
		t.Error("step after tolerated failure did not run")
	}
}

func TestCancel_BetweenSteps(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := newHarness(t)
	subj := h.subject(t, 0, nil)
	delayed := tag("second")
	delayed.Delay = time.Hour
	wf := h.workflow(t, []workflow.Step{tag("first"), delayed, tag("third")}, nil)

	r := h.trigger(t, wf, subj)

	// The run is parked on the delay of step 1.
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	cancelled, err := h.orch.Cancel(ctx, r.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != run.StatusCancelled {
		t.Errorf("status = %q", cancelled.Status)
	}

	h.clock.Advance(time.Hour)
	h.orch.Wait()

	got := h.run(t, r.ID)
	if got.Status != run.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}
	logs := h.logs(t, r.ID)
	if len(logs) != 1 || logs[0].StepIndex != 0 {
		t.Errorf("logs = %+v, want only step 0", logs)
	}
	subjNow := h.reloadSubject(t, subj.ID)
	if subjNow.HasTag("second") || subjNow.HasTag("third") {
		t.Errorf("tags = %v", subjNow.Tags)
	}

	if _, err := h.orch.Cancel(ctx, r.ID); !errors.Is(err, errs.ErrRunNotActive) {
		t.Errorf("second cancel err = %v, want ErrRunNotActive", err)
	}
	stored, _ := h.store.GetWorkflow(ctx, wf.ID)
	if stored.Metrics.RunsCancelled != 1 || stored.Metrics.RunsCompleted != 0 {
		t.Errorf("metrics = %+v", stored.Metrics)
	}
}

func TestStopAndResume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := memory.New()
	clock := clockwork.NewFakeClockAt(epoch)
	h := newHarnessOn(t, s, clock)
	h.orch.Start(ctx)

	subj := h.subject(t, 0, nil)
	delayed := tag("second")
	delayed.Delay = time.Hour
	wf := h.workflow(t, []workflow.Step{tag("first"), delayed}, nil)
	r := h.trigger(t, wf, subj)

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := h.run(t, r.ID)
	if got.Status != run.StatusStarted || got.CurrentStep != 1 {
		t.Fatalf("after stop: %q at step %d, want started at 1", got.Status, got.CurrentStep)
	}

	// A new process picks the run up where it stopped.
	next := newHarnessOn(t, s, clock)
	next.orch.Start(ctx)
	n, err := next.orch.Resume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("resumed = %d, want 1", n)
	}
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	next.orch.Wait()

	got = next.run(t, r.ID)
	if got.Status != run.StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	logs := next.logs(t, r.ID)
	if len(logs) != 2 || logs[0].StepIndex != 0 || logs[1].StepIndex != 1 {
		t.Errorf("logs = %+v, want steps 0 and 1 once each", logs)
	}
}

func TestStopDuringWaitStep_Resumes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := memory.New()
	clock := clockwork.NewFakeClockAt(epoch)
	h := newHarnessOn(t, s, clock)
	h.orch.Start(ctx)

	subj := h.subject(t, 0, nil)
	wait := workflow.Step{Kind: workflow.ActionWait, Config: map[string]any{"duration": "1h"}}
	wf := h.workflow(t, []workflow.Step{wait, tag("after")}, nil)
	r := h.trigger(t, wf, subj)

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := h.run(t, r.ID)
	if got.Status != run.StatusStarted || got.CurrentStep != 0 {
		t.Fatalf("after stop: %q at step %d (error %q), want started at 0", got.Status, got.CurrentStep, got.Error)
	}
	if logs := h.logs(t, r.ID); len(logs) != 0 {
		t.Fatalf("interrupted wait wrote step logs: %+v", logs)
	}

	next := newHarnessOn(t, s, clock)
	next.orch.Start(ctx)
	if n, err := next.orch.Resume(ctx); err != nil || n != 1 {
		t.Fatalf("Resume = %d, %v; want 1", n, err)
	}
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	next.orch.Wait()

	got = next.run(t, r.ID)
	if got.Status != run.StatusCompleted {
		t.Fatalf("status = %q (error %q), want completed", got.Status, got.Error)
	}
	logs := next.logs(t, r.ID)
	if len(logs) != 2 || logs[0].Outcome != run.OutcomeSuccess || logs[1].Outcome != run.OutcomeSuccess {
		t.Errorf("logs = %+v, want two successful steps", logs)
	}
	if !next.reloadSubject(t, subj.ID).HasTag("after") {
		t.Error("step after the wait did not run")
	}
}

func TestHandleEvent(t *testing.T) {
	h := newHarness(t)
	subj := h.subject(t, 0, nil)
	wf := h.workflow(t, []workflow.Step{{
		Kind:   workflow.ActionUpdateField,
		Config: map[string]any{"field": "plan", "value": "{{vars.event.data.plan}}"},
	}}, func(wf *workflow.Workflow) {
		wf.Trigger = workflow.Trigger{Type: workflow.TriggerEvent, EventType: "plan.changed"}
	})
	h.workflow(t, []workflow.Step{tag("other")}, func(wf *workflow.Workflow) {
		wf.Trigger = workflow.Trigger{Type: workflow.TriggerEvent, EventType: "something.else"}
	})
	h.workflow(t, []workflow.Step{tag("paused")}, func(wf *workflow.Workflow) {
		wf.Trigger = workflow.Trigger{Type: workflow.TriggerEvent, EventType: "plan.changed"}
		wf.Status = workflow.StatusPaused
	})

	evt := &event.Event{
		ID:         id.NewEventID(),
		Type:       "plan.changed",
		SourceType: event.SourceSubject,
		SourceID:   subj.ID.String(),
		Data:       map[string]any{"plan": "pro"},
	}
	results, err := h.orch.HandleEvent(context.Background(), evt)
	if err != nil {
		t.Fatal(err)
	}
	h.orch.Wait()

	if len(results) != 1 || !results[0].Matched {
		t.Fatalf("results = %+v", results)
	}
	r := h.run(t, results[0].Run.ID)
	if r.WorkflowID != wf.ID || r.TriggerSource != run.SourceEvent || r.EventID != evt.ID {
		t.Errorf("run = %+v", r)
	}
	if r.Status != run.StatusCompleted {
		t.Errorf("status = %q (%s)", r.Status, r.Error)
	}
	if got := h.reloadSubject(t, subj.ID).Fields["plan"]; got != "pro" {
		t.Errorf("plan = %v, want pro", got)
	}
}

func TestHandleEvent_NoSubject(t *testing.T) {
	h := newHarness(t)
	h.workflow(t, []workflow.Step{tag("x")}, func(wf *workflow.Workflow) {
		wf.Trigger = workflow.Trigger{Type: workflow.TriggerEvent, EventType: "plan.changed"}
	})

	results, err := h.orch.HandleEvent(context.Background(), &event.Event{ID: id.NewEventID(), Type: "plan.changed"})
	if err != nil || len(results) != 0 {
		t.Errorf("results = %v, err = %v", results, err)
	}
}

func TestRun_IndependentRuns(t *testing.T) {
	h := newHarness(t)
	wf := h.workflow(t, []workflow.Step{
		{Kind: workflow.ActionUpdateScore, Config: map[string]any{"delta": 5}},
	}, nil)

	var ids []id.ID
	for range 10 {
		ids = append(ids, h.trigger(t, wf, h.subject(t, 1, nil)).ID)
	}
	h.orch.Wait()

	for _, runID := range ids {
		r := h.run(t, runID)
		if r.Status != run.StatusCompleted {
			t.Errorf("run %s status = %q", runID, r.Status)
		}
		if s := h.reloadSubject(t, r.SubjectID); s.Score != 6 {
			t.Errorf("subject %s score = %v, want 6", s.ID, s.Score)
		}
	}
}
