package action_test

import (
	"context"
	"strings"
	"testing"

	"github.com/xraph/beacon/action"
	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/workflow"
)

type panicky struct{}

func (panicky) Kind() workflow.ActionKind { return "explode" }
func (panicky) Execute(context.Context, *action.Request) (action.Result, error) {
	panic("boom")
}

func newExecutor(f *fixture) *action.Executor {
	return action.NewExecutor(f.registry, f.store, f.store, nil, f.clock, action.ExecutorConfig{}, nil)
}

func stepLogs(t *testing.T, f *fixture) []*run.StepLog {
	t.Helper()
	logs, err := f.store.ListStepLogs(context.Background(), f.run.ID)
	if err != nil {
		t.Fatal(err)
	}
	return logs
}

func TestExecutor_WritesOneStepLog(t *testing.T) {
	f := newFixture(t, nil)
	exec := newExecutor(f)

	res, err := exec.Execute(context.Background(), 2, workflow.Step{
		Kind:   workflow.ActionAddTag,
		Name:   "tag engaged",
		Config: map[string]any{"tag": "engaged"},
	}, f.run)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}

	logs := stepLogs(t, f)
	if len(logs) != 1 {
		t.Fatalf("step logs = %d, want 1", len(logs))
	}
	l := logs[0]
	if l.StepIndex != 2 || l.Kind != "add_tag" || l.Name != "tag engaged" || l.Outcome != run.OutcomeSuccess {
		t.Errorf("log = %+v", l)
	}
	if l.Input["config"] == nil || l.Input["subject"] == nil || l.Input["variables"] == nil {
		t.Errorf("input = %v", l.Input)
	}
	if l.Output["tag"] != "engaged" {
		t.Errorf("output = %v", l.Output)
	}
	if l.Error != "" {
		t.Errorf("error = %q", l.Error)
	}
}

func TestExecutor_ReadsSubjectFresh(t *testing.T) {
	f := newFixture(t, nil)
	exec := newExecutor(f)
	cond := []condition.Condition{{Field: "plan", Operator: condition.OpEquals, Value: "pro"}}

	res, err := exec.Execute(context.Background(), 0, workflow.Step{
		Kind: workflow.ActionAddTag, Config: map[string]any{"tag": "pro"}, Conditions: cond,
	}, f.run)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != run.OutcomeSkipped {
		t.Fatalf("outcome = %q, want skipped", res.Outcome)
	}

	if err := f.store.SetSubjectField(context.Background(), f.subject.ID, "plan", "pro"); err != nil {
		t.Fatal(err)
	}
	res, err = exec.Execute(context.Background(), 1, workflow.Step{
		Kind: workflow.ActionAddTag, Config: map[string]any{"tag": "pro"}, Conditions: cond,
	}, f.run)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != run.OutcomeSuccess {
		t.Errorf("outcome = %q, want success after field change", res.Outcome)
	}
}

func TestExecutor_SkippedIsSuccessful(t *testing.T) {
	f := newFixture(t, nil)
	res, err := newExecutor(f).Execute(context.Background(), 0, workflow.Step{
		Kind:       workflow.ActionSendEmail,
		Config:     map[string]any{"subject": "s"},
		Conditions: []condition.Condition{{Field: "score", Operator: condition.OpGreater, Value: 100}},
	}, f.run)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != run.OutcomeSkipped || !res.Success {
		t.Errorf("result = %+v", res)
	}
	if len(f.outbox.msgs) != 0 {
		t.Error("skipped step sent a message")
	}
	if logs := stepLogs(t, f); len(logs) != 1 || logs[0].Outcome != run.OutcomeSkipped {
		t.Errorf("logs = %+v", logs)
	}
}

func TestExecutor_VariableConditions(t *testing.T) {
	f := newFixture(t, nil)
	f.run.Variables["branch"] = "vip"

	res, err := newExecutor(f).Execute(context.Background(), 0, workflow.Step{
		Kind:   workflow.ActionAddTag,
		Config: map[string]any{"tag": "vip"},
		Conditions: []condition.Condition{
			{Source: condition.SourceVariable, Field: "branch", Operator: condition.OpEquals, Value: "vip"},
		},
	}, f.run)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != run.OutcomeSuccess {
		t.Errorf("outcome = %q", res.Outcome)
	}
}

func TestExecutor_UnknownKindFails(t *testing.T) {
	f := newFixture(t, nil)
	res, err := newExecutor(f).Execute(context.Background(), 0, workflow.Step{Kind: "teleport"}, f.run)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || !strings.Contains(res.Message, "teleport") {
		t.Errorf("result = %+v", res)
	}
	if logs := stepLogs(t, f); len(logs) != 1 || logs[0].Error == "" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestExecutor_PanicFailsStep(t *testing.T) {
	f := newFixture(t, nil)
	f.registry.Register(panicky{})

	res, err := newExecutor(f).Execute(context.Background(), 0, workflow.Step{Kind: "explode"}, f.run)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Outcome != run.OutcomeFailed || !strings.Contains(res.Message, "boom") {
		t.Errorf("result = %+v", res)
	}
}

func TestExecutor_MissingSubjectFails(t *testing.T) {
	f := newFixture(t, nil)
	r := *f.run
	r.SubjectID = f.run.WorkflowID

	res, err := newExecutor(f).Execute(context.Background(), 0, workflow.Step{
		Kind: workflow.ActionAddTag, Config: map[string]any{"tag": "x"},
	}, &r)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Errorf("result = %+v, want failure", res)
	}
}

func TestConditionsMet(t *testing.T) {
	f := newFixture(t, nil)
	exec := newExecutor(f)

	ok, err := exec.ConditionsMet(context.Background(), workflow.Step{
		Conditions: []condition.Condition{{Field: "email", Operator: condition.OpExists}},
	}, f.run)
	if err != nil || !ok {
		t.Errorf("ConditionsMet = %v, %v", ok, err)
	}
	ok, err = exec.ConditionsMet(context.Background(), workflow.Step{
		Conditions: []condition.Condition{{Operator: condition.OpExpr, Expression: `"trial" in subject.tags && subject.score < 50`}},
	}, f.run)
	if err != nil || ok {
		t.Errorf("ConditionsMet = %v, %v", ok, err)
	}
	if logs := stepLogs(t, f); len(logs) != 0 {
		t.Errorf("ConditionsMet wrote %d step logs", len(logs))
	}
}
