package action_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/action"
	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/store/memory"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// outbox is a Notifier that keeps every message.
type outbox struct {
	mu   sync.Mutex
	msgs []action.Message
	err  error
}

func (o *outbox) Notify(_ context.Context, msg action.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

type fixture struct {
	store    *memory.Store
	clock    *clockwork.FakeClock
	outbox   *outbox
	registry *action.Registry
	subject  *subject.Subject
	run      *run.Run
}

func newFixture(t *testing.T, transport delivery.Transport) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.New(),
		clock:  clockwork.NewFakeClockAt(epoch),
		outbox: &outbox{},
	}
	f.subject = &subject.Subject{
		Entity: entity.At(epoch),
		ID:     id.NewSubjectID(),
		Fields: map[string]any{
			"first_name": "Ada",
			"email":      "ada@example.com",
			"phone":      "+15550100",
			"stage":      "lead",
		},
		Tags:     []string{"trial"},
		Score:    60,
		Segments: []string{"newsletter"},
	}
	if err := f.store.PutSubject(context.Background(), f.subject); err != nil {
		t.Fatal(err)
	}
	f.run = &run.Run{
		Entity:     entity.At(epoch),
		ID:         id.NewRunID(),
		WorkflowID: id.NewWorkflowID(),
		SubjectID:  f.subject.ID,
		Status:     run.StatusStarted,
		Variables:  map[string]any{"campaign": "spring"},
		StartedAt:  epoch,
	}
	f.registry = action.DefaultRegistry(action.Deps{
		Subjects:  f.store,
		Notifier:  f.outbox,
		Transport: transport,
		Clock:     f.clock,
	})
	return f
}

func (f *fixture) exec(t *testing.T, kind workflow.ActionKind, config map[string]any) action.Result {
	t.Helper()

	act, ok := f.registry.Lookup(kind)
	if !ok {
		t.Fatalf("no action for %s", kind)
	}
	subj, err := f.store.GetSubject(context.Background(), f.subject.ID)
	if err != nil {
		t.Fatal(err)
	}
	res, err := act.Execute(context.Background(), &action.Request{
		Index:   0,
		Step:    workflow.Step{Kind: kind, Config: config},
		Run:     f.run,
		Subject: subj,
		Env:     envOf(subj, f.run),
	})
	if err != nil {
		t.Fatalf("%s: %v", kind, err)
	}
	return res
}

func envOf(subj *subject.Subject, r *run.Run) condition.Env {
	return condition.Env{Subject: subj.Snapshot(), Variables: r.Variables}
}

func (f *fixture) reload(t *testing.T) *subject.Subject {
	t.Helper()
	subj, err := f.store.GetSubject(context.Background(), f.subject.ID)
	if err != nil {
		t.Fatal(err)
	}
	return subj
}

func TestDefaultRegistry_CoversEveryKind(t *testing.T) {
	f := newFixture(t, nil)
	for _, k := range workflow.ActionKinds {
		act, ok := f.registry.Lookup(k)
		if !ok {
			t.Errorf("no action for %s", k)
			continue
		}
		if act.Kind() != k {
			t.Errorf("action for %s reports kind %s", k, act.Kind())
		}
	}
}

func TestSend_Email(t *testing.T) {
	f := newFixture(t, nil)
	res := f.exec(t, workflow.ActionSendEmail, map[string]any{
		"subject": "Welcome {{first_name}}",
		"body":    "Your {{vars.campaign}} offer",
	})

	if !res.Success || res.Outcome != run.OutcomeSuccess {
		t.Fatalf("result = %+v", res)
	}
	if len(f.outbox.msgs) != 1 {
		t.Fatalf("messages = %d", len(f.outbox.msgs))
	}
	msg := f.outbox.msgs[0]
	if msg.Channel != action.ChannelEmail || msg.To != "ada@example.com" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Title != "Welcome Ada" || msg.Body != "Your spring offer" {
		t.Errorf("rendered = %q / %q", msg.Title, msg.Body)
	}
	if msg.RunID != f.run.ID || msg.SubjectID != f.subject.ID {
		t.Error("message not linked to run and subject")
	}
	if res.Output["to"] != "ada@example.com" {
		t.Errorf("output = %v", res.Output)
	}
}

func TestSend_Recipients(t *testing.T) {
	f := newFixture(t, nil)

	f.exec(t, workflow.ActionSendSMS, map[string]any{"message": "hi"})
	f.exec(t, workflow.ActionSendPush, map[string]any{"title": "t"})
	f.exec(t, workflow.ActionSendEmail, map[string]any{"subject": "s", "to": "ops+{{first_name}}@example.com"})

	want := []string{"+15550100", f.subject.ID.String(), "ops+Ada@example.com"}
	for i, msg := range f.outbox.msgs {
		if msg.To != want[i] {
			t.Errorf("message %d to = %q, want %q", i, msg.To, want[i])
		}
	}
}

func TestSend_MissingRecipientFails(t *testing.T) {
	f := newFixture(t, nil)
	f.subject.Fields = map[string]any{}
	if err := f.store.PutSubject(context.Background(), f.subject); err != nil {
		t.Fatal(err)
	}

	res := f.exec(t, workflow.ActionSendEmail, map[string]any{"subject": "s"})
	if res.Success || res.Outcome != run.OutcomeFailed {
		t.Errorf("result = %+v, want failure", res)
	}
	if len(f.outbox.msgs) != 0 {
		t.Error("message sent without recipient")
	}
}

func TestSend_NotifierErrorFails(t *testing.T) {
	f := newFixture(t, nil)
	f.outbox.err = errors.New("provider down")

	res := f.exec(t, workflow.ActionSendSMS, map[string]any{"message": "hi"})
	if res.Success {
		t.Errorf("result = %+v, want failure", res)
	}
}

func TestSubjectMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res := f.exec(t, workflow.ActionUpdateField, map[string]any{"field": "stage", "value": "customer-{{vars.campaign}}"})
	if res.Output["previous"] != "lead" || res.Output["value"] != "customer-spring" {
		t.Errorf("update_field output = %v", res.Output)
	}

	f.exec(t, workflow.ActionAddTag, map[string]any{"tag": "engaged"})
	f.exec(t, workflow.ActionAddTag, map[string]any{"tag": "engaged"})

	res = f.exec(t, workflow.ActionAddToSegment, map[string]any{"segment": "vip"})
	if res.Output["changed"] != true {
		t.Errorf("add_to_segment output = %v", res.Output)
	}
	res = f.exec(t, workflow.ActionRemoveFromSegment, map[string]any{"segment": "newsletter"})
	if res.Output["changed"] != true {
		t.Errorf("remove_from_segment output = %v", res.Output)
	}
	res = f.exec(t, workflow.ActionRemoveFromSegment, map[string]any{"segment": "absent"})
	if res.Output["changed"] != false {
		t.Errorf("remove absent output = %v", res.Output)
	}

	res = f.exec(t, workflow.ActionUpdateScore, map[string]any{"delta": -15})
	if res.Output["previous"] != 60.0 || res.Output["score"] != 45.0 {
		t.Errorf("update_score output = %v", res.Output)
	}

	subj := f.reload(t)
	if subj.Fields["stage"] != "customer-spring" {
		t.Errorf("stage = %v", subj.Fields["stage"])
	}
	if len(subj.Tags) != 2 || !subj.HasTag("engaged") {
		t.Errorf("tags = %v", subj.Tags)
	}
	if !subj.InSegment("vip") || subj.InSegment("newsletter") {
		t.Errorf("segments = %v", subj.Segments)
	}
	if subj.Score != 45 {
		t.Errorf("score = %v", subj.Score)
	}

	res = f.exec(t, workflow.ActionCreateTask, map[string]any{
		"title":    "Call {{first_name}}",
		"assignee": "sales",
		"due_in":   "48h",
	})
	if !res.Success {
		t.Fatalf("create_task = %+v", res)
	}
	tasks, err := f.store.ListTasks(ctx, f.subject.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d", len(tasks))
	}
	task := tasks[0]
	if task.Title != "Call Ada" || task.RunID != f.run.ID || task.Assignee != "sales" {
		t.Errorf("task = %+v", task)
	}
	if task.DueAt == nil || !task.DueAt.Equal(epoch.Add(48*time.Hour)) {
		t.Errorf("due = %v", task.DueAt)
	}
	if res.Output["task_id"] != task.ID.String() {
		t.Errorf("output task_id = %v", res.Output["task_id"])
	}
}

func TestWait(t *testing.T) {
	f := newFixture(t, nil)
	act, _ := f.registry.Lookup(workflow.ActionWait)
	req := &action.Request{
		Step:    workflow.Step{Kind: workflow.ActionWait, Config: map[string]any{"duration": "2h"}},
		Run:     f.run,
		Subject: f.subject,
	}

	done := make(chan action.Result, 1)
	go func() {
		res, err := act.Execute(context.Background(), req)
		if err != nil {
			t.Error(err)
		}
		done <- res
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Hour)
	select {
	case <-done:
		t.Fatal("wait returned early")
	case <-time.After(20 * time.Millisecond):
	}

	f.clock.Advance(time.Hour)
	select {
	case res := <-done:
		if !res.Success {
			t.Errorf("result = %+v", res)
		}
	case <-ctx.Done():
		t.Fatal("wait did not return")
	}
}

func TestWait_Cancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := action.Sleep(ctx, f.clock, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBranch(t *testing.T) {
	f := newFixture(t, nil)
	config := func(def string) map[string]any {
		return map[string]any{
			"branches": []any{
				map[string]any{"name": "enterprise", "conditions": []any{
					map[string]any{"field": "score", "operator": "gt", "value": 90},
				}},
				map[string]any{"name": "vip", "conditions": []any{
					map[string]any{"field": "score", "operator": "gt", "value": 50},
				}},
				map[string]any{"name": "warm", "conditions": []any{
					map[string]any{"field": "score", "operator": "gt", "value": 10},
				}},
			},
			"default": def,
		}
	}

	res := f.exec(t, workflow.ActionBranch, config("standard"))
	if res.BranchPath != "vip" || res.Output["index"] != 1 {
		t.Errorf("first match: path = %q output = %v", res.BranchPath, res.Output)
	}

	f.subject.Score = 5
	if err := f.store.PutSubject(context.Background(), f.subject); err != nil {
		t.Fatal(err)
	}
	res = f.exec(t, workflow.ActionBranch, config("standard"))
	if res.BranchPath != "standard" || res.Output["default"] != true {
		t.Errorf("default: path = %q output = %v", res.BranchPath, res.Output)
	}

	res = f.exec(t, workflow.ActionBranch, config(""))
	if res.BranchPath != "" || !res.Success {
		t.Errorf("no default: %+v", res)
	}
}

func TestWebhook(t *testing.T) {
	var (
		mu  sync.Mutex
		got delivery.Request
	)
	transport := delivery.TransportFunc(func(_ context.Context, req delivery.Request) (*delivery.Response, error) {
		mu.Lock()
		got = req
		mu.Unlock()
		return &delivery.Response{StatusCode: http.StatusOK, Body: []byte(`{"accepted":true}`), Latency: 12 * time.Millisecond}, nil
	})
	f := newFixture(t, transport)

	res := f.exec(t, workflow.ActionWebhook, map[string]any{
		"url":     "https://crm.example.com/hooks/{{id}}",
		"method":  "PUT",
		"secret":  "s3cret",
		"timeout": "5s",
		"headers": map[string]any{"X-Campaign": "{{vars.campaign}}"},
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Method != http.MethodPut || got.URL != "https://crm.example.com/hooks/"+f.subject.ID.String() {
		t.Errorf("request = %s %s", got.Method, got.URL)
	}
	if got.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", got.Timeout)
	}
	if got.Header.Get("X-Campaign") != "spring" {
		t.Errorf("custom header = %q", got.Header.Get("X-Campaign"))
	}
	if !signature.Verify("s3cret", got.Body, got.Header.Get(delivery.HeaderSignature)) {
		t.Error("signature does not verify")
	}

	var body map[string]any
	if err := json.Unmarshal(got.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body["run_id"] != f.run.ID.String() {
		t.Errorf("default body = %v", body)
	}

	if res.Output["status_code"] != http.StatusOK {
		t.Errorf("output = %v", res.Output)
	}
	if resp, _ := res.Output["response"].(map[string]any); resp["accepted"] != true {
		t.Errorf("response output = %v", res.Output["response"])
	}
}

func TestWebhook_Failures(t *testing.T) {
	tests := []struct {
		name string
		fn   delivery.TransportFunc
		want string
	}{
		{"http", func(context.Context, delivery.Request) (*delivery.Response, error) {
			return &delivery.Response{StatusCode: 422, Body: []byte("invalid")}, nil
		}, "HTTP 422: invalid"},
		{"timeout", func(context.Context, delivery.Request) (*delivery.Response, error) {
			return nil, context.DeadlineExceeded
		}, "timeout: context deadline exceeded"},
		{"transport", func(context.Context, delivery.Request) (*delivery.Response, error) {
			return nil, errors.New("connection refused")
		}, "transport: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.fn)
			res := f.exec(t, workflow.ActionWebhook, map[string]any{"url": "https://example.com"})
			if res.Success || res.Message != tt.want {
				t.Errorf("result = %+v, want failure %q", res, tt.want)
			}
		})
	}
}
