package beacon_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/action"
	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/event"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/store/memory"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

func ctx() context.Context { return context.Background() }

type setupResult struct {
	b     *beacon.Beacon
	store *memory.Store
	clock *clockwork.FakeClock
	calls *atomic.Int32
	sent  *atomic.Int32
}

func setup(t *testing.T, status int) setupResult {
	t.Helper()

	res := setupResult{
		store: memory.New(),
		clock: clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		calls: &atomic.Int32{},
		sent:  &atomic.Int32{},
	}
	transport := delivery.TransportFunc(func(context.Context, delivery.Request) (*delivery.Response, error) {
		res.calls.Add(1)
		return &delivery.Response{StatusCode: status}, nil
	})
	notifier := action.NotifierFunc(func(context.Context, action.Message) error {
		res.sent.Add(1)
		return nil
	})

	b, err := beacon.New(
		beacon.WithStore(res.store),
		beacon.WithClock(res.clock),
		beacon.WithTransport(transport),
		beacon.WithNotifier(notifier),
	)
	if err != nil {
		t.Fatal(err)
	}
	res.b = b
	return res
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := beacon.New(); !errors.Is(err, beacon.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := beacon.DefaultConfig()
	if cfg.DefaultMaxAttempts != 3 || cfg.DefaultBackoffBase != time.Minute || cfg.DefaultTimeout != 30*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.SweepInterval <= 0 || cfg.RunConcurrency <= 0 || cfg.Concurrency <= 0 {
		t.Errorf("loop settings not positive: %+v", cfg)
	}
}

func TestOptions_Override(t *testing.T) {
	b, err := beacon.New(
		beacon.WithStore(memory.New()),
		beacon.WithConcurrency(3),
		beacon.WithRunConcurrency(7),
		beacon.WithSweepInterval(time.Second),
		beacon.WithShutdownTimeout(time.Minute),
	)
	if err != nil {
		t.Fatal(err)
	}
	cfg := b.Config()
	if cfg.Concurrency != 3 || cfg.RunConcurrency != 7 || cfg.SweepInterval != time.Second || cfg.ShutdownTimeout != time.Minute {
		t.Errorf("config = %+v", cfg)
	}
}

func TestTriggerEvent_DeliversAndStartsWorkflows(t *testing.T) {
	s := setup(t, http.StatusOK)

	ep, err := s.b.RegisterEndpoint(ctx(), endpoint.Input{
		URL:        "https://hooks.example.com",
		EventTypes: []string{"contact.created"},
	})
	if err != nil {
		t.Fatal(err)
	}

	subj := &subject.Subject{ID: id.NewSubjectID(), Fields: map[string]any{"email": "ada@example.com"}, Score: 80}
	if err := s.b.PutSubject(ctx(), subj); err != nil {
		t.Fatal(err)
	}

	wf, err := s.b.CreateWorkflow(ctx(), workflow.Input{
		Name:    "welcome",
		Trigger: workflow.Trigger{Type: workflow.TriggerEvent, EventType: "contact.created"},
		Steps: []workflow.Step{
			{Kind: workflow.ActionSendEmail, Config: map[string]any{"subject": "Welcome"}},
			{Kind: workflow.ActionAddTag, Config: map[string]any{"tag": "welcomed"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.b.StartWorkflow(ctx(), wf.ID); err != nil {
		t.Fatal(err)
	}

	res, err := s.b.TriggerEvent(ctx(), delivery.TriggerInput{
		Type:       "contact.created",
		Data:       map[string]any{"email": "ada@example.com"},
		SourceType: event.SourceSubject,
		SourceID:   subj.ID.String(),
	})
	if err != nil {
		t.Fatal(err)
	}
	s.b.Orchestrator().Wait()

	if len(res.Deliveries) != 1 || res.Deliveries[0].EndpointID != ep.ID {
		t.Fatalf("deliveries = %+v", res.Deliveries)
	}
	if res.Deliveries[0].State != delivery.StateDelivered {
		t.Errorf("delivery state = %q", res.Deliveries[0].State)
	}
	if len(res.Runs) != 1 || !res.Runs[0].Matched {
		t.Fatalf("runs = %+v", res.Runs)
	}

	r, err := s.store.GetRun(ctx(), res.Runs[0].Run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != run.StatusCompleted {
		t.Errorf("run status = %q (%s)", r.Status, r.Error)
	}
	if s.sent.Load() != 1 {
		t.Errorf("messages sent = %d, want 1", s.sent.Load())
	}
	got, _ := s.store.GetSubject(ctx(), subj.ID)
	if !got.HasTag("welcomed") {
		t.Error("tag not added")
	}
}

func TestTriggerEvent_DuplicateStartsNothing(t *testing.T) {
	s := setup(t, http.StatusOK)
	if _, err := s.b.RegisterEndpoint(ctx(), endpoint.Input{URL: "https://hooks.example.com", EventTypes: []string{"a"}}); err != nil {
		t.Fatal(err)
	}

	in := delivery.TriggerInput{Type: "a", IdempotencyKey: "once"}
	if _, err := s.b.TriggerEvent(ctx(), in); err != nil {
		t.Fatal(err)
	}
	res, err := s.b.TriggerEvent(ctx(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Duplicate || len(res.Runs) != 0 {
		t.Errorf("duplicate result = %+v", res)
	}
	if s.calls.Load() != 1 {
		t.Errorf("transport calls = %d, want 1", s.calls.Load())
	}
}

func TestRetriesAndRedeliver(t *testing.T) {
	s := setup(t, http.StatusInternalServerError)
	if _, err := s.b.RegisterEndpoint(ctx(), endpoint.Input{
		URL:         "https://hooks.example.com",
		EventTypes:  []string{"a"},
		MaxAttempts: 2,
		BackoffBase: 10 * time.Second,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := s.b.TriggerEvent(ctx(), delivery.TriggerInput{Type: "a"})
	if err != nil {
		t.Fatal(err)
	}
	s.clock.Advance(10 * time.Second)
	n, err := s.b.ProcessRetries(ctx())
	if err != nil || n != 1 {
		t.Fatalf("ProcessRetries = %d, %v", n, err)
	}

	d, err := s.store.GetDelivery(ctx(), res.Deliveries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.State != delivery.StateFailed || d.AttemptNumber != 2 {
		t.Fatalf("delivery = %q attempt %d", d.State, d.AttemptNumber)
	}

	again, err := s.b.Redeliver(ctx(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID == d.ID || again.AttemptNumber != 1 {
		t.Errorf("redelivery = %+v", again)
	}
	if s.calls.Load() != 3 {
		t.Errorf("transport calls = %d, want 3", s.calls.Load())
	}
}

func TestEndpointLifecycle(t *testing.T) {
	s := setup(t, http.StatusOK)
	ep, err := s.b.RegisterEndpoint(ctx(), endpoint.Input{URL: "https://hooks.example.com", EventTypes: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.b.DeactivateEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	res, err := s.b.TriggerEvent(ctx(), delivery.TriggerInput{Type: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deliveries) != 0 {
		t.Errorf("inactive endpoint received %d deliveries", len(res.Deliveries))
	}

	if err := s.b.ActivateEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	secret, err := s.b.RotateSecret(ctx(), ep.ID)
	if err != nil || secret == "" {
		t.Fatalf("RotateSecret = %q, %v", secret, err)
	}
	if err := s.b.DeleteEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
}

func TestTriggerWorkflowAndCancel(t *testing.T) {
	s := setup(t, http.StatusOK)
	subj := &subject.Subject{ID: id.NewSubjectID(), Score: 10}
	if err := s.b.PutSubject(ctx(), subj); err != nil {
		t.Fatal(err)
	}

	wf, err := s.b.CreateWorkflow(ctx(), workflow.Input{
		Name:     "nurture",
		Audience: []condition.Condition{{Field: "score", Operator: condition.OpLess, Value: 50}},
		Steps: []workflow.Step{
			{Kind: workflow.ActionWait, Config: map[string]any{"duration": "72h"}},
			{Kind: workflow.ActionAddTag, Config: map[string]any{"tag": "nurtured"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.b.TriggerWorkflow(ctx(), wf.ID, subj.ID, nil); err == nil {
		t.Fatal("draft workflow accepted a trigger")
	}
	if _, err := s.b.StartWorkflow(ctx(), wf.ID); err != nil {
		t.Fatal(err)
	}

	res, err := s.b.TriggerWorkflow(ctx(), wf.ID, subj.ID, map[string]any{"campaign": "spring"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched || res.Run.TriggerSource != run.SourceManual {
		t.Fatalf("result = %+v", res)
	}

	waitCtx, cancel := context.WithTimeout(ctx(), 5*time.Second)
	defer cancel()
	if err := s.clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.b.CancelRun(ctx(), res.Run.ID); err != nil {
		t.Fatal(err)
	}
	s.clock.Advance(72 * time.Hour)
	s.b.Orchestrator().Wait()

	r, _ := s.store.GetRun(ctx(), res.Run.ID)
	if r.Status != run.StatusCancelled {
		t.Errorf("status = %q, want cancelled", r.Status)
	}
	got, _ := s.store.GetSubject(ctx(), subj.ID)
	if got.HasTag("nurtured") {
		t.Error("step after cancellation executed")
	}
}

func TestPutSubject_RequiresID(t *testing.T) {
	s := setup(t, http.StatusOK)
	if err := s.b.PutSubject(ctx(), &subject.Subject{}); err == nil {
		t.Error("expected error for subject without id")
	}
}

func TestStartStop(t *testing.T) {
	s := setup(t, http.StatusOK)
	if err := s.b.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.b.Stop(ctx()); err != nil {
		t.Fatal(err)
	}
}
