package delivery_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/id"
)

func TestSweep_RetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, http.StatusInternalServerError)
	ep := h.endpoint(t, nil) // MaxAttempts 3, BackoffBase 10s

	out, err := h.dispatcher.Trigger(ctx, delivery.TriggerInput{Type: "contact.created"})
	if err != nil {
		t.Fatal(err)
	}
	d := out.Deliveries[0]
	if d.State != delivery.StateRetry {
		t.Fatalf("after attempt 1: state = %q", d.State)
	}

	// Not yet due.
	h.clock.Advance(5 * time.Second)
	if n, err := h.sweeper.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("early sweep = %d, %v", n, err)
	}

	// t0+10s: second attempt, next retry doubles to 20s.
	h.clock.Advance(5 * time.Second)
	if n, err := h.sweeper.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("sweep 2 = %d, %v", n, err)
	}
	got := h.reload(t, d)
	if got.State != delivery.StateRetry || got.AttemptNumber != 2 {
		t.Fatalf("after attempt 2: %q attempt %d", got.State, got.AttemptNumber)
	}
	if want := epoch.Add(30 * time.Second); got.NextRetryAt == nil || !got.NextRetryAt.Equal(want) {
		t.Fatalf("next retry = %v, want %v", got.NextRetryAt, want)
	}

	// t0+30s: third and final attempt.
	h.clock.Advance(20 * time.Second)
	if n, err := h.sweeper.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("sweep 3 = %d, %v", n, err)
	}
	got = h.reload(t, d)
	if got.State != delivery.StateFailed || got.AttemptNumber != 3 {
		t.Fatalf("after attempt 3: %q attempt %d", got.State, got.AttemptNumber)
	}

	// Nothing left to claim.
	h.clock.Advance(time.Hour)
	if n, _ := h.sweeper.Sweep(ctx); n != 0 {
		t.Errorf("sweep after exhaustion = %d", n)
	}

	attempts, err := h.store.ListAttempts(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempts))
	}
	wantAt := []time.Time{epoch, epoch.Add(10 * time.Second), epoch.Add(30 * time.Second)}
	for i, a := range attempts {
		if a.AttemptNumber != i+1 {
			t.Errorf("attempt %d number = %d", i, a.AttemptNumber)
		}
		if !a.AttemptedAt.Equal(wantAt[i]) {
			t.Errorf("attempt %d at %v, want %v", i+1, a.AttemptedAt, wantAt[i])
		}
		if a.ErrorKind != delivery.ErrorKindHTTP {
			t.Errorf("attempt %d kind = %q", i+1, a.ErrorKind)
		}
	}

	stored := h.reloadEndpoint(t, ep)
	if stored.TotalDeliveries != 3 || stored.FailedDeliveries != 3 || stored.SuccessfulDeliveries != 0 {
		t.Errorf("counters = %d/%d/%d", stored.TotalDeliveries, stored.SuccessfulDeliveries, stored.FailedDeliveries)
	}
	if h.transport.calls.Load() != 3 {
		t.Errorf("transport calls = %d, want 3", h.transport.calls.Load())
	}
}

func TestSweep_RecoversOnRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, http.StatusServiceUnavailable)
	h.endpoint(t, nil)

	out, err := h.dispatcher.Trigger(ctx, delivery.TriggerInput{Type: "contact.created"})
	if err != nil {
		t.Fatal(err)
	}

	h.transport.mu.Lock()
	h.transport.status = http.StatusOK
	h.transport.mu.Unlock()

	h.clock.Advance(10 * time.Second)
	if _, err := h.sweeper.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	got := h.reload(t, out.Deliveries[0])
	if got.State != delivery.StateDelivered || got.AttemptNumber != 2 {
		t.Errorf("state = %q attempt %d", got.State, got.AttemptNumber)
	}
}

func TestSweep_DisabledTargetStopsRetries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, http.StatusInternalServerError)
	ep := h.endpoint(t, nil)

	out, err := h.dispatcher.Trigger(ctx, delivery.TriggerInput{Type: "contact.created"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.store.SetActive(ctx, ep.ID, false); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(10 * time.Second)
	if _, err := h.sweeper.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if got := h.reload(t, out.Deliveries[0]); got.State != delivery.StateDisabled {
		t.Errorf("state = %q, want disabled", got.State)
	}
	if h.transport.calls.Load() != 1 {
		t.Errorf("transport calls = %d, want 1", h.transport.calls.Load())
	}
}

func TestSweep_Batches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, http.StatusInternalServerError)
	for range 3 {
		h.endpoint(t, func(ep *endpoint.Endpoint) { ep.MaxAttempts = 2 })
	}
	sweeper := delivery.NewSweeper(h.store, h.executor, h.clock, delivery.SweeperConfig{BatchSize: 2}, nil)

	if _, err := h.dispatcher.Trigger(ctx, delivery.TriggerInput{Type: "contact.created"}); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(10 * time.Second)

	n, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("swept = %d, want 3 across batches", n)
	}
	counts, err := h.store.CountDeliveriesByState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[delivery.StateFailed] != 3 {
		t.Errorf("failed = %d, want 3", counts[delivery.StateFailed])
	}
}

func TestSweeper_Loop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := newHarness(t, http.StatusInternalServerError)
	h.endpoint(t, nil)
	out, err := h.dispatcher.Trigger(ctx, delivery.TriggerInput{Type: "contact.created"})
	if err != nil {
		t.Fatal(err)
	}
	d := out.Deliveries[0]

	h.sweeper.Start(ctx)
	defer h.sweeper.Stop(ctx)

	// Wait for the loop's ticker before moving time.
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(10 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := h.reload(t, d); got.AttemptNumber == 2 && got.State == delivery.StateRetry {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sweeper loop did not retry: %+v", h.reload(t, d))
}

// flakyEndpoints fails GetEndpoint while down is set.
type flakyEndpoints struct {
	endpoint.Store
	down atomic.Bool
}

func (f *flakyEndpoints) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	if f.down.Load() {
		return nil, errors.New("database unavailable")
	}
	return f.Store.GetEndpoint(ctx, epID)
}

func TestSweep_EndpointLookupFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, http.StatusInternalServerError)
	h.endpoint(t, nil)

	out, err := h.dispatcher.Trigger(ctx, delivery.TriggerInput{Type: "contact.created"})
	if err != nil {
		t.Fatal(err)
	}
	d := out.Deliveries[0]

	flaky := &flakyEndpoints{Store: h.store}
	flaky.down.Store(true)
	exec := delivery.NewExecutor(h.store, flaky, h.transport, h.clock, delivery.ExecutorConfig{}, nil)
	sweeper := delivery.NewSweeper(h.store, exec, h.clock, delivery.SweeperConfig{
		Interval:    10 * time.Second,
		BatchSize:   10,
		Concurrency: 4,
	}, nil)

	h.clock.Advance(10 * time.Second)
	if n, err := sweeper.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	got := h.reload(t, d)
	if got.State != delivery.StateRetry || got.AttemptNumber != 1 {
		t.Fatalf("after failed lookup: %q attempt %d, want retry at 1", got.State, got.AttemptNumber)
	}
	if got.NextRetryAt == nil || !got.NextRetryAt.After(h.clock.Now()) {
		t.Fatalf("next retry = %v, want after %v", got.NextRetryAt, h.clock.Now())
	}
	if h.transport.calls.Load() != 1 {
		t.Fatalf("transport calls = %d, want 1", h.transport.calls.Load())
	}

	flaky.down.Store(false)
	h.transport.mu.Lock()
	h.transport.status = http.StatusOK
	h.transport.mu.Unlock()

	h.clock.Advance(time.Hour)
	if n, err := sweeper.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("sweep after recovery = %d, %v", n, err)
	}
	got = h.reload(t, d)
	if got.State != delivery.StateDelivered || got.AttemptNumber != 2 {
		t.Errorf("after recovery: %q attempt %d, want delivered at 2", got.State, got.AttemptNumber)
	}
}
