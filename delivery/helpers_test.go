package delivery_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/ratelimit"
	"github.com/xraph/beacon/store/memory"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recorder is a Transport that answers with a fixed status and keeps every
// request it saw.
type recorder struct {
	mu       sync.Mutex
	status   int
	body     string
	err      error
	requests []delivery.Request
	calls    atomic.Int32
}

func (r *recorder) Do(_ context.Context, req delivery.Request) (*delivery.Response, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.requests = append(r.requests, req)
	status, body, err := r.status, r.body, r.err
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &delivery.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte(body),
		Latency:    5 * time.Millisecond,
	}, nil
}

func (r *recorder) last() delivery.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

type harness struct {
	store      *memory.Store
	clock      *clockwork.FakeClock
	transport  *recorder
	executor   *delivery.Executor
	dispatcher *delivery.Dispatcher
	sweeper    *delivery.Sweeper
}

func newHarness(t *testing.T, status int) *harness {
	t.Helper()

	h := &harness{
		store:     memory.New(),
		clock:     clockwork.NewFakeClockAt(epoch),
		transport: &recorder{status: status},
	}
	h.executor = delivery.NewExecutor(h.store, h.store, h.transport, h.clock, delivery.ExecutorConfig{}, nil)
	h.dispatcher = delivery.NewDispatcher(h.store, h.executor, ratelimit.NewMemory(h.clock), h.clock, delivery.DispatcherConfig{}, nil)
	h.sweeper = delivery.NewSweeper(h.store, h.executor, h.clock, delivery.SweeperConfig{
		Interval:    10 * time.Second,
		BatchSize:   10,
		Concurrency: 4,
	}, nil)
	return h
}

func (h *harness) endpoint(t *testing.T, mutate func(ep *endpoint.Endpoint)) *endpoint.Endpoint {
	t.Helper()

	ep := &endpoint.Endpoint{
		Entity:      entity.At(h.clock.Now()),
		ID:          id.NewEndpointID(),
		URL:         "https://hooks.example.com/beacon",
		Method:      http.MethodPost,
		Secret:      "whsec_test",
		EventTypes:  []string{"contact.created"},
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BackoffBase: 10 * time.Second,
		Active:      true,
	}
	if mutate != nil {
		mutate(ep)
	}
	if err := h.store.CreateEndpoint(context.Background(), ep); err != nil {
		t.Fatal(err)
	}
	return ep
}

func (h *harness) delivery(t *testing.T, ep *endpoint.Endpoint) *delivery.Delivery {
	t.Helper()

	d := &delivery.Delivery{
		Entity:        entity.At(h.clock.Now()),
		ID:            id.NewDeliveryID(),
		EventID:       id.NewEventID(),
		EventType:     "contact.created",
		EndpointID:    ep.ID,
		State:         delivery.StatePending,
		RequestBody:   []byte(`{"hello":"world"}`),
		AttemptNumber: 1,
		MaxAttempts:   ep.MaxAttempts,
	}
	if err := h.store.CreateDelivery(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	return d
}

func (h *harness) reload(t *testing.T, d *delivery.Delivery) *delivery.Delivery {
	t.Helper()
	got, err := h.store.GetDelivery(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func (h *harness) reloadEndpoint(t *testing.T, ep *endpoint.Endpoint) *endpoint.Endpoint {
	t.Helper()
	got, err := h.store.GetEndpoint(context.Background(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}
