package delivery_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/signature"
)

func TestExecute_Success(t *testing.T) {
	h := newHarness(t, http.StatusOK)
	ep := h.endpoint(t, func(ep *endpoint.Endpoint) {
		ep.Headers = map[string]string{"X-Custom": "yes"}
	})
	d := h.delivery(t, ep)

	if err := h.executor.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := h.reload(t, d)
	if got.State != delivery.StateDelivered {
		t.Fatalf("state = %q, want delivered", got.State)
	}
	if got.DeliveredAt == nil {
		t.Error("DeliveredAt not set")
	}
	if got.ResponseStatus != http.StatusOK {
		t.Errorf("response status = %d", got.ResponseStatus)
	}
	if got.Error != "" || got.ErrorKind != delivery.ErrorKindNone {
		t.Errorf("error = %q (%q), want none", got.Error, got.ErrorKind)
	}
	if got.NextRetryAt != nil {
		t.Error("NextRetryAt set on a delivered delivery")
	}

	req := h.transport.last()
	if req.URL != ep.URL || req.Method != http.MethodPost {
		t.Errorf("request = %s %s", req.Method, req.URL)
	}
	if req.Timeout != ep.Timeout {
		t.Errorf("timeout = %v, want %v", req.Timeout, ep.Timeout)
	}
	if !signature.Verify(ep.Secret, req.Body, req.Header.Get(delivery.HeaderSignature)) {
		t.Errorf("signature %q does not verify", req.Header.Get(delivery.HeaderSignature))
	}
	if ts := req.Header.Get(delivery.HeaderTimestamp); ts != strconv.FormatInt(epoch.Unix(), 10) {
		t.Errorf("timestamp header = %q", ts)
	}
	if req.Header.Get(delivery.HeaderDeliveryID) != d.ID.String() {
		t.Error("delivery id header missing")
	}
	if req.Header.Get(delivery.HeaderAttempt) != "1" {
		t.Errorf("attempt header = %q", req.Header.Get(delivery.HeaderAttempt))
	}
	if req.Header.Get("X-Custom") != "yes" {
		t.Error("custom header missing")
	}
	if req.Header.Get("User-Agent") != delivery.DefaultUserAgent {
		t.Errorf("user agent = %q", req.Header.Get("User-Agent"))
	}

	stored := h.reloadEndpoint(t, ep)
	if stored.TotalDeliveries != 1 || stored.SuccessfulDeliveries != 1 || stored.FailedDeliveries != 0 {
		t.Errorf("counters = %d/%d/%d", stored.TotalDeliveries, stored.SuccessfulDeliveries, stored.FailedDeliveries)
	}
	if stored.LastSuccessAt == nil {
		t.Error("LastSuccessAt not set")
	}

	attempts, err := h.store.ListAttempts(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 || !attempts[0].Succeeded() {
		t.Fatalf("attempts = %+v", attempts)
	}
}

func TestExecute_UnsignedWithoutSecret(t *testing.T) {
	h := newHarness(t, http.StatusNoContent)
	ep := h.endpoint(t, func(ep *endpoint.Endpoint) { ep.Secret = "" })
	d := h.delivery(t, ep)

	if err := h.executor.Execute(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if sig := h.transport.last().Header.Get(delivery.HeaderSignature); sig != "" {
		t.Errorf("signature header = %q, want none", sig)
	}
	if d.State != delivery.StateDelivered {
		t.Errorf("state = %q", d.State)
	}
}

func TestExecute_HTTPErrorSchedulesRetry(t *testing.T) {
	h := newHarness(t, http.StatusInternalServerError)
	h.transport.body = "boom"
	ep := h.endpoint(t, nil)
	d := h.delivery(t, ep)

	if err := h.executor.Execute(context.Background(), d); err != nil {
		t.Fatal(err)
	}

	got := h.reload(t, d)
	if got.State != delivery.StateRetry {
		t.Fatalf("state = %q, want retry", got.State)
	}
	if got.ErrorKind != delivery.ErrorKindHTTP {
		t.Errorf("error kind = %q", got.ErrorKind)
	}
	if got.Error != "HTTP 500: boom" {
		t.Errorf("error = %q", got.Error)
	}
	if got.ResponseBody != "boom" {
		t.Errorf("response body = %q", got.ResponseBody)
	}
	if got.NextRetryAt == nil || !got.NextRetryAt.Equal(epoch.Add(10*time.Second)) {
		t.Errorf("next retry = %v, want %v", got.NextRetryAt, epoch.Add(10*time.Second))
	}

	stored := h.reloadEndpoint(t, ep)
	if stored.TotalDeliveries != 1 || stored.FailedDeliveries != 1 {
		t.Errorf("counters = %d/%d/%d", stored.TotalDeliveries, stored.SuccessfulDeliveries, stored.FailedDeliveries)
	}
}

func TestExecute_LastAttemptFails(t *testing.T) {
	h := newHarness(t, http.StatusBadGateway)
	ep := h.endpoint(t, func(ep *endpoint.Endpoint) { ep.MaxAttempts = 1 })
	d := h.delivery(t, ep)

	if err := h.executor.Execute(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	got := h.reload(t, d)
	if got.State != delivery.StateFailed {
		t.Fatalf("state = %q, want failed", got.State)
	}
	if got.NextRetryAt != nil {
		t.Error("NextRetryAt set on a failed delivery")
	}
}

func TestExecute_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want delivery.ErrorKind
	}{
		{"deadline", context.DeadlineExceeded, delivery.ErrorKindTimeout},
		{"wrapped deadline", errors.Join(errors.New("dial"), context.DeadlineExceeded), delivery.ErrorKindTimeout},
		{"connection refused", errors.New("connection refused"), delivery.ErrorKindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			h.transport.err = tt.err
			d := h.delivery(t, h.endpoint(t, nil))

			if err := h.executor.Execute(context.Background(), d); err != nil {
				t.Fatal(err)
			}
			if d.ErrorKind != tt.want {
				t.Errorf("kind = %q, want %q", d.ErrorKind, tt.want)
			}
			if d.State != delivery.StateRetry {
				t.Errorf("state = %q, want retry", d.State)
			}
			if d.ResponseStatus != 0 {
				t.Errorf("response status = %d, want 0", d.ResponseStatus)
			}
		})
	}
}

func TestExecute_TransportPanic(t *testing.T) {
	h := newHarness(t, 0)
	ep := h.endpoint(t, nil)
	d := h.delivery(t, ep)

	exec := delivery.NewExecutor(h.store, h.store, delivery.TransportFunc(
		func(context.Context, delivery.Request) (*delivery.Response, error) {
			panic("kaboom")
		}), h.clock, delivery.ExecutorConfig{}, nil)

	if err := exec.Execute(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if d.ErrorKind != delivery.ErrorKindTransport {
		t.Errorf("kind = %q, want transport", d.ErrorKind)
	}
	if d.State != delivery.StateRetry {
		t.Errorf("state = %q, want retry", d.State)
	}
}

func TestExecute_InactiveEndpointDisables(t *testing.T) {
	h := newHarness(t, http.StatusOK)
	ep := h.endpoint(t, func(ep *endpoint.Endpoint) { ep.Active = false })
	d := h.delivery(t, ep)

	if err := h.executor.Execute(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if got := h.reload(t, d); got.State != delivery.StateDisabled {
		t.Fatalf("state = %q, want disabled", got.State)
	}
	if h.transport.calls.Load() != 0 {
		t.Error("transport called for an inactive endpoint")
	}
	if stored := h.reloadEndpoint(t, ep); stored.TotalDeliveries != 0 {
		t.Errorf("total = %d, want 0", stored.TotalDeliveries)
	}
}

func TestExecute_MissingEndpointDisables(t *testing.T) {
	h := newHarness(t, http.StatusOK)
	ep := h.endpoint(t, nil)
	d := h.delivery(t, ep)
	d.EndpointID = id.NewEndpointID()

	if err := h.executor.Execute(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if d.State != delivery.StateDisabled {
		t.Fatalf("state = %q, want disabled", d.State)
	}
	if h.transport.calls.Load() != 0 {
		t.Error("transport called for a missing endpoint")
	}
}

func TestExecute_RefusesOvershoot(t *testing.T) {
	h := newHarness(t, http.StatusOK)
	d := h.delivery(t, h.endpoint(t, nil))
	d.AttemptNumber = 4

	if err := h.executor.Execute(context.Background(), d); err == nil {
		t.Fatal("expected error for attempt beyond max")
	}
	if h.transport.calls.Load() != 0 {
		t.Error("transport called beyond max attempts")
	}
}
