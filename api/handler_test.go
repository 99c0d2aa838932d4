package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/api"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/store/memory"
)

// testServer creates a Handler over a memory-backed Beacon. Targets whose
// URL contains "fail" answer 500, everything else 200.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	transport := delivery.TransportFunc(func(_ context.Context, req delivery.Request) (*delivery.Response, error) {
		if strings.Contains(req.URL, "fail") {
			return &delivery.Response{StatusCode: http.StatusInternalServerError, Body: []byte("boom")}, nil
		}
		return &delivery.Response{StatusCode: http.StatusOK}, nil
	})
	b, err := beacon.New(
		beacon.WithStore(memory.New()),
		beacon.WithTransport(transport),
	)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(api.NewHandler(b, slog.Default()))
	t.Cleanup(func() {
		b.Orchestrator().Wait()
	})
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int, what string) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s: expected %d, got %d: %s", what, want, resp.StatusCode, body)
	}
}

func createEndpoint(t *testing.T, srv *httptest.Server, body map[string]any) string {
	t.Helper()
	resp := doJSON(t, "POST", srv.URL+"/endpoints", body)
	expectStatus(t, resp, http.StatusCreated, "create endpoint")
	var ep map[string]any
	decodeBody(t, resp, &ep)
	epID, _ := ep["id"].(string)
	if epID == "" {
		t.Fatal("expected non-empty endpoint ID")
	}
	return epID
}

// --- Endpoints ---

func TestEndpoints_CRUD(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	epID := createEndpoint(t, srv, map[string]any{
		"url":         "https://example.com/webhook",
		"event_types": []string{"contact.created"},
		"timeout":     "5s",
	})

	resp := doJSON(t, "GET", srv.URL+"/endpoints/"+epID, nil)
	expectStatus(t, resp, http.StatusOK, "get")
	var ep map[string]any
	decodeBody(t, resp, &ep)
	if ep["active"] != true {
		t.Errorf("expected active endpoint, got %v", ep["active"])
	}

	resp = doJSON(t, "GET", srv.URL+"/endpoints?active=true", nil)
	expectStatus(t, resp, http.StatusOK, "list")
	var eps []map[string]any
	decodeBody(t, resp, &eps)
	if len(eps) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(eps))
	}

	resp = doJSON(t, "PUT", srv.URL+"/endpoints/"+epID, map[string]any{
		"url": "https://example.com/updated",
	})
	expectStatus(t, resp, http.StatusOK, "update")
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["url"] != "https://example.com/updated" {
		t.Fatalf("expected updated URL, got %v", updated["url"])
	}

	resp = doJSON(t, "PATCH", srv.URL+"/endpoints/"+epID+"/disable", nil)
	expectStatus(t, resp, http.StatusNoContent, "disable")
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/endpoints?active=true", nil)
	decodeBody(t, resp, &eps)
	if len(eps) != 0 {
		t.Fatalf("expected no active endpoints, got %d", len(eps))
	}

	resp = doJSON(t, "PATCH", srv.URL+"/endpoints/"+epID+"/enable", nil)
	expectStatus(t, resp, http.StatusNoContent, "enable")
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/rotate-secret", nil)
	expectStatus(t, resp, http.StatusOK, "rotate")
	var secretResp map[string]string
	decodeBody(t, resp, &secretResp)
	if !strings.HasPrefix(secretResp["secret"], "whsec_") {
		t.Fatalf("unexpected secret %q", secretResp["secret"])
	}

	resp = doJSON(t, "DELETE", srv.URL+"/endpoints/"+epID, nil)
	expectStatus(t, resp, http.StatusNoContent, "delete")
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID, nil)
	expectStatus(t, resp, http.StatusNotFound, "get deleted")
	resp.Body.Close()
}

func TestEndpoints_Validation(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing url", map[string]any{"event_types": []string{"a"}}},
		{"bad scheme", map[string]any{"url": "ftp://example.com", "event_types": []string{"a"}}},
		{"bad duration", map[string]any{"url": "https://example.com", "timeout": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, "POST", srv.URL+"/endpoints", tt.body)
			expectStatus(t, resp, http.StatusBadRequest, "create")
			resp.Body.Close()
		})
	}
}

func TestEndpoints_InvalidID(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "GET", srv.URL+"/endpoints/not-an-id", nil)
	expectStatus(t, resp, http.StatusBadRequest, "get")
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+id.NewEndpointID().String(), nil)
	expectStatus(t, resp, http.StatusNotFound, "get unknown")
	resp.Body.Close()
}

// --- Events and deliveries ---

func TestEvents_TriggerAndInspect(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	epID := createEndpoint(t, srv, map[string]any{
		"url":         "https://example.com/webhook",
		"event_types": []string{"contact.created"},
	})

	resp := doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type":            "contact.created",
		"data":            map[string]any{"email": "ada@example.com"},
		"idempotency_key": "evt-1",
	})
	expectStatus(t, resp, http.StatusCreated, "trigger")
	var res struct {
		Event      map[string]any   `json:"event"`
		Deliveries []map[string]any `json:"deliveries"`
	}
	decodeBody(t, resp, &res)
	if len(res.Deliveries) != 1 || res.Deliveries[0]["state"] != "delivered" {
		t.Fatalf("unexpected deliveries %v", res.Deliveries)
	}
	evtID, _ := res.Event["id"].(string)

	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type":            "contact.created",
		"idempotency_key": "evt-1",
	})
	expectStatus(t, resp, http.StatusOK, "duplicate trigger")
	var dup map[string]any
	decodeBody(t, resp, &dup)
	if dup["duplicate"] != true {
		t.Fatalf("expected duplicate flag, got %v", dup)
	}

	resp = doJSON(t, "GET", srv.URL+"/events/"+evtID, nil)
	expectStatus(t, resp, http.StatusOK, "get event")
	var evt map[string]any
	decodeBody(t, resp, &evt)
	if evt["processed"] != true || evt["success_count"] != float64(1) {
		t.Fatalf("unexpected event %v", evt)
	}

	resp = doJSON(t, "GET", srv.URL+"/events?type=contact.created", nil)
	expectStatus(t, resp, http.StatusOK, "list events")
	var events []map[string]any
	decodeBody(t, resp, &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID+"/deliveries", nil)
	expectStatus(t, resp, http.StatusOK, "list endpoint deliveries")
	var ds []map[string]any
	decodeBody(t, resp, &ds)
	if len(ds) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(ds))
	}
	delID, _ := ds[0]["id"].(string)

	resp = doJSON(t, "GET", srv.URL+"/deliveries/"+delID+"/attempts", nil)
	expectStatus(t, resp, http.StatusOK, "list attempts")
	var attempts []map[string]any
	decodeBody(t, resp, &attempts)
	if len(attempts) != 1 || attempts[0]["status_code"] != float64(200) {
		t.Fatalf("unexpected attempts %v", attempts)
	}

	resp = doJSON(t, "GET", srv.URL+"/stats", nil)
	expectStatus(t, resp, http.StatusOK, "stats")
	var stats api.StatsResponse
	decodeBody(t, resp, &stats)
	if stats.Deliveries["delivered"] != 1 {
		t.Fatalf("unexpected stats %v", stats.Deliveries)
	}
}

func TestEvents_RequiresType(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "POST", srv.URL+"/events", map[string]any{"data": map[string]any{}})
	expectStatus(t, resp, http.StatusBadRequest, "trigger")
	resp.Body.Close()
}

func TestDeliveries_Redeliver(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	createEndpoint(t, srv, map[string]any{
		"url":          "https://example.com/fail",
		"event_types":  []string{"a"},
		"max_attempts": 1,
	})

	resp := doJSON(t, "POST", srv.URL+"/events", map[string]any{"type": "a"})
	expectStatus(t, resp, http.StatusCreated, "trigger")
	var res struct {
		Deliveries []map[string]any `json:"deliveries"`
	}
	decodeBody(t, resp, &res)
	if len(res.Deliveries) != 1 || res.Deliveries[0]["state"] != "failed" {
		t.Fatalf("unexpected deliveries %v", res.Deliveries)
	}
	delID, _ := res.Deliveries[0]["id"].(string)

	resp = doJSON(t, "POST", srv.URL+"/deliveries/"+delID+"/redeliver", nil)
	expectStatus(t, resp, http.StatusCreated, "redeliver")
	var again map[string]any
	decodeBody(t, resp, &again)
	if again["id"] == delID {
		t.Fatal("redelivery reused the failed delivery")
	}

	againID, _ := again["id"].(string)
	resp = doJSON(t, "POST", srv.URL+"/deliveries/"+againID+"/redeliver", nil)
	if again["state"] == "failed" {
		expectStatus(t, resp, http.StatusCreated, "redeliver twice")
	} else {
		expectStatus(t, resp, http.StatusConflict, "redeliver open delivery")
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/deliveries?state=failed", nil)
	expectStatus(t, resp, http.StatusOK, "list failed")
	var failed []map[string]any
	decodeBody(t, resp, &failed)
	if len(failed) == 0 {
		t.Fatal("expected failed deliveries")
	}

	resp = doJSON(t, "POST", srv.URL+"/retries/process", nil)
	expectStatus(t, resp, http.StatusOK, "process retries")
	resp.Body.Close()
}

// --- Workflows, runs and subjects ---

func TestWorkflows_LifecycleAndRuns(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	subjID := id.NewSubjectID().String()
	resp := doJSON(t, "PUT", srv.URL+"/subjects/"+subjID, map[string]any{
		"fields": map[string]any{"email": "ada@example.com"},
		"score":  75,
	})
	expectStatus(t, resp, http.StatusOK, "put subject")
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/workflows", map[string]any{
		"name":    "welcome",
		"trigger": map[string]any{"type": "manual"},
		"steps": []map[string]any{
			{"kind": "add_tag", "config": map[string]any{"tag": "welcomed"}},
			{"kind": "create_task", "config": map[string]any{"title": "Call {{email}}"}},
		},
	})
	expectStatus(t, resp, http.StatusCreated, "create workflow")
	var wf map[string]any
	decodeBody(t, resp, &wf)
	wfID, _ := wf["id"].(string)
	if wf["status"] != "draft" {
		t.Fatalf("expected draft, got %v", wf["status"])
	}

	resp = doJSON(t, "POST", srv.URL+"/workflows/"+wfID+"/runs", map[string]any{"subject_id": subjID})
	expectStatus(t, resp, http.StatusConflict, "trigger draft")
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/workflows/"+wfID+"/complete", nil)
	expectStatus(t, resp, http.StatusConflict, "complete draft")
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/workflows/"+wfID+"/start", nil)
	expectStatus(t, resp, http.StatusOK, "start")
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/workflows/"+wfID+"/runs", map[string]any{"subject_id": subjID})
	expectStatus(t, resp, http.StatusAccepted, "trigger")
	var tr struct {
		Matched bool           `json:"matched"`
		Run     map[string]any `json:"run"`
	}
	decodeBody(t, resp, &tr)
	if !tr.Matched {
		t.Fatal("expected subject to match")
	}
	runID, _ := tr.Run["id"].(string)

	var rn map[string]any
	waitFor(t, func() bool {
		resp := doJSON(t, "GET", srv.URL+"/runs/"+runID, nil)
		decodeBody(t, resp, &rn)
		return rn["status"] == "completed"
	})

	resp = doJSON(t, "GET", srv.URL+"/runs/"+runID+"/steps", nil)
	expectStatus(t, resp, http.StatusOK, "step logs")
	var logs []map[string]any
	decodeBody(t, resp, &logs)
	if len(logs) != 2 {
		t.Fatalf("expected 2 step logs, got %d", len(logs))
	}

	resp = doJSON(t, "POST", srv.URL+"/runs/"+runID+"/cancel", nil)
	expectStatus(t, resp, http.StatusConflict, "cancel completed run")
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/runs?workflow_id="+wfID, nil)
	expectStatus(t, resp, http.StatusOK, "list runs")
	var runs []map[string]any
	decodeBody(t, resp, &runs)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	resp = doJSON(t, "GET", srv.URL+"/subjects/"+subjID, nil)
	expectStatus(t, resp, http.StatusOK, "get subject")
	var subj map[string]any
	decodeBody(t, resp, &subj)
	if tags, _ := subj["tags"].([]any); len(tags) != 1 || tags[0] != "welcomed" {
		t.Fatalf("unexpected tags %v", subj["tags"])
	}

	resp = doJSON(t, "GET", srv.URL+"/subjects/"+subjID+"/tasks", nil)
	expectStatus(t, resp, http.StatusOK, "tasks")
	var tasks []map[string]any
	decodeBody(t, resp, &tasks)
	if len(tasks) != 1 || tasks[0]["title"] != "Call ada@example.com" {
		t.Fatalf("unexpected tasks %v", tasks)
	}

	resp = doJSON(t, "POST", srv.URL+"/workflows/"+wfID+"/pause", nil)
	expectStatus(t, resp, http.StatusOK, "pause")
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/workflows?status=paused", nil)
	expectStatus(t, resp, http.StatusOK, "list workflows")
	var wfs []map[string]any
	decodeBody(t, resp, &wfs)
	if len(wfs) != 1 {
		t.Fatalf("expected 1 paused workflow, got %d", len(wfs))
	}
}

func TestWorkflows_RejectsBadDefinition(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	tests := []struct {
		name  string
		steps []map[string]any
	}{
		{"unknown kind", []map[string]any{{"kind": "teleport"}}},
		{"config violates schema", []map[string]any{{"kind": "add_tag", "config": map[string]any{}}}},
		{"bad delay", []map[string]any{{"kind": "add_tag", "config": map[string]any{"tag": "x"}, "delay": "later"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, "POST", srv.URL+"/workflows", map[string]any{
				"name":    "broken",
				"trigger": map[string]any{"type": "manual"},
				"steps":   tt.steps,
			})
			expectStatus(t, resp, http.StatusBadRequest, "create")
			resp.Body.Close()
		})
	}
}

func TestRuns_NotFound(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "GET", srv.URL+"/runs/"+id.NewRunID().String(), nil)
	expectStatus(t, resp, http.StatusNotFound, "get run")
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/subjects/"+id.NewSubjectID().String(), nil)
	expectStatus(t, resp, http.StatusNotFound, "get subject")
	resp.Body.Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
