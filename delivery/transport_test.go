package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTransport_Do(t *testing.T) {
	var gotBody, gotHeader, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Get("X-Test")
		gotMethod = r.Method
		w.Header().Set("X-Reply", "ok")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), 0)
	resp, err := tr.Do(context.Background(), Request{
		Method:  http.MethodPut,
		URL:     srv.URL,
		Header:  http.Header{"X-Test": []string{"1"}},
		Body:    []byte("payload"),
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.Header.Get("X-Reply") != "ok" {
		t.Error("response header missing")
	}
	if gotBody != "payload" || gotHeader != "1" || gotMethod != http.MethodPut {
		t.Errorf("server saw %s %q header=%q", gotMethod, gotBody, gotHeader)
	}
}

func TestHTTPTransport_NonSuccessIsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := NewHTTPTransport(srv.Client(), 0).Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if Classify(resp, err) != ErrorKindHTTP {
		t.Errorf("kind = %q, want http", Classify(resp, err))
	}
}

func TestHTTPTransport_TruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	resp, err := NewHTTPTransport(srv.Client(), 16).Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Body) != 16 {
		t.Errorf("body length = %d, want 16", len(resp.Body))
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	resp, err := NewHTTPTransport(srv.Client(), 0).Do(context.Background(), Request{
		URL:     srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false", err)
	}
	if Classify(resp, err) != ErrorKindTimeout {
		t.Errorf("kind = %q, want timeout", Classify(resp, err))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		err  error
		want ErrorKind
	}{
		{"2xx", &Response{StatusCode: 204}, nil, ErrorKindNone},
		{"3xx", &Response{StatusCode: 302}, nil, ErrorKindHTTP},
		{"4xx", &Response{StatusCode: 404}, nil, ErrorKindHTTP},
		{"deadline", nil, context.DeadlineExceeded, ErrorKindTimeout},
		{"refused", nil, errors.New("connection refused"), ErrorKindTransport},
		{"no response", nil, nil, ErrorKindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.resp, tt.err); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}
