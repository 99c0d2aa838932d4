package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultMaxResponseBody caps the response body kept on a delivery.
const DefaultMaxResponseBody = 4096

// Request is one outbound call.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Response is what came back from a completed call, whatever its status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// Transport performs outbound calls. It returns an error only when no
// response was received; a non-2xx status is a Response, not an error.
// Implementations must honor req.Timeout and report an exceeded timeout
// with an error for which IsTimeout is true.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (*Response, error)

// Do implements Transport.
func (f TransportFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPTransport is the net/http Transport.
type HTTPTransport struct {
	client  *http.Client
	maxBody int64
}

// NewHTTPTransport creates an HTTP transport. A nil client uses a fresh
// http.Client; per-call timeouts come from each Request. maxBody <= 0 uses
// DefaultMaxResponseBody.
func NewHTTPTransport(client *http.Client, maxBody int64) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBody
	}
	return &HTTPTransport{client: client, maxBody: maxBody}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq) //nolint:gosec // G704: URL is an operator-configured delivery target.
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, t.maxBody))
	latency := time.Since(start)
	if readErr != nil {
		return nil, fmt.Errorf("read response: %w", readErr)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		Latency:    latency,
	}, nil
}

// IsTimeout reports whether err means the call ran out of time.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Classify maps an attempt outcome to an ErrorKind.
func Classify(resp *Response, err error) ErrorKind {
	switch {
	case err != nil && IsTimeout(err):
		return ErrorKindTimeout
	case err != nil, resp == nil:
		return ErrorKindTransport
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return ErrorKindHTTP
	default:
		return ErrorKindNone
	}
}
