package action

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/workflow"
)

// Webhook makes an outbound call through the delivery Transport. With a
// secret the body is signed the same way deliveries are.
type Webhook struct{ deps Deps }

type webhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    map[string]any    `json:"body"`
	Secret  string            `json:"secret"`
	Timeout string            `json:"timeout"`
}

// Kind implements Action.
func (a *Webhook) Kind() workflow.ActionKind { return workflow.ActionWebhook }

// Execute implements Action.
func (a *Webhook) Execute(ctx context.Context, req *Request) (Result, error) {
	var cfg webhookConfig
	if err := workflow.DecodeConfig(req.Step.Config, &cfg); err != nil {
		return Result{}, err
	}

	timeout := a.deps.WebhookTimeout
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return Result{}, fmt.Errorf("timeout: %w", err)
		}
		timeout = d
	}

	body := cfg.Body
	if body == nil {
		body = map[string]any{
			"run_id":      req.Run.ID.String(),
			"workflow_id": req.Run.WorkflowID.String(),
			"step":        req.Index,
			"subject":     req.Env.Subject,
			"variables":   req.Env.Variables,
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("marshal body: %w", err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", a.deps.UserAgent)
	header.Set(delivery.HeaderTimestamp, strconv.FormatInt(a.deps.Clock.Now().Unix(), 10))
	if cfg.Secret != "" {
		header.Set(delivery.HeaderSignature, signature.Header(cfg.Secret, payload))
	}
	for k, v := range cfg.Headers {
		header.Set(k, Render(v, req.Env))
	}

	resp, err := a.deps.Transport.Do(ctx, delivery.Request{
		Method:  method,
		URL:     Render(cfg.URL, req.Env),
		Header:  header,
		Body:    payload,
		Timeout: timeout,
	})
	switch delivery.Classify(resp, err) {
	case delivery.ErrorKindTimeout:
		return Failed("timeout: %v", err), nil
	case delivery.ErrorKindTransport:
		return Failed("transport: %v", err), nil
	case delivery.ErrorKindHTTP:
		return Failed("HTTP %d: %s", resp.StatusCode, string(resp.Body)), nil
	}

	out := map[string]any{
		"status_code": resp.StatusCode,
		"latency_ms":  resp.Latency.Milliseconds(),
	}
	var decoded map[string]any
	if json.Unmarshal(resp.Body, &decoded) == nil {
		out["response"] = decoded
	}
	return Succeeded(fmt.Sprintf("HTTP %d", resp.StatusCode), out), nil
}
