package api

import (
	"fmt"
	"time"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/endpoint"
	"github.com/xraph/beacon/internal/errs"
	"github.com/xraph/beacon/workflow"
)

// Durations travel as Go duration strings ("30s", "24h").

// EndpointBody is the JSON body for creating a delivery target.
type EndpointBody struct {
	URL                string            `description:"Delivery URL"                          json:"url"`
	Description        string            `description:"Endpoint description"                  json:"description,omitempty"`
	Method             string            `description:"HTTP method (default POST)"            json:"method,omitempty"`
	Secret             string            `description:"Signing secret"                        json:"secret,omitempty"`
	GenerateSecret     bool              `description:"Generate a secret when none is given"  json:"generate_secret,omitempty"`
	EventTypes         []string          `description:"Subscribed event types"                json:"event_types"`
	Filters            map[string]any    `description:"Payload field equality filters"        json:"filters,omitempty"`
	Headers            map[string]string `description:"Custom HTTP headers"                   json:"headers,omitempty"`
	Timeout            string            `description:"Per-attempt timeout"                   json:"timeout,omitempty"`
	MaxAttempts        int               `description:"Attempt budget"                        json:"max_attempts,omitempty"`
	BackoffBase        string            `description:"First retry delay"                     json:"backoff_base,omitempty"`
	RateLimitPerMinute int               `description:"Deliveries per minute, 0 is unlimited" json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]string `description:"Arbitrary key-value metadata"          json:"metadata,omitempty"`
	Inactive           bool              `description:"Register without receiving deliveries" json:"inactive,omitempty"`
}

// Input converts the body to an endpoint.Input.
func (b EndpointBody) Input() (endpoint.Input, error) {
	timeout, err := parseDuration("timeout", b.Timeout)
	if err != nil {
		return endpoint.Input{}, err
	}
	backoff, err := parseDuration("backoff_base", b.BackoffBase)
	if err != nil {
		return endpoint.Input{}, err
	}
	return endpoint.Input{
		URL:                b.URL,
		Description:        b.Description,
		Method:             b.Method,
		Secret:             b.Secret,
		GenerateSecret:     b.GenerateSecret,
		EventTypes:         b.EventTypes,
		Filters:            b.Filters,
		Headers:            b.Headers,
		Timeout:            timeout,
		MaxAttempts:        b.MaxAttempts,
		BackoffBase:        backoff,
		RateLimitPerMinute: b.RateLimitPerMinute,
		Metadata:           b.Metadata,
		Inactive:           b.Inactive,
	}, nil
}

// EndpointPatchBody is the JSON body for a partial endpoint update.
type EndpointPatchBody struct {
	URL                *string           `description:"Delivery URL"                  json:"url,omitempty"`
	Description        *string           `description:"Endpoint description"          json:"description,omitempty"`
	Method             *string           `description:"HTTP method"                   json:"method,omitempty"`
	EventTypes         []string          `description:"Subscribed event types"        json:"event_types,omitempty"`
	Filters            map[string]any    `description:"Payload field filters"         json:"filters,omitempty"`
	Headers            map[string]string `description:"Custom HTTP headers"           json:"headers,omitempty"`
	Timeout            *string           `description:"Per-attempt timeout"           json:"timeout,omitempty"`
	MaxAttempts        *int              `description:"Attempt budget"                json:"max_attempts,omitempty"`
	BackoffBase        *string           `description:"First retry delay"             json:"backoff_base,omitempty"`
	RateLimitPerMinute *int              `description:"Deliveries per minute"         json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]string `description:"Arbitrary key-value metadata" json:"metadata,omitempty"`
}

// Update converts the body to an endpoint.Update.
func (b EndpointPatchBody) Update() (endpoint.Update, error) {
	up := endpoint.Update{
		URL:                b.URL,
		Description:        b.Description,
		Method:             b.Method,
		EventTypes:         b.EventTypes,
		Filters:            b.Filters,
		Headers:            b.Headers,
		MaxAttempts:        b.MaxAttempts,
		RateLimitPerMinute: b.RateLimitPerMinute,
		Metadata:           b.Metadata,
	}
	if b.Timeout != nil {
		d, err := parseDuration("timeout", *b.Timeout)
		if err != nil {
			return endpoint.Update{}, err
		}
		up.Timeout = &d
	}
	if b.BackoffBase != nil {
		d, err := parseDuration("backoff_base", *b.BackoffBase)
		if err != nil {
			return endpoint.Update{}, err
		}
		up.BackoffBase = &d
	}
	return up, nil
}

// StepBody is one workflow step in a request.
type StepBody struct {
	Kind            workflow.ActionKind   `description:"Action kind"                       json:"kind"`
	Name            string                `description:"Step name"                         json:"name,omitempty"`
	Config          map[string]any        `description:"Action configuration"              json:"config,omitempty"`
	Conditions      []condition.Condition `description:"Conditions that must all hold"     json:"conditions,omitempty"`
	Delay           string                `description:"Delay before the step executes"    json:"delay,omitempty"`
	ContinueOnError bool                  `description:"Keep the run going if this fails"  json:"continue_on_error,omitempty"`
}

// WorkflowBody is the JSON body for creating or replacing a workflow.
type WorkflowBody struct {
	Name        string                `description:"Workflow name"                json:"name"`
	Description string                `description:"Workflow description"         json:"description,omitempty"`
	Steps       []StepBody            `description:"Ordered steps"                json:"steps"`
	Trigger     workflow.Trigger      `description:"What starts a run"            json:"trigger"`
	Audience    []condition.Condition `description:"Subject entry conditions"     json:"audience,omitempty"`
	Metadata    map[string]string     `description:"Arbitrary key-value metadata" json:"metadata,omitempty"`
}

// Input converts the body to a workflow.Input.
func (b WorkflowBody) Input() (workflow.Input, error) {
	in := workflow.Input{
		Name:        b.Name,
		Description: b.Description,
		Trigger:     b.Trigger,
		Audience:    b.Audience,
		Metadata:    b.Metadata,
		Steps:       make([]workflow.Step, 0, len(b.Steps)),
	}
	for i, s := range b.Steps {
		delay, err := parseDuration(fmt.Sprintf("steps[%d].delay", i), s.Delay)
		if err != nil {
			return workflow.Input{}, err
		}
		in.Steps = append(in.Steps, workflow.Step{
			Kind:            s.Kind,
			Name:            s.Name,
			Config:          s.Config,
			Conditions:      s.Conditions,
			Delay:           delay,
			ContinueOnError: s.ContinueOnError,
		})
	}
	return in, nil
}

// TriggerRunBody is the JSON body for starting a run.
type TriggerRunBody struct {
	SubjectID string         `description:"Subject identifier" json:"subject_id"`
	Variables map[string]any `description:"Initial variables"  json:"variables,omitempty"`
}

// SubjectBody is the JSON body for storing a subject.
type SubjectBody struct {
	Fields   map[string]any `description:"Free-form subject fields" json:"fields,omitempty"`
	Tags     []string       `description:"Tags"                     json:"tags,omitempty"`
	Score    float64        `description:"Lead score"               json:"score"`
	Segments []string       `description:"Segment memberships"      json:"segments,omitempty"`
}

// StatsResponse is the response for GET /stats.
type StatsResponse struct {
	Deliveries map[string]int64 `json:"deliveries"`
}

// SecretResponse is the response for POST /endpoints/{id}/rotate-secret.
type SecretResponse struct {
	Secret string `json:"secret"`
}

// RetriesResponse is the response for POST /retries/process.
type RetriesResponse struct {
	Attempted int `json:"attempted"`
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errs.Invalid(field, "%q is not a duration", s)
	}
	return d, nil
}
