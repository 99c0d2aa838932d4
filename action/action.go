// Package action executes workflow steps. Each action kind has one Action
// implementation; the Executor evaluates a step's conditions, dispatches to
// the action and records exactly one step log per execution.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/condition"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/run"
	"github.com/xraph/beacon/subject"
	"github.com/xraph/beacon/workflow"
)

// Result is the structured outcome of one step.
type Result struct {
	Outcome run.Outcome    `json:"outcome"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Output  map[string]any `json:"output,omitempty"`

	// BranchPath is set by branch steps to the chosen branch name.
	BranchPath string `json:"branch_path,omitempty"`
}

// Succeeded builds a successful Result.
func Succeeded(msg string, output map[string]any) Result {
	return Result{Outcome: run.OutcomeSuccess, Success: true, Message: msg, Output: output}
}

// Failed builds a failed Result.
func Failed(format string, args ...any) Result {
	return Result{Outcome: run.OutcomeFailed, Message: fmt.Sprintf(format, args...)}
}

// Request is what an action receives: the step, the run it belongs to and
// the subject as it is right now.
type Request struct {
	Index   int
	Step    workflow.Step
	Run     *run.Run
	Subject *subject.Subject
	Env     condition.Env
}

// Action performs one kind of step. A returned error fails the step just
// like a Result with Success false; the error text becomes the message.
type Action interface {
	Kind() workflow.ActionKind
	Execute(ctx context.Context, req *Request) (Result, error)
}

// Deps are the collaborators the built-in actions use.
type Deps struct {
	Subjects  subject.Store
	Notifier  Notifier
	Transport delivery.Transport
	Evaluator *condition.Evaluator
	Clock     clockwork.Clock
	Logger    *slog.Logger

	// WebhookTimeout applies to webhook steps without their own timeout.
	WebhookTimeout time.Duration
	UserAgent      string
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Notifier == nil {
		d.Notifier = NewLogNotifier(d.Logger)
	}
	if d.Transport == nil {
		d.Transport = delivery.NewHTTPTransport(&http.Client{}, 0)
	}
	if d.Evaluator == nil {
		d.Evaluator = condition.NewEvaluator()
	}
	if d.WebhookTimeout <= 0 {
		d.WebhookTimeout = 30 * time.Second
	}
	if d.UserAgent == "" {
		d.UserAgent = delivery.DefaultUserAgent
	}
}

// ──────────────────────────────────────────────────
// Registry
// ──────────────────────────────────────────────────

// Registry maps action kinds to their implementation.
type Registry struct {
	actions map[workflow.ActionKind]Action
}

// NewRegistry creates a registry holding actions.
func NewRegistry(actions ...Action) *Registry {
	r := &Registry{actions: make(map[workflow.ActionKind]Action, len(actions))}
	for _, a := range actions {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the action for a.Kind().
func (r *Registry) Register(a Action) {
	r.actions[a.Kind()] = a
}

// Lookup returns the action for kind.
func (r *Registry) Lookup(kind workflow.ActionKind) (Action, bool) {
	a, ok := r.actions[kind]
	return a, ok
}

// DefaultRegistry returns a registry with an action for every kind in
// workflow.ActionKinds.
func DefaultRegistry(deps Deps) *Registry {
	deps.defaults()
	return NewRegistry(
		&Send{kind: workflow.ActionSendEmail, channel: ChannelEmail, deps: deps},
		&Send{kind: workflow.ActionSendSMS, channel: ChannelSMS, deps: deps},
		&Send{kind: workflow.ActionSendPush, channel: ChannelPush, deps: deps},
		&UpdateField{deps: deps},
		&Segment{kind: workflow.ActionAddToSegment, add: true, deps: deps},
		&Segment{kind: workflow.ActionRemoveFromSegment, deps: deps},
		&Wait{deps: deps},
		&Webhook{deps: deps},
		&CreateTask{deps: deps},
		&AddTag{deps: deps},
		&UpdateScore{deps: deps},
		&Branch{deps: deps},
	)
}
