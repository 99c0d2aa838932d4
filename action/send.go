package action

import (
	"context"
	"fmt"

	"github.com/xraph/beacon/workflow"
)

// Send renders a message from the step config and hands it to the
// Notifier. The recipient defaults to the subject's "email" field for email
// and "phone" for SMS; push messages address the subject itself.
type Send struct {
	kind    workflow.ActionKind
	channel Channel
	deps    Deps
}

type sendConfig struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Message  string         `json:"message"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Kind implements Action.
func (a *Send) Kind() workflow.ActionKind { return a.kind }

// Execute implements Action.
func (a *Send) Execute(ctx context.Context, req *Request) (Result, error) {
	var cfg sendConfig
	if err := workflow.DecodeConfig(req.Step.Config, &cfg); err != nil {
		return Result{}, err
	}

	msg := Message{
		Channel:   a.channel,
		To:        Render(cfg.To, req.Env),
		SubjectID: req.Subject.ID,
		RunID:     req.Run.ID,
		Template:  cfg.Template,
		Data:      cfg.Data,
	}
	switch a.channel {
	case ChannelEmail:
		msg.Title = Render(cfg.Subject, req.Env)
		msg.Body = Render(cfg.Body, req.Env)
		if msg.To == "" {
			msg.To = stringField(req.Env.Subject, "email")
		}
	case ChannelSMS:
		msg.Body = Render(cfg.Message, req.Env)
		if msg.To == "" {
			msg.To = stringField(req.Env.Subject, "phone")
		}
	case ChannelPush:
		msg.Title = Render(cfg.Title, req.Env)
		msg.Body = Render(cfg.Body, req.Env)
		if msg.To == "" {
			msg.To = req.Subject.ID.String()
		}
	}

	if msg.To == "" {
		return Failed("subject %s has no %s recipient", req.Subject.ID, a.channel), nil
	}
	if err := a.deps.Notifier.Notify(ctx, msg); err != nil {
		return Failed("%s to %s: %v", a.channel, msg.To, err), nil
	}

	return Succeeded(fmt.Sprintf("%s sent to %s", a.channel, msg.To), map[string]any{
		"channel": string(a.channel),
		"to":      msg.To,
		"title":   msg.Title,
	}), nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
