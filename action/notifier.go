package action

import (
	"context"
	"log/slog"

	"github.com/xraph/beacon/id"
)

// Channel is a message transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Message is a rendered outbound message.
type Message struct {
	Channel   Channel        `json:"channel"`
	To        string         `json:"to"`
	SubjectID id.ID          `json:"subject_id"`
	RunID     id.ID          `json:"run_id"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Template  string         `json:"template,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier hands messages to an email, SMS or push provider.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogNotifier records the intent to send without contacting a provider.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "message queued",
		"channel", msg.Channel,
		"to", msg.To,
		"subject_id", msg.SubjectID,
		"run_id", msg.RunID,
		"title", msg.Title,
	)
	return nil
}
