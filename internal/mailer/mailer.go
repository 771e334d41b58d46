package mailer

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string

	// Template names the template the message was composed from. It rides
	// along for logging and for the webhook payload.
	Template string
}

// Mailer delivers onboarding emails. Delivery failures are reported to the
// caller but never gate pipeline progress; the engine records them on the
// subject's email log and moves on.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes emails to the log instead of delivering them. It is the
// default in development and in tests.
type LogMailer struct {
	Logger *slog.Logger
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer returns a Mailer that logs every message at info level.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{Logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}

	m.Logger.InfoContext(ctx, "email_sent",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
	)
	return nil
}
