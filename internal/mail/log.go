package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the process log instead of delivering them.
// It is the default transport for local development.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "confirmation mail",
		"to", msg.To,
		"display_name", msg.DisplayName,
		"subject", msg.Subject,
		"link", msg.Link,
	)
	return nil
}
