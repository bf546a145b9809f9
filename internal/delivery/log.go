package delivery

import (
	"context"

	"flulance/internal/logger"
	"flulance/internal/models"
)

// LogSender writes every message to the structured log. Used in development
// and when no external channel is configured.
type LogSender struct{}

func (LogSender) Name() string { return "log" }

func (LogSender) Send(ctx context.Context, contact models.DeliveryContact, msg Message) error {
	logger.CtxInfo(ctx, "notification delivered",
		"user_id", contact.UserID,
		"subject", msg.Subject,
		"link", msg.Link,
	)
	return nil
}
