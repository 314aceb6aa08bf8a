package notify

import (
	"context"
	"log/slog"

	"github.com/skylensaero/identity/internal/identity/domain"
)

// LogBus writes notifications and events to the structured log instead of a
// broker. Used in dev when no AMQP URL is configured.
type LogBus struct {
	Logger *slog.Logger
}

func (b *LogBus) Send(ctx context.Context, email, template string, vars map[string]string) error {
	b.Logger.Info("notification (log sink)",
		slog.String("email", email),
		slog.String("template", template),
		slog.Any("vars", vars),
	)
	return nil
}

func (b *LogBus) PublishAccessEvent(ctx context.Context, e domain.AccessEvent) error {
	b.Logger.Info("access event (log sink)",
		slog.String("user_id", e.UserID),
		slog.String("action", string(e.Action)),
		slog.String("changed_by", e.ChangedBy),
	)
	return nil
}

func (b *LogBus) Close() error { return nil }
