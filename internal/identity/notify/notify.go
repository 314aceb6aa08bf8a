// Package notify is the outbound port for invitation delivery and audit
// event publication. Delivery is best-effort: a failed send never rolls back
// the state change that triggered it.
package notify

import (
	"context"

	"github.com/skylensaero/identity/internal/identity/domain"
)

// Message templates understood by the downstream notification service.
// Template rendering happens on the consumer side.
const (
	TemplateInvitation       = "invitation"
	TemplateInvitationResend = "invitation-resend"
	TemplateWelcome          = "welcome"
)

// Notifier delivers a templated message to an email address.
type Notifier interface {
	Send(ctx context.Context, email, template string, vars map[string]string) error
}

// EventPublisher emits access-change events for the externally-owned
// audit-history view.
type EventPublisher interface {
	PublishAccessEvent(ctx context.Context, e domain.AccessEvent) error
}

// Bus combines both outbound concerns; the AMQP and log implementations
// satisfy it.
type Bus interface {
	Notifier
	EventPublisher
	Close() error
}
