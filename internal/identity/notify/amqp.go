package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/pkg/idx"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	notificationQueue = "identity.notifications"
	accessEventQueue  = "identity.access-events"
)

// AMQPBus publishes notifications and access events to RabbitMQ queues.
type AMQPBus struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPBus dials the broker and declares the queues this service writes to.
func NewAMQPBus(url string) (*AMQPBus, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("notify: amqp url is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	for _, queue := range []string{notificationQueue, accessEventQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &AMQPBus{conn: conn, channel: ch}, nil
}

type notification struct {
	Email    string            `json:"email"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// Send publishes a templated notification. Honors ctx deadlines so callers
// can bound how long a state-mutating operation waits on delivery.
func (b *AMQPBus) Send(ctx context.Context, email, template string, vars map[string]string) error {
	body, err := json.Marshal(notification{Email: email, Template: template, Vars: vars})
	if err != nil {
		return err
	}
	return b.publish(ctx, notificationQueue, body)
}

// PublishAccessEvent emits the access-change event for the audit view.
func (b *AMQPBus) PublishAccessEvent(ctx context.Context, e domain.AccessEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.publish(ctx, accessEventQueue, body)
}

func (b *AMQPBus) publish(ctx context.Context, queue string, body []byte) error {
	return b.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   idx.New().String(),
		Body:        body,
	})
}

// Close closes the underlying channel and connection.
func (b *AMQPBus) Close() error {
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
