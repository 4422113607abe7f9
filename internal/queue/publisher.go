package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends premium events to RabbitMQ.  A connection is dialled per
// publish; activations are rare and this keeps the server free of a
// long-lived broker dependency.
type Publisher struct {
	url     string
	timeout time.Duration
	log     *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, timeout: 3 * time.Second, log: log}
}

// PublishPremiumActivated publishes ev as a persistent JSON message.  Errors
// are logged and returned so the caller can choose to ignore them.
func (p *Publisher) PublishPremiumActivated(ctx context.Context, ev PremiumActivatedEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.timeout)})
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return fmt.Errorf("channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(PremiumQueueName, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.Error(err))
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", PremiumQueueName, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}
	p.log.Debug("premium event published", zap.Uint64("user_id", ev.UserID))
	return nil
}
