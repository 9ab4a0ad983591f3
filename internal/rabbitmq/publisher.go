package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"chat-client/internal/config"
	"chat-client/internal/observability"
)

// Publisher publishes JSON events to the client exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Headed is implemented by events that carry tracing headers.
type Headed interface {
	Headers() map[string]string
}

// NewPublisher builds a RabbitMQ publisher, or a noop publisher when AMQP is disabled
// or unreachable.
func NewPublisher(cfg config.AMQPConfig, log *zap.SugaredLogger) Publisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.URL == "" {
		log.Infow("rabbitmq disabled, using noop", "reason", "empty amqp url")
		return noopPublisher{reason: "empty amqp url", log: log}
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		log.Warnw("rabbitmq disabled, using noop", "reason", err)
		return noopPublisher{reason: err.Error(), log: log}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warnw("rabbitmq disabled, using noop", "reason", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error(), log: log}
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Warnw("rabbitmq disabled, using noop", "reason", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error(), log: log}
	}

	log.Infow("rabbitmq connected", "exchange", cfg.Exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: cfg.Exchange, log: log}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.SugaredLogger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	msg, err := Encode(event)
	if err != nil {
		observability.IncAMQPPublishError()
		return err
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		observability.IncAMQPPublishError()
		p.log.Warnw("rabbitmq publish failed", "routing_key", routingKey, "error", err)
		return err
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Encode builds the persistent JSON publishing for event.
func Encode(event any) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if h, ok := event.(Headed); ok {
		if headers := h.Headers(); len(headers) > 0 {
			msg.Headers = amqp.Table{}
			for k, v := range headers {
				msg.Headers[k] = v
			}
		}
	}
	return msg, nil
}

type noopPublisher struct {
	reason string
	log    *zap.SugaredLogger
}

func (p noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	fields := []any{"routing_key", routingKey}
	if h, ok := event.(Headed); ok {
		for k, v := range h.Headers() {
			fields = append(fields, k, v)
		}
	}
	p.log.Debugw("rabbitmq noop publish", fields...)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// PublisherNoopReason reports why the noop publisher was chosen.
func PublisherNoopReason(p Publisher) string {
	if n, ok := p.(noopPublisher); ok {
		return n.reason
	}
	return ""
}
