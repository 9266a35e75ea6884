package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"product-catalog/internal/products"

	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

type RabbitPublisher struct {
	channel *amqp.Channel
	queue   string
}

func NewRabbitPublisher(conn *amqp.Connection, queue string) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	return &RabbitPublisher{
		channel: ch,
		queue:   queue,
	}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event products.ProductEvent) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.channel.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp.Persistent,
			Type:         event.EventType,
			Timestamp:    event.Timestamp,
			Body:         payload,
		},
	); err != nil {
		return fmt.Errorf("publish to %q: %w", p.queue, err)
	}

	return nil
}

func (p *RabbitPublisher) Close() error {
	return p.channel.Close()
}

// Encode renders event as the JSON body published on the events queue.
func Encode(event products.ProductEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}

// LogPublisher stands in for RabbitMQ when no broker is configured; events are
// written to the log at debug level.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event products.ProductEvent) error {
	p.logger.DebugContext(ctx, "product event",
		"event_type", event.EventType,
		"product_id", event.ProductID,
	)
	return nil
}
