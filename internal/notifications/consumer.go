package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"product-catalog/internal/products"

	amqp "github.com/rabbitmq/amqp091-go"
)

// errMalformed marks deliveries that can never be handled; they are dropped
// instead of requeued.
var errMalformed = errors.New("malformed event")

// Options selects the queue to drain and how many unacknowledged deliveries
// the broker may push at once.
type Options struct {
	Queue       string
	ConsumerTag string
	Prefetch    int
}

type Consumer struct {
	channel *amqp.Channel
	opts    Options
	logger  *slog.Logger
}

func NewConsumer(conn *amqp.Connection, opts Options, logger *slog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(opts.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %q: %w", opts.Queue, err)
	}
	if err := ch.Qos(opts.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set prefetch %d: %w", opts.Prefetch, err)
	}

	return &Consumer{
		channel: ch,
		opts:    opts,
		logger:  logger.With("queue", opts.Queue, "consumer_tag", opts.ConsumerTag),
	}, nil
}

func (c *Consumer) Listen(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.opts.Queue,
		c.opts.ConsumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", c.opts.Queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			if err := c.handle(ctx, msg.Body); err != nil {
				requeue := !errors.Is(err, errMalformed) && !msg.Redelivered
				c.logger.Error("handle message failed",
					"error", err,
					"requeue", requeue,
				)
				_ = msg.Nack(false, requeue)
				continue
			}

			_ = msg.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	event, err := decodeEvent(body)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "notification event",
		"event_type", event.EventType,
		"product_id", event.ProductID,
		"name", event.Name,
		"category", event.Category,
		"timestamp", event.Timestamp,
	)

	return nil
}

func decodeEvent(body []byte) (products.ProductEvent, error) {
	var event products.ProductEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return products.ProductEvent{}, fmt.Errorf("%w: unmarshal: %v", errMalformed, err)
	}

	switch event.EventType {
	case products.EventCreated, products.EventUpdated, products.EventDeleted:
	default:
		return products.ProductEvent{}, fmt.Errorf("%w: unknown event type %q", errMalformed, event.EventType)
	}
	if event.ProductID <= 0 {
		return products.ProductEvent{}, fmt.Errorf("%w: product id %d", errMalformed, event.ProductID)
	}

	return event, nil
}

func (c *Consumer) Close() error {
	return c.channel.Close()
}
