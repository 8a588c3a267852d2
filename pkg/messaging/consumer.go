package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/regdocs/regdocs-backend/pkg/logger"
)

// MaxDeliveryAttempts is how often a failing message is redelivered before
// it is dead-lettered.
const MaxDeliveryAttempts = 3

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Disposition is what to do with a delivery after handling it
type Disposition int

const (
	Ack Disposition = iota
	Requeue
	DeadLetter
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "dead_letter"
	}
}

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	router    *Router
	logger    *logger.Logger
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		router:    NewRouter(log),
		logger:    log,
	}, nil
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.router.Handle(eventType, handler)
}

// Start consumes messages until ctx is cancelled or the channel closes.
// It blocks, so run it in its own goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel for %s closed", c.queueName)
			}
			c.settle(msg, c.router.Dispatch(ctx, msg.Body, deliveryAttempts(msg.Headers)))
		}
	}
}

func (c *Consumer) settle(msg amqp.Delivery, d Disposition) {
	var err error
	switch d {
	case Ack:
		err = msg.Ack(false)
	case Requeue:
		err = msg.Nack(false, true)
	default:
		err = msg.Reject(false)
	}
	if err != nil {
		c.logger.Error().Err(err).Str("disposition", d.String()).Msg("failed to settle delivery")
	}
}

// Router maps event types to handlers and decides how each delivery is settled.
// It has no broker dependency so handlers can be exercised directly.
type Router struct {
	handlers map[string]MessageHandler
	logger   *logger.Logger
}

// NewRouter creates an empty router
func NewRouter(log *logger.Logger) *Router {
	return &Router{handlers: make(map[string]MessageHandler), logger: log}
}

// Handle registers a handler for an event type
func (r *Router) Handle(eventType string, handler MessageHandler) {
	r.handlers[eventType] = handler
}

// Dispatch decodes an event body and runs its handler. Malformed bodies are
// dead-lettered immediately, unknown types are acknowledged and dropped.
func (r *Router) Dispatch(ctx context.Context, body []byte, attempts int) Disposition {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		r.logger.Error().Err(err).Msg("failed to unmarshal event")
		return DeadLetter
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := r.handlers[event.Type]
	if !ok {
		r.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return Ack
	}

	r.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	if err := handler(ctx, &event); err != nil {
		r.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")

		if attempts >= MaxDeliveryAttempts {
			r.logger.Warn().
				Str("event_id", event.ID).
				Int("attempts", attempts).
				Msg("max retries exceeded, sending to DLQ")
			return DeadLetter
		}
		return Requeue
	}

	return Ack
}

// deliveryAttempts returns how often a delivery was already handed out.
// Quorum queues report it in x-delivery-count; x-death covers deliveries
// that went through a dead-letter cycle.
func deliveryAttempts(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	switch n := headers["x-delivery-count"].(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	}

	if deaths, ok := headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
