package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// ErrNacked is returned when the broker refuses a published event.
var ErrNacked = errors.New("event not acknowledged by broker")

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// Sited is implemented by event payloads that belong to one site. The site
// travels as a message header so consumers can filter without decoding.
type Sited interface {
	Site() int64
}

// Publisher writes events to one topic exchange, routed by event type, and
// waits for the broker to confirm each one.
type Publisher struct {
	broker         *Broker
	exchange       string
	source         string
	confirmTimeout time.Duration
	logger         *logger.Logger
}

// NewPublisher creates a publisher for an exchange the broker declares.
func NewPublisher(broker *Broker, exchange, source string, log *logger.Logger) (*Publisher, error) {
	if !broker.Declares(exchange) {
		return nil, fmt.Errorf("exchange %s is not declared by the broker", exchange)
	}

	return &Publisher{
		broker:         broker,
		exchange:       exchange,
		source:         source,
		confirmTimeout: 5 * time.Second,
		logger:         log,
	}, nil
}

// Publish publishes an event using its type as routing key. A closed
// channel triggers one reconnect and retry.
func (p *Publisher) Publish(ctx context.Context, eventType string, data any) error {
	event, err := NewEvent(eventType, p.source, CorrelationID(ctx), data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	msg, err := p.message(event, data)
	if err != nil {
		return err
	}

	err = p.publish(ctx, eventType, msg)
	if errors.Is(err, amqp.ErrClosed) {
		if rcErr := p.broker.Reconnect(ctx); rcErr != nil {
			return fmt.Errorf("failed to publish event: %w", rcErr)
		}
		err = p.publish(ctx, eventType, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("event published")

	return nil
}

func (p *Publisher) message(event *Event, data any) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := amqp.Table{"source": p.source}
	if s, ok := data.(Sited); ok {
		headers["site_id"] = s.Site()
	}

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID,
		CorrelationId: event.CorrelationID,
		Timestamp:     event.Timestamp,
		Type:          event.Type,
		Body:          body,
	}, nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	confirm, err := p.broker.Channel().PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for confirm: %w", err)
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationID retrieves the correlation ID from context
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
