package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wareflow/wareflow-backend/pkg/config"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// ErrBrokerClosed is returned once Close has been called.
var ErrBrokerClosed = errors.New("broker connection closed")

// Broker owns the AMQP connection and a single confirm-mode channel used for
// publishing. The exchanges it was created with are redeclared on every
// reconnect.
type Broker struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	config    *config.RabbitMQConfig
	exchanges []string
	logger    *logger.Logger
	mu        sync.RWMutex
	closed    bool
}

// Dial connects to the broker and declares the given topic exchanges.
func Dial(cfg *config.RabbitMQConfig, log *logger.Logger, exchanges ...string) (*Broker, error) {
	b := &Broker{
		config:    cfg,
		exchanges: exchanges,
		logger:    log.WithComponent("rabbitmq"),
	}

	if err := b.connect(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Broker) connect() error {
	conn, err := amqp.Dial(b.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	for _, name := range b.exchanges {
		if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}

	b.conn = conn
	b.channel = ch
	b.logger.Info().Strs("exchanges", b.exchanges).Msg("connected to RabbitMQ")
	return nil
}

// Channel returns the current publishing channel.
func (b *Broker) Channel() *amqp.Channel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.channel
}

// Declares reports whether exchange is part of the broker topology.
func (b *Broker) Declares(exchange string) bool {
	for _, name := range b.exchanges {
		if name == exchange {
			return true
		}
	}
	return false
}

// Close closes the channel and the connection. Reconnect fails afterwards.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	b.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports the connection state for the health endpoint.
func (b *Broker) Health() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch {
	case b.closed:
		return map[string]string{"status": "down", "error": ErrBrokerClosed.Error()}
	case b.conn == nil || b.conn.IsClosed():
		return map[string]string{"status": "down", "error": "connection lost"}
	case b.channel == nil || b.channel.IsClosed():
		return map[string]string{"status": "degraded", "error": "channel closed"}
	}
	return map[string]string{"status": "up"}
}

// Reconnect reopens a lost connection or channel, retrying up to
// MaxRetries times with ReconnectDelay between attempts.
func (b *Broker) Reconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if b.conn != nil && !b.conn.IsClosed() && b.channel != nil && !b.channel.IsClosed() {
		return nil
	}
	if b.conn != nil && !b.conn.IsClosed() {
		b.conn.Close()
	}

	for i := 0; i < b.config.MaxRetries; i++ {
		b.logger.Info().Int("attempt", i+1).Msg("attempting to reconnect to RabbitMQ")

		if err := b.connect(); err != nil {
			b.logger.Warn().Err(err).Msg("reconnection attempt failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.config.ReconnectDelay):
			}
			continue
		}

		return nil
	}

	return fmt.Errorf("failed to reconnect after %d attempts", b.config.MaxRetries)
}
