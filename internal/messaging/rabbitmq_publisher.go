package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp091.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

var _ EventPublisher = (*RabbitMQPublisher)(nil)

// RabbitMQPublisher publishes events to a durable fanout exchange, routed by event type.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
	logger   *zap.Logger
	now      func() time.Time
}

// NewRabbitMQPublisher declares the exchange on ch and returns a publisher for it.
func NewRabbitMQPublisher(ch Channel, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	logger.Info("Events exchange declared", zap.String("exchange", exchange))
	return &RabbitMQPublisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.Named("EventPublisher"),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Publish fills the event id and time when missing and sends it. amqp channels are not safe
// for concurrent publishing, so sends are serialised.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		p.exchange,         // exchange
		string(event.Type), // routing key, informational on fanout
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID,
			Type:         string(event.Type),
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("type", string(event.Type)), zap.String("projectID", event.ProjectID), zap.Error(err))
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	p.logger.Debug("Event published", zap.String("type", string(event.Type)), zap.String("projectID", event.ProjectID))
	return nil
}

// Close closes the channel.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

// Connect dials RabbitMQ, retrying while the broker comes up.
func Connect(ctx context.Context, rawURL string, attempts int, delay time.Duration, logger *zap.Logger) (*amqp091.Connection, error) {
	logger.Info("Attempting to connect to RabbitMQ",
		zap.String("url", maskURL(rawURL)), zap.Int("max_retries", attempts), zap.Duration("retry_delay", delay))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := amqp091.Dial(rawURL)
		if err == nil {
			logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			go func() {
				closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
				if err := <-closed; err != nil {
					logger.Error("RabbitMQ connection closed unexpectedly", zap.Error(err))
				}
			}()
			return conn, nil
		}
		lastErr = err
		logger.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", attempt), zap.Int("max_attempts", attempts), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}

func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[invalid url]"
	}
	return u.Redacted()
}
