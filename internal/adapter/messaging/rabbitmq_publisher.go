package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

const dialAttempts = 5

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// RabbitMQPublisher publishes fulfillment events to a durable topic exchange.
// Push-notification fan-out consumes them downstream.
type RabbitMQPublisher struct {
	conn   *amqp.Connection
	cfg    RabbitMQConfig
	logger *zap.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewRabbitMQPublisher(cfg RabbitMQConfig, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("exchange name cannot be empty")
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		wait := time.Duration(i*i)*time.Second + time.Second
		logger.Warn("rabbitmq dial failed, retrying", zap.Duration("wait", wait), zap.Error(err))
		time.Sleep(wait)
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq after %d attempts: %w", dialAttempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: channel,
		cfg:     cfg,
		logger:  logger.Named("rabbitmq"),
	}, nil
}

func (p *RabbitMQPublisher) PublishFulfillmentCompleted(ctx context.Context, event domain.FulfillmentCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", p.cfg.Exchange, p.cfg.RoutingKey, err)
	}

	p.logger.Debug("published fulfillment event",
		zap.String("event_id", event.EventID),
		zap.String("order_id", event.OrderID),
	)
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	return p.conn.Close()
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) PublishFulfillmentCompleted(ctx context.Context, event domain.FulfillmentCompletedEvent) error {
	p.logger.Debug("event publishing disabled", zap.String("order_id", event.OrderID))
	return nil
}
