// Package kafka provides a Kafka-backed eventstream publisher using
// segmentio/kafka-go. Events are JSON-encoded and keyed by event ID so
// partitioning stays stable per event.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/irobothq/irobot/pkg/eventstream"
	"github.com/irobothq/irobot/pkg/logger"
)

// Config holds the connection settings for the Kafka publisher.
type Config struct {
	// Brokers is the broker address list.
	Brokers []string

	// Topic is the destination topic for all irobot events.
	Topic string

	// Logger is the configured logger. Defaults to a no-op logger.
	Logger *slog.Logger
}

// Publisher publishes irobot events to a Kafka topic.
type Publisher struct {
	writer *segkafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka publisher. The underlying writer is lazy:
// no connection is made until the first publish.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	writer := &segkafka.Writer{
		Addr:     segkafka.TCP(c.Brokers...),
		Topic:    c.Topic,
		Balancer: &segkafka.LeastBytes{},
	}

	return &Publisher{
		writer: writer,
		logger: c.Logger,
	}, nil
}

// PublishTurn publishes a completed chat turn.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return p.publish(ctx, event.EventID, event)
}

// PublishNotification publishes an observed notification.
func (p *Publisher) PublishNotification(ctx context.Context, event *eventstream.NotificationObservedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return p.publish(ctx, event.EventID, event)
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, segkafka.Message{
		Key:   []byte(key),
		Value: data,
	}); err != nil {
		return fmt.Errorf("writing event to kafka: %w", err)
	}

	p.logger.Debug("event published", "key", key, "bytes", len(data))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
