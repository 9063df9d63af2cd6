// Package bus publishes persisted event records to Kafka.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const DefaultTopic = "quake-events"

// MessageWriter is the subset of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher produces one message per EventRecord, keyed by quake id.
type Publisher struct {
	writer MessageWriter
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w), nil
}

// NewPublisherWithWriter wraps an existing writer, useful for testing.
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish sends rec to the topic.
func (p *Publisher) Publish(ctx context.Context, rec *models.EventRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish quake %s: %w", rec.QuakeID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(rec *models.EventRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.QuakeID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(rec.Status)},
			{Key: "recorded_at", Value: []byte(rec.LastUpdated.Format(time.RFC3339))},
		},
	}, nil
}
