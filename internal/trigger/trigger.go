// Package trigger carries "run the cleanup worker once" requests over Kafka.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"assetstore/internal/models"
)

const consumerGroup = "asset-cleanup-worker"

// Message asks for one worker run. Zero options mean the configured defaults.
type Message struct {
	BatchSize   int       `json:"batch_size,omitempty"`
	MaxAttempts int       `json:"max_attempts,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func (m Message) Options() models.CleanupOptions {
	return models.CleanupOptions{BatchSize: m.BatchSize, MaxAttempts: m.MaxAttempts}
}

func Encode(m Message) ([]byte, error) {
	if m.RequestedAt.IsZero() {
		m.RequestedAt = time.Now().UTC()
	}
	return json.Marshal(m)
}

func Decode(b []byte) (Message, error) {
	var m Message
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("trigger.Decode: %w", err)
	}
	return m, nil
}

// Publisher writes trigger messages. A nil Publisher drops them.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(broker, topic string) *Publisher {
	if broker == "" || topic == "" {
		return nil
	}
	return &Publisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

func (p *Publisher) Publish(ctx context.Context, m Message) error {
	if p == nil {
		return nil
	}
	value, err := Encode(m)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
		return fmt.Errorf("trigger.Publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// Handler runs once per received trigger.
type Handler func(ctx context.Context, m Message) error

// Consume reads trigger messages until ctx is cancelled. Handler errors are
// logged and the loop continues.
func Consume(ctx context.Context, broker, topic string, handle Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: consumerGroup,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.Errorf("error reading trigger message: %v", err)
			continue
		}

		m, err := Decode(msg.Value)
		if err != nil {
			log.Errorf("skipping malformed trigger message at offset %d: %v", msg.Offset, err)
			continue
		}
		if err := handle(ctx, m); err != nil {
			log.Errorf("error handling trigger message: %v", err)
		}
	}
}
