// Package events publishes ledger events after the database transaction that produced them
// has committed.
package events

import (
	"context"
	"encoding/json"
	"time"

	"feepay-backend/internal/logger"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	TransactionCompleted EventType = "transaction.completed"
	TransactionFailed    EventType = "transaction.failed"
	FeeBroadcast         EventType = "fee.broadcast"
)

// Event is one ledger event. Key is the partitioning key: the wallet id for transaction
// events and the fee structure id for broadcasts.
type Event struct {
	Type       EventType `json:"event_type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now()
		}
		value, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Key),
			Value: value,
			Time:  ev.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
			},
		})
	}

	logger.ExternalServiceCall("kafka", "WriteMessages", "count", len(msgs))
	err := p.writer.WriteMessages(ctx, msgs...)
	logger.ExternalServiceResult("kafka", "WriteMessages", err)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
func (NopPublisher) Close() error                             { return nil }
