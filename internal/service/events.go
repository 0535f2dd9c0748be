package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	EventStatusChanged = "membership.status_changed"
	EventPaymentPaid   = "membership.payment_paid"
)

type Event struct {
	Type           string                 `json:"type"`
	MembershipUUID string                 `json:"membership_uuid"`
	UserID         uint                   `json:"user_id"`
	Data           map[string]interface{} `json:"data,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// EventPublisher emits domain events after a transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// KafkaPublisher writes events keyed by membership UUID so one membership's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            3,
			WriteTimeout:           5 * time.Second,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.MembershipUUID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// publishAll never fails the caller; the state change is already committed.
func publishAll(ctx context.Context, p EventPublisher, events ...Event) {
	if p == nil {
		return
	}
	for _, ev := range events {
		if err := p.Publish(ctx, ev); err != nil {
			slog.Warn("publish event failed", "type", ev.Type, "membership", ev.MembershipUUID, "err", err)
		}
	}
}
