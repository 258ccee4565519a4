package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"labgate/internal/platform/kafka/producer"
)

// KafkaStore publishes audit events to a Kafka topic. Listing is not
// supported; deployments that need queries pair it with a queryable store.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaStore constructs a Kafka-backed audit sink.
func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.AdminID),
		Value: value,
		Headers: map[string]string{
			"action": event.Action,
		},
	})
}

func (s *KafkaStore) ListByAdmin(context.Context, string) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit sink does not support listing")
}
