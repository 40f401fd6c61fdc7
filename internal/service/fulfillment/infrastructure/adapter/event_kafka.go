// internal/service/fulfillment/infrastructure/adapter/event_kafka.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/fulfillment/domain"
)

// eventEnvelope is the wire format on the events topic. Consumers switch on
// Type and dedup on the event id inside the payload.
type eventEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// KafkaEventPublisher implements port.EventPublisher over a single events
// topic, keyed by order reference so one order's events stay ordered.
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: mq.NewKafkaWriter(brokers, topic)}
}

func (p *KafkaEventPublisher) OrderCompleted(ctx context.Context, ev *domain.OrderCompletedEvent) error {
	return p.publish(ctx, domain.EventOrderCompleted, ev.OrderRef, ev)
}

func (p *KafkaEventPublisher) RefundCompleted(ctx context.Context, ev *domain.RefundCompletedEvent) error {
	return p.publish(ctx, domain.EventRefundCompleted, ev.OrderRef, ev)
}

func (p *KafkaEventPublisher) publish(ctx context.Context, typ, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal %s payload", typ)
	}
	value, err := json.Marshal(eventEnvelope{Type: typ, Payload: raw})
	if err != nil {
		return errors.Wrapf(err, "marshal %s envelope", typ)
	}
	return errors.Wrapf(mq.ProduceMessage(ctx, p.writer, []byte(key), value), "publish %s", typ)
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
