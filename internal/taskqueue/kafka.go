// internal/taskqueue/kafka.go
package taskqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"
)

// KafkaBroker maps each logical queue onto one Kafka topic
// (<prefix>.<queue>). Offsets are committed only after the handler returns,
// which is what gives tasks their at-least-once redelivery semantics: a
// worker crash between side effects and commit redelivers the envelope.
type KafkaBroker struct {
	brokers []string
	prefix  string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaBroker(brokers []string, prefix, groupID string) *KafkaBroker {
	return &KafkaBroker{
		brokers: brokers,
		prefix:  prefix,
		groupID: groupID,
		writers: make(map[string]*kafka.Writer),
	}
}

func (b *KafkaBroker) topic(queue string) string {
	return b.prefix + "." + queue
}

func (b *KafkaBroker) writer(queue string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.writers[queue]
	if !ok {
		w = mq.NewKafkaWriter(b.brokers, b.topic(queue))
		b.writers[queue] = w
	}
	return w
}

func (b *KafkaBroker) Publish(ctx context.Context, queue string, env *Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal task envelope")
	}
	// Key by chain id (task id for standalone tasks) so one chain's steps
	// stay on one partition.
	key := env.ChainID
	if key == "" {
		key = env.ID
	}
	return mq.ProduceMessage(ctx, b.writer(queue), []byte(key), raw)
}

func (b *KafkaBroker) Run(ctx context.Context, queue string, fn func(ctx context.Context, env *Envelope) error) error {
	reader := mq.NewKafkaReader(b.brokers, b.topic(queue), b.groupID+"."+queue)
	defer reader.Close()

	logger.Ctx(ctx).Info().Str("topic", b.topic(queue)).Msg("task consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not fetch task message, retrying")
			time.Sleep(time.Second)
			continue
		}

		carrier := mq.KafkaHeaderCarrier(msg.Headers)
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)

		var env Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Msg("malformed task envelope, skipping")
		} else if err := fn(msgCtx, &env); err != nil {
			// The envelope could not be handled or republished; leave the
			// offset uncommitted so the broker redelivers it.
			logger.Ctx(msgCtx).Error().Err(err).Str("task", env.Task.Name).Msg("task processing failed, leaving for redelivery")
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Msg("failed to commit task offset")
		}
	}
}

func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.writers {
		_ = w.Close()
	}
	return nil
}
