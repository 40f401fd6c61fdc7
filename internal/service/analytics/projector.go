// internal/service/analytics/projector.go
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/pkg/redis"
	"fulfillment/internal/service/fulfillment/domain"
)

const (
	// SpendLeaderboardKey is the sorted set of customer ids scored by net
	// spend (order totals minus completed refunds).
	SpendLeaderboardKey = "analytics:customer_spend"

	dedupPrefix = "analytics:event:"
	dedupTTL    = 7 * 24 * time.Hour

	// Marker states for applied events. A claim stuck at applying means the
	// attempt died before finishing; the redelivered copy runs again.
	markApplying = "applying"
	markDone     = "done"
)

// stateStore is the slice of the Redis client the projector needs: event
// markers and the leaderboard.
type stateStore interface {
	SetNXValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	ZIncrBy(ctx context.Context, key, member string, delta float64) error
}

type eventEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Projector consumes the events topic and maintains the analytics view:
// Prometheus counters plus the Redis spend leaderboard. The topic is
// at-least-once, so every event is claimed by id before it is applied.
type Projector struct {
	reader *kafka.Reader
	rdb    stateStore
}

func NewProjector(brokers []string, topic string, rdb *redis.Client) *Projector {
	return &Projector{
		reader: mq.NewKafkaReader(brokers, topic, "analytics-projector"),
		rdb:    rdb,
	}
}

// Run consumes until ctx is cancelled. Failed events are not committed and
// come back on redelivery.
func (p *Projector) Run(ctx context.Context) error {
	defer p.reader.Close()

	for {
		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		carrier := mq.KafkaHeaderCarrier(msg.Headers)
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)

		if err := p.handle(msgCtx, msg.Value); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Msg("projection failed, leaving event uncommitted")
			continue
		}
		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Msg("commit failed")
		}
	}
}

func (p *Projector) handle(ctx context.Context, raw []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Malformed events never become parseable; log and drop.
		logger.Ctx(ctx).Error().Err(err).Msg("dropping malformed event")
		return nil
	}

	switch env.Type {
	case domain.EventOrderCompleted:
		var ev domain.OrderCompletedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("dropping malformed OrderCompleted payload")
			return nil
		}
		return p.applyOnce(ctx, ev.EventID, func() error { return p.applyOrderCompleted(ctx, &ev) })

	case domain.EventRefundCompleted:
		var ev domain.RefundCompletedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("dropping malformed RefundCompleted payload")
			return nil
		}
		return p.applyOnce(ctx, ev.EventID, func() error { return p.applyRefundCompleted(ctx, &ev) })

	default:
		logger.Ctx(ctx).Debug().Str("type", env.Type).Msg("ignoring unknown event type")
		return nil
	}
}

// applyOnce runs apply at most once per event id. The marker moves through
// applying -> done; a marker stuck at applying (failed apply, failed final
// write) does not block redelivery, so the projection never loses an event
// to a half-finished attempt. Messages are keyed by order ref, so duplicates
// of one event arrive sequentially on the same partition.
func (p *Projector) applyOnce(ctx context.Context, eventID string, apply func() error) error {
	key := dedupPrefix + eventID
	won, err := p.rdb.SetNXValue(ctx, key, markApplying, dedupTTL)
	if err != nil {
		return err
	}
	if !won {
		state, err := p.rdb.Get(ctx, key)
		if err != nil {
			return err
		}
		if state == markDone {
			eventsSkipped.Inc()
			return nil
		}
	}
	if err := apply(); err != nil {
		return err
	}
	return p.rdb.Set(ctx, key, markDone, dedupTTL)
}

func (p *Projector) applyOrderCompleted(ctx context.Context, ev *domain.OrderCompletedEvent) error {
	amount, _ := ev.TotalAmount.Float64()
	ordersCompleted.Inc()
	orderRevenue.WithLabelValues(ev.Currency).Add(amount)

	if err := p.rdb.ZIncrBy(ctx, SpendLeaderboardKey, ev.CustomerID, amount); err != nil {
		return err
	}
	logger.Ctx(ctx).Info().
		Str("order_ref", ev.OrderRef).
		Str("customer_id", ev.CustomerID).
		Msg("projected order completion")
	return nil
}

func (p *Projector) applyRefundCompleted(ctx context.Context, ev *domain.RefundCompletedEvent) error {
	amount, _ := ev.Amount.Float64()
	refundsCompleted.Inc()
	refundAmount.Add(amount)

	if err := p.rdb.ZIncrBy(ctx, SpendLeaderboardKey, ev.CustomerID, -amount); err != nil {
		return err
	}
	logger.Ctx(ctx).Info().
		Str("refund_ref", ev.RefundRef).
		Str("customer_id", ev.CustomerID).
		Msg("projected refund completion")
	return nil
}
