// internal/service/fulfillment/infrastructure/adapter/gateway_stub.go
package adapter

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/domain"
	"fulfillment/internal/service/fulfillment/domain/port"
)

// StubGateway simulates a third-party payment provider: bounded random
// latency, a configurable decline rate, and opaque transaction ids. It never
// touches order or refund state.
type StubGateway struct {
	chargeSuccessRate float64
	refundSuccessRate float64
	minLatency        time.Duration
	maxLatency        time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(context.Context, time.Duration) error
}

type StubGatewayOption func(*StubGateway)

// WithRandSource pins the RNG, which makes outcomes reproducible in tests.
func WithRandSource(src rand.Source) StubGatewayOption {
	return func(g *StubGateway) { g.rng = rand.New(src) }
}

// WithSleep replaces the latency wait. Tests pass a no-op.
func WithSleep(fn func(context.Context, time.Duration) error) StubGatewayOption {
	return func(g *StubGateway) { g.sleep = fn }
}

func NewStubGateway(chargeRate, refundRate float64, minLatency, maxLatency time.Duration, opts ...StubGatewayOption) *StubGateway {
	g := &StubGateway{
		chargeSuccessRate: chargeRate,
		refundSuccessRate: refundRate,
		minLatency:        minLatency,
		maxLatency:        maxLatency,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:             ctxSleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *StubGateway) Charge(ctx context.Context, order *domain.Order) (*port.ChargeResult, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}
	if !g.roll(g.chargeSuccessRate) {
		logger.Ctx(ctx).Warn().Str("order_ref", order.OrderRef).Msg("gateway declined charge")
		return nil, errors.Wrapf(domain.ErrGatewayDeclined, "charge for order %s", order.OrderRef)
	}
	return &port.ChargeResult{TransactionID: "TXN-" + opaqueID(16)}, nil
}

func (g *StubGateway) Refund(ctx context.Context, refund *domain.Refund) (*port.ChargeResult, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}
	if !g.roll(g.refundSuccessRate) {
		logger.Ctx(ctx).Warn().Str("refund_ref", refund.RefundRef).Msg("gateway declined refund")
		return nil, errors.Wrapf(domain.ErrGatewayDeclined, "refund %s", refund.RefundRef)
	}
	return &port.ChargeResult{TransactionID: "REF-" + opaqueID(12)}, nil
}

func (g *StubGateway) simulateLatency(ctx context.Context) error {
	if g.maxLatency <= 0 {
		return nil
	}
	d := g.minLatency
	if span := g.maxLatency - g.minLatency; span > 0 {
		g.mu.Lock()
		d += time.Duration(g.rng.Int63n(int64(span)))
		g.mu.Unlock()
	}
	return g.sleep(ctx, d)
}

func (g *StubGateway) roll(rate float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < rate
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func opaqueID(n int) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if n < len(id) {
		id = id[:n]
	}
	return id
}
