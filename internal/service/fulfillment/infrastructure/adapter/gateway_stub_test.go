// internal/service/fulfillment/infrastructure/adapter/gateway_stub_test.go
package adapter

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/service/fulfillment/domain"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testOrder() *domain.Order {
	return &domain.Order{OrderRef: "ORD-1", TotalAmount: decimal.NewFromInt(50), Currency: "USD"}
}

func TestStubGatewayCharge(t *testing.T) {
	approve := NewStubGateway(1.0, 1.0, 0, 0, WithSleep(noSleep), WithRandSource(rand.NewSource(1)))
	result, err := approve.Charge(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if !strings.HasPrefix(result.TransactionID, "TXN-") || len(result.TransactionID) != len("TXN-")+16 {
		t.Errorf("transaction id = %q, want TXN- prefix with 16 hex chars", result.TransactionID)
	}

	decline := NewStubGateway(0.0, 0.0, 0, 0, WithSleep(noSleep), WithRandSource(rand.NewSource(1)))
	if _, err := decline.Charge(context.Background(), testOrder()); !errors.Is(err, domain.ErrGatewayDeclined) {
		t.Errorf("err = %v, want ErrGatewayDeclined", err)
	}
}

func TestStubGatewayRefund(t *testing.T) {
	refund := &domain.Refund{RefundRef: "REF-ORD-1-ABC123", Amount: decimal.NewFromInt(10)}

	approve := NewStubGateway(1.0, 1.0, 0, 0, WithSleep(noSleep), WithRandSource(rand.NewSource(7)))
	result, err := approve.Refund(context.Background(), refund)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if !strings.HasPrefix(result.TransactionID, "REF-") || len(result.TransactionID) != len("REF-")+12 {
		t.Errorf("transaction id = %q, want REF- prefix with 12 hex chars", result.TransactionID)
	}

	decline := NewStubGateway(1.0, 0.0, 0, 0, WithSleep(noSleep), WithRandSource(rand.NewSource(7)))
	if _, err := decline.Refund(context.Background(), refund); !errors.Is(err, domain.ErrGatewayDeclined) {
		t.Errorf("err = %v, want ErrGatewayDeclined", err)
	}
}

func TestStubGatewayLatencyBounds(t *testing.T) {
	var slept time.Duration
	capture := func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	g := NewStubGateway(1.0, 1.0, time.Second, 3*time.Second, WithSleep(capture), WithRandSource(rand.NewSource(42)))
	for i := 0; i < 50; i++ {
		slept = 0
		if _, err := g.Charge(context.Background(), testOrder()); err != nil {
			t.Fatalf("Charge #%d: %v", i, err)
		}
		if slept < time.Second || slept >= 3*time.Second {
			t.Fatalf("latency = %v, want in [1s, 3s)", slept)
		}
	}
}

func TestStubGatewayHonorsContextDuringLatency(t *testing.T) {
	g := NewStubGateway(1.0, 1.0, time.Minute, 2*time.Minute, WithRandSource(rand.NewSource(3)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Charge(ctx, testOrder()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
