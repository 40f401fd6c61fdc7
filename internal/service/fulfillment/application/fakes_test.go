// internal/service/fulfillment/application/fakes_test.go
package application

import (
	"context"
	"fmt"
	"sync"

	"fulfillment/internal/service/fulfillment/domain"
	"fulfillment/internal/service/fulfillment/domain/port"
)

// fakeGateway scripts gateway outcomes per call and counts invocations.
// refundHook, when set, runs after the call is counted and outside the lock;
// tests use it to hold settlements in flight.
type fakeGateway struct {
	mu          sync.Mutex
	chargeErr   error
	refundErr   error
	chargeCalls int
	refundCalls int
	refundHook  func()
}

func (g *fakeGateway) Charge(_ context.Context, order *domain.Order) (*port.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeCalls++
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return &port.ChargeResult{TransactionID: fmt.Sprintf("TXN-%s-%d", order.OrderRef, g.chargeCalls)}, nil
}

func (g *fakeGateway) Refund(_ context.Context, refund *domain.Refund) (*port.ChargeResult, error) {
	g.mu.Lock()
	g.refundCalls++
	calls := g.refundCalls
	err := g.refundErr
	hook := g.refundHook
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &port.ChargeResult{TransactionID: fmt.Sprintf("REF-TXN-%s-%d", refund.RefundRef, calls)}, nil
}

func (g *fakeGateway) charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chargeCalls
}

func (g *fakeGateway) refunds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refundCalls
}

// fakeEvents records published domain events.
type fakeEvents struct {
	mu             sync.Mutex
	orderEvents    []*domain.OrderCompletedEvent
	refundEvents   []*domain.RefundCompletedEvent
	publishFailure error
}

func (e *fakeEvents) OrderCompleted(_ context.Context, ev *domain.OrderCompletedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publishFailure != nil {
		return e.publishFailure
	}
	e.orderEvents = append(e.orderEvents, ev)
	return nil
}

func (e *fakeEvents) RefundCompleted(_ context.Context, ev *domain.RefundCompletedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publishFailure != nil {
		return e.publishFailure
	}
	e.refundEvents = append(e.refundEvents, ev)
	return nil
}

func (e *fakeEvents) orderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.orderEvents)
}

func (e *fakeEvents) refundCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.refundEvents)
}

func (e *fakeEvents) orderEventIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.orderEvents))
	for _, ev := range e.orderEvents {
		ids = append(ids, ev.EventID)
	}
	return ids
}

func (e *fakeEvents) refundEventIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.refundEvents))
	for _, ev := range e.refundEvents {
		ids = append(ids, ev.EventID)
	}
	return ids
}

// fakeNotifier records notification kinds instead of enqueuing delayed tasks.
type fakeNotifier struct {
	mu    sync.Mutex
	kinds []domain.NotificationKind
}

func (n *fakeNotifier) Notify(_ context.Context, _ uint64, kind domain.NotificationKind, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

func (n *fakeNotifier) sent() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.NotificationKind(nil), n.kinds...)
}
