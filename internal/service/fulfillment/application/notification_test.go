// internal/service/fulfillment/application/notification_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/service/fulfillment/domain"
	"fulfillment/internal/taskqueue"
)

func TestNotificationSendRecordsAuditRow(t *testing.T) {
	store := newMemStore()
	svc := NewNotificationService(store)

	order, err := domain.NewOrder("ORD-4001", "CUST-2", "Alex Kim", "SKU-PEN", "Pen", 1,
		decimal.RequireFromString("2.50"), "USD", time.Now().UTC())
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if err := store.Orders().Create(context.Background(), order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	payload := mustMarshal(NotificationTaskPayload{OrderID: order.ID, Kind: domain.NotificationSuccess, Channel: "log"})
	if err := svc.HandleSend(context.Background(), payload); err != nil {
		t.Fatalf("HandleSend: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(store.notifications))
	}
	for _, n := range store.notifications {
		if n.Status != domain.NotificationSent || n.SentAt == nil {
			t.Errorf("notification = %+v, want sent with timestamp", n)
		}
		if n.OrderReference != order.OrderRef || n.Kind != domain.NotificationSuccess {
			t.Errorf("notification = %+v, want order ref and success kind", n)
		}
	}
}

func TestNotificationMissingOrderEndsTask(t *testing.T) {
	svc := NewNotificationService(newMemStore())

	payload := mustMarshal(NotificationTaskPayload{OrderID: 99, Kind: domain.NotificationFailed, Channel: "log"})
	err := svc.HandleSend(context.Background(), payload)
	if !taskqueue.IsNoRetry(err) {
		t.Fatalf("err = %v, want NoRetry-wrapped", err)
	}
}
