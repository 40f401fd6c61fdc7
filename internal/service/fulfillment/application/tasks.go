// internal/service/fulfillment/application/tasks.go
package application

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"fulfillment/internal/service/fulfillment/domain"
)

// Queue and task names shared by the orchestrator, the refund processor and
// the worker binary.
const (
	QueueOrders        = "orders"
	QueueRefunds       = "refunds"
	QueueNotifications = "notifications"

	TaskReserveStock     = "order.reserve_stock"
	TaskProcessPayment   = "order.process_payment"
	TaskFinalizeOrder    = "order.finalize"
	TaskRollbackOrder    = "order.rollback"
	TaskProcessRefund    = "refund.process"
	TaskSendNotification = "notification.send"
)

// Per-step execution budgets.
const (
	reserveTimeout  = 60 * time.Second
	paymentTimeout  = 120 * time.Second
	finalizeTimeout = 60 * time.Second
	rollbackTimeout = 60 * time.Second
	refundTimeout   = 120 * time.Second
	notifyTimeout   = 60 * time.Second

	stepAttempts = 3

	// notifyDelay gives the triggering transaction time to commit before the
	// notification task can observe the order.
	notifyDelay = 5 * time.Second
)

type OrderTaskPayload struct {
	OrderID uint64 `json:"order_id"`
}

type RefundTaskPayload struct {
	RefundID uint64 `json:"refund_id"`
}

type NotificationTaskPayload struct {
	OrderID   uint64                  `json:"order_id"`
	Kind      domain.NotificationKind `json:"kind"`
	Channel   string                  `json:"channel"`
	Recipient string                  `json:"recipient,omitempty"`
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err) // payload structs above cannot fail to marshal
	}
	return raw
}

// randomRef yields n uppercase hex characters for TXN-/REF- references.
func randomRef(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
