// internal/service/fulfillment/domain/event.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Domain events published to the events topic after the owning transaction
// commits. Delivery is at-least-once; every event carries a unique EventID so
// consumers can dedup.

const (
	EventOrderCompleted  = "OrderCompleted"
	EventRefundCompleted = "RefundCompleted"
)

type OrderCompletedEvent struct {
	EventID     string          `json:"event_id"`
	OrderID     uint64          `json:"order_id"`
	OrderRef    string          `json:"order_ref"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	CompletedAt time.Time       `json:"completed_at"`
}

type RefundCompletedEvent struct {
	EventID     string          `json:"event_id"`
	RefundID    uint64          `json:"refund_id"`
	RefundRef   string          `json:"refund_ref"`
	OrderRef    string          `json:"order_ref"`
	CustomerID  string          `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        RefundType      `json:"type"`
	ProcessedAt time.Time       `json:"processed_at"`
}
