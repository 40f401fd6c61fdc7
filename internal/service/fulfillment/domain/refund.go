// internal/service/fulfillment/domain/refund.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundPending    RefundStatus = "pending"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
	RefundCancelled  RefundStatus = "cancelled"
)

type RefundType string

const (
	RefundPartial RefundType = "partial"
	RefundFull    RefundType = "full"
)

// refundNext encodes the refund state machine. failed -> processing covers
// in-budget task retries re-running the processor; failed -> pending is the
// operator-triggered retry re-entry and is never taken automatically.
var refundNext = map[RefundStatus]map[RefundStatus]bool{
	RefundPending:    {RefundProcessing: true, RefundCancelled: true, RefundFailed: true},
	RefundProcessing: {RefundCompleted: true, RefundFailed: true},
	RefundFailed:     {RefundProcessing: true, RefundPending: true},
	RefundCompleted:  {},
	RefundCancelled:  {},
}

// CanTransitionRefund reports whether a refund may move between two statuses.
func CanTransitionRefund(from, to RefundStatus) bool {
	return refundNext[from][to]
}

// ValidRefundStatus reports whether s names a known refund status.
func ValidRefundStatus(s RefundStatus) bool {
	_, ok := refundNext[s]
	return ok
}

// Refund is one refund request against an order. The sum of refund_amount
// over all completed refunds for an order must never exceed the order's
// total_amount.
type Refund struct {
	ID             uint64
	RefundRef      string // generated, unique
	OrderID        uint64
	OrderReference string
	CustomerID     string
	Type           RefundType
	Amount         decimal.Decimal
	OriginalAmount decimal.Decimal // order total snapshot at request time
	Reason         string
	Description    string
	Status         RefundStatus
	TransactionID  string
	ErrorMessage   string
	Metadata       map[string]string
	RequestedAt    time.Time
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
