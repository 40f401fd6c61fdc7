// internal/service/fulfillment/domain/payment.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// Payment is one charge attempt. A retried ProcessPayment step creates a new
// row; only the latest row matters for finalization, earlier failed attempts
// are retained for audit.
type Payment struct {
	ID            uint64
	OrderID       uint64
	Amount        decimal.Decimal
	Currency      string
	Status        PaymentStatus
	TransactionID string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
