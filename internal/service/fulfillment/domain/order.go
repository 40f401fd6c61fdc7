// internal/service/fulfillment/domain/order.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root. StockReservation, Payment and Refund rows all
// belong to exactly one order; they are append-only audit trails in practice.
type Order struct {
	ID           uint64
	OrderRef     string // business order reference, unique
	CustomerID   string
	CustomerName string
	ProductSKU   string
	ProductName  string
	Quantity     int
	UnitPrice    decimal.Decimal
	Currency     string
	TotalAmount  decimal.Decimal // fixed at creation, never recomputed
	Status       OrderStatus
	OrderDate    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrder builds a pending order. TotalAmount is computed once here and is
// never touched again by downstream steps.
func NewOrder(orderRef, customerID, customerName, sku, productName string, quantity int, unitPrice decimal.Decimal, currency string, orderDate time.Time) (*Order, error) {
	if orderRef == "" || customerID == "" || sku == "" {
		return nil, ErrInvalidOrder
	}
	if quantity <= 0 || unitPrice.IsNegative() {
		return nil, ErrInvalidOrder
	}

	now := time.Now().UTC()
	return &Order{
		OrderRef:     orderRef,
		CustomerID:   customerID,
		CustomerName: customerName,
		ProductSKU:   sku,
		ProductName:  productName,
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		Currency:     currency,
		TotalAmount:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Status:       OrderPending,
		OrderDate:    orderDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Refundable reports whether a refund request may be made against this order.
func (o *Order) Refundable() bool {
	return o.Status == OrderCompleted
}
