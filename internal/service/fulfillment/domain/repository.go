// internal/service/fulfillment/domain/repository.go
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store bundles the repositories behind one persistence boundary. Transaction
// hands fn a Store bound to a single local transaction: every saga step and
// the refund processor do their mutations through one such scope.
type Store interface {
	Orders() OrderRepository
	Products() ProductRepository
	Reservations() ReservationRepository
	Payments() PaymentRepository
	Refunds() RefundRepository
	Notifications() NotificationRepository

	Transaction(ctx context.Context, fn func(Store) error) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uint64) (*Order, error)
	FindByRef(ctx context.Context, ref string) (*Order, error)

	// LockByID loads the order under a row lock. Only meaningful inside a
	// Transaction; it serializes concurrent writers settling against the same
	// order's balance.
	LockByID(ctx context.Context, id uint64) (*Order, error)

	// UpdateStatus performs the guarded transition from -> to in one atomic
	// update. Returns ErrInvalidTransition when the order is no longer in
	// the from status (duplicate delivery, concurrent mutation).
	UpdateStatus(ctx context.Context, id uint64, from, to OrderStatus) error
}

type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// LockBySKU loads the product under a row lock scoped to the SKU. Only
	// meaningful inside a Transaction; it serializes concurrent writers to
	// the same SKU.
	LockBySKU(ctx context.Context, sku string) (*Product, error)

	// AdjustStock adds delta (negative to debit) to the SKU's stock. The
	// debit form must be called with the row already locked.
	AdjustStock(ctx context.Context, sku string, delta int) error
}

type ReservationRepository interface {
	Create(ctx context.Context, r *StockReservation) error
	FindByOrderAndSKU(ctx context.Context, orderID uint64, sku string) (*StockReservation, error)
	ListByOrder(ctx context.Context, orderID uint64, status ReservationStatus) ([]*StockReservation, error)
	UpdateStatus(ctx context.Context, id uint64, from, to ReservationStatus) error

	// CommitAll moves every reserved reservation of the order to committed
	// and reports how many rows changed.
	CommitAll(ctx context.Context, orderID uint64) (int, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error

	// LatestByOrder returns the most recent payment attempt for the order,
	// or ErrNotFound when no attempt exists.
	LatestByOrder(ctx context.Context, orderID uint64) (*Payment, error)
}

type RefundRepository interface {
	Create(ctx context.Context, r *Refund) error
	FindByID(ctx context.Context, id uint64) (*Refund, error)
	FindByRef(ctx context.Context, ref string) (*Refund, error)
	ListByOrder(ctx context.Context, orderID uint64) ([]*Refund, error)
	Update(ctx context.Context, r *Refund) error
	UpdateStatus(ctx context.Context, id uint64, from, to RefundStatus) error

	// SumCompletedByOrder sums refund amounts over completed refunds of the
	// order, excluding excludeID (pass 0 to exclude nothing). The exclusion
	// is what keeps a refund from being counted against itself during
	// re-validation.
	SumCompletedByOrder(ctx context.Context, orderID uint64, excludeID uint64) (decimal.Decimal, error)

	// List returns refunds newest-first, optionally filtered by status
	// (empty matches all) and capped at limit (0 means no cap).
	List(ctx context.Context, status RefundStatus, limit int) ([]*Refund, error)

	// Stats aggregates refund counts per status and the total completed
	// amount across all orders.
	Stats(ctx context.Context) (*RefundStats, error)
}

// RefundStats is the aggregate view over all refunds.
type RefundStats struct {
	ByStatus      map[RefundStatus]int64
	TotalRequests int64
	TotalRefunded decimal.Decimal
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	Update(ctx context.Context, n *Notification) error
}
