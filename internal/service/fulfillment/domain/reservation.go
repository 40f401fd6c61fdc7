// internal/service/fulfillment/domain/reservation.go
package domain

import "time"

// ReservationStatus lifecycle: reserved -> committed (finalize, terminal) or
// reserved -> released (rollback, stock credited back). A committed
// reservation is never released.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// ReservationTTL bounds how long a reservation may sit unfinalized before an
// operator sweep can reclaim it.
const ReservationTTL = 15 * time.Minute

// StockReservation records a stock debit taken on behalf of one order.
// One row per (order, sku): the reserve step is keyed on that pair so
// re-delivery of the task never double-debits.
type StockReservation struct {
	ID         uint64
	OrderID    uint64
	ProductSKU string
	Quantity   int
	Status     ReservationStatus
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
