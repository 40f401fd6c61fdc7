// internal/service/fulfillment/domain/state.go
package domain

// OrderStatus is the authoritative lifecycle state of an order. Transitions
// outside validNext are rejected; completed and rollback are terminal for the
// fulfillment workflow (a refund never changes order status).
type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderReserved          OrderStatus = "reserved"
	OrderPaymentProcessing OrderStatus = "payment_processing"
	OrderCompleted         OrderStatus = "completed"
	OrderFailed            OrderStatus = "failed"
	OrderRollback          OrderStatus = "rollback"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:           {OrderReserved: true, OrderFailed: true},
	OrderReserved:          {OrderPaymentProcessing: true, OrderFailed: true, OrderRollback: true},
	OrderPaymentProcessing: {OrderCompleted: true, OrderFailed: true, OrderRollback: true},
	OrderFailed:            {OrderRollback: true},
	OrderCompleted:         {},
	OrderRollback:          {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}
