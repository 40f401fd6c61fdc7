// internal/service/fulfillment/domain/errors.go
package domain

import "errors"

// The error taxonomy the whole system is built around. Handlers and the task
// queue branch on these with errors.Is; infrastructure wraps but never
// replaces them.
var (
	// ErrNotFound: the referenced order/refund does not exist. Logged, the
	// task ends, no retry.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOrder: order creation input failed validation.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidTransition: a status precondition was violated, fatal to the
	// attempt.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientStock: business rejection; the order is set to failed
	// and the saga chain aborts.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrGatewayDeclined: the payment/refund gateway declined. Retried up to
	// the attempt budget, then terminal.
	ErrGatewayDeclined = errors.New("gateway declined")

	// ErrOrderNotRefundable: refunds may only be requested against a
	// completed order.
	ErrOrderNotRefundable = errors.New("order is not eligible for refund")

	// ErrInvalidRefundAmount: refund amounts must be strictly positive.
	ErrInvalidRefundAmount = errors.New("refund amount must be positive")

	// ErrAmountExceedsRefundable: requested refund exceeds the remaining
	// refundable balance. Rejected synchronously at request time, and again
	// at settlement when a sibling refund consumed the balance first.
	ErrAmountExceedsRefundable = errors.New("refund amount exceeds refundable amount")

	// ErrFullRefundMismatch: a full refund's amount must equal the currently
	// refundable amount.
	ErrFullRefundMismatch = errors.New("full refund amount must equal the refundable amount")

	// ErrPaymentNotCompleted: finalize found no completed payment; a
	// defensive check against broken step ordering.
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrInvalidRefundStatus: a refund list filter named an unknown status.
	ErrInvalidRefundStatus = errors.New("unknown refund status")
)
