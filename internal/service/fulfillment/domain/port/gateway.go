// internal/service/fulfillment/domain/port/gateway.go
package port

import (
	"context"

	"fulfillment/internal/service/fulfillment/domain"
)

type ChargeResult struct {
	TransactionID string
}

// PaymentGateway is the outbound port to the payment provider. A declined
// charge returns an error wrapping domain.ErrGatewayDeclined; the gateway
// never mutates order or refund state itself.
type PaymentGateway interface {
	Charge(ctx context.Context, order *domain.Order) (*ChargeResult, error)
	Refund(ctx context.Context, refund *domain.Refund) (*ChargeResult, error)
}
