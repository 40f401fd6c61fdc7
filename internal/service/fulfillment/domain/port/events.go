// internal/service/fulfillment/domain/port/events.go
package port

import (
	"context"

	"fulfillment/internal/service/fulfillment/domain"
)

// EventPublisher is the outbound port feeding the analytics projection.
// Fire-and-forget, at-least-once; consumers dedup on event id.
type EventPublisher interface {
	OrderCompleted(ctx context.Context, ev *domain.OrderCompletedEvent) error
	RefundCompleted(ctx context.Context, ev *domain.RefundCompletedEvent) error
}
