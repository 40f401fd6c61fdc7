// internal/service/fulfillment/domain/port/notifier.go
package port

import (
	"context"

	"fulfillment/internal/service/fulfillment/domain"
)

// Notifier is the outbound port for order notifications. Implementations
// enqueue a delayed send task so the triggering transaction commits before
// anything is delivered.
type Notifier interface {
	Notify(ctx context.Context, orderID uint64, kind domain.NotificationKind, channel, recipient string) error
}
