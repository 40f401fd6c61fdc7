// internal/service/analytics/metrics.go
package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "analytics",
		Name:      "orders_completed_total",
		Help:      "Orders that reached the completed status.",
	})

	orderRevenue = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "analytics",
		Name:      "order_revenue_total",
		Help:      "Gross revenue from completed orders.",
	}, []string{"currency"})

	refundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "analytics",
		Name:      "refunds_completed_total",
		Help:      "Refunds that reached the completed status.",
	})

	refundAmount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "analytics",
		Name:      "refund_amount_total",
		Help:      "Total amount returned to customers.",
	})

	eventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Subsystem: "analytics",
		Name:      "events_deduplicated_total",
		Help:      "Events dropped because their id was already processed.",
	})
)
