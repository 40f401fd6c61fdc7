// internal/service/fulfillment/application/orders.go
package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/domain"
)

// OrderService is the entry point that accepts a new order and kicks off its
// fulfillment workflow.
type OrderService struct {
	store        domain.Store
	orchestrator *SagaOrchestrator
	tracer       trace.Tracer
}

func NewOrderService(store domain.Store, orchestrator *SagaOrchestrator) *OrderService {
	return &OrderService{
		store:        store,
		orchestrator: orchestrator,
		tracer:       otel.Tracer("fulfillment.orders"),
	}
}

type CreateOrderRequest struct {
	OrderRef     string
	CustomerID   string
	CustomerName string
	ProductSKU   string
	ProductName  string
	Quantity     int
	UnitPrice    decimal.Decimal
	Currency     string
	OrderDate    time.Time
}

// CreateOrder persists a pending order and enqueues its fulfillment chain.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Create")
	defer span.End()
	span.SetAttributes(attribute.String("order.ref", req.OrderRef))

	if req.OrderDate.IsZero() {
		req.OrderDate = time.Now().UTC()
	}
	order, err := domain.NewOrder(req.OrderRef, req.CustomerID, req.CustomerName,
		req.ProductSKU, req.ProductName, req.Quantity, req.UnitPrice, req.Currency, req.OrderDate)
	if err != nil {
		return nil, err
	}
	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, err
	}

	if err := s.orchestrator.StartWorkflow(ctx, order.ID); err != nil {
		// The order row exists; an operator can restart the workflow. Do not
		// undo the creation.
		logger.Ctx(ctx).Error().Err(err).Str("order_ref", order.OrderRef).Msg("failed to start workflow")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_ref", order.OrderRef).
		Str("total", order.TotalAmount.String()).
		Msg("order created, workflow started")
	return order, nil
}

// Get returns one order by its business reference.
func (s *OrderService) Get(ctx context.Context, orderRef string) (*domain.Order, error) {
	return s.store.Orders().FindByRef(ctx, orderRef)
}
