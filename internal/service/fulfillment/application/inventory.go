// internal/service/fulfillment/application/inventory.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/domain"
)

// seedStock is the initial quantity given to a product the first time an
// order references its SKU.
const seedStock = 1000

// InventoryLedger owns stock debit/credit atomicity. Every method expects a
// Store already bound to the caller's transaction, so the debit and the
// reservation row always commit (or roll back) together with the order's
// status change.
type InventoryLedger struct{}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{}
}

// Reserve debits stock for the order and records a reserved
// StockReservation. Idempotent per (order, sku): a redelivered task finds the
// existing reservation and does nothing.
func (l *InventoryLedger) Reserve(ctx context.Context, s domain.Store, order *domain.Order) error {
	existing, err := s.Reservations().FindByOrderAndSKU(ctx, order.ID, order.ProductSKU)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if existing != nil {
		logger.Ctx(ctx).Info().
			Str("order_ref", order.OrderRef).
			Str("sku", order.ProductSKU).
			Msg("reservation already exists, skipping debit")
		return nil
	}

	product, err := l.lockOrSeedProduct(ctx, s, order)
	if err != nil {
		return err
	}

	if product.StockQuantity < order.Quantity {
		return fmt.Errorf("sku %s: available %d, required %d: %w",
			product.SKU, product.StockQuantity, order.Quantity, domain.ErrInsufficientStock)
	}

	if err := s.Products().AdjustStock(ctx, product.SKU, -order.Quantity); err != nil {
		return err
	}

	return s.Reservations().Create(ctx, &domain.StockReservation{
		OrderID:    order.ID,
		ProductSKU: order.ProductSKU,
		Quantity:   order.Quantity,
		Status:     domain.ReservationReserved,
		ExpiresAt:  time.Now().Add(domain.ReservationTTL),
	})
}

// Commit moves the order's reserved reservations to committed. Stock was
// already debited at reserve time, so quantities are untouched.
func (l *InventoryLedger) Commit(ctx context.Context, s domain.Store, orderID uint64) error {
	_, err := s.Reservations().CommitAll(ctx, orderID)
	return err
}

// Release credits stock back for every reservation still in reserved state
// and marks it released. Safe to call repeatedly: committed or already
// released reservations are never touched.
func (l *InventoryLedger) Release(ctx context.Context, s domain.Store, orderID uint64) error {
	reservations, err := s.Reservations().ListByOrder(ctx, orderID, domain.ReservationReserved)
	if err != nil {
		return err
	}
	for _, r := range reservations {
		if err := s.Products().AdjustStock(ctx, r.ProductSKU, r.Quantity); err != nil {
			return err
		}
		if err := s.Reservations().UpdateStatus(ctx, r.ID, domain.ReservationReserved, domain.ReservationReleased); err != nil {
			return err
		}
	}
	return nil
}

// lockOrSeedProduct takes the per-SKU row lock, creating the product with
// seed stock the first time a SKU is seen (import data carries no catalog).
func (l *InventoryLedger) lockOrSeedProduct(ctx context.Context, s domain.Store, order *domain.Order) (*domain.Product, error) {
	product, err := s.Products().LockBySKU(ctx, order.ProductSKU)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	product = &domain.Product{
		SKU:           order.ProductSKU,
		Name:          order.ProductName,
		Price:         order.UnitPrice,
		StockQuantity: seedStock,
	}
	if err := s.Products().Create(ctx, product); err != nil {
		return nil, err
	}
	return s.Products().LockBySKU(ctx, order.ProductSKU)
}
