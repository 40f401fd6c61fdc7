// internal/service/fulfillment/application/memstore_test.go
package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"fulfillment/internal/service/fulfillment/domain"
)

// memStore is an in-memory domain.Store for exercising the application layer
// without MySQL. Transitions are guarded exactly like the real store; the
// single mutex stands in for row locking, and txMu serializes whole
// transactions the way competing row locks would.
type memStore struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	nextID        uint64
	orders        map[uint64]*domain.Order
	products      map[string]*domain.Product
	reservations  map[uint64]*domain.StockReservation
	payments      map[uint64]*domain.Payment
	refunds       map[uint64]*domain.Refund
	notifications map[uint64]*domain.Notification
}

func newMemStore() *memStore {
	return &memStore{
		orders:        make(map[uint64]*domain.Order),
		products:      make(map[string]*domain.Product),
		reservations:  make(map[uint64]*domain.StockReservation),
		payments:      make(map[uint64]*domain.Payment),
		refunds:       make(map[uint64]*domain.Refund),
		notifications: make(map[uint64]*domain.Notification),
	}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Orders() domain.OrderRepository               { return &memOrders{s} }
func (s *memStore) Products() domain.ProductRepository           { return &memProducts{s} }
func (s *memStore) Reservations() domain.ReservationRepository   { return &memReservations{s} }
func (s *memStore) Payments() domain.PaymentRepository           { return &memPayments{s} }
func (s *memStore) Refunds() domain.RefundRepository             { return &memRefunds{s} }
func (s *memStore) Notifications() domain.NotificationRepository { return &memNotifications{s} }

// Transaction runs fn against the same store, one transaction at a time.
// Partial-failure rollback is not modeled; tests assert on the happy-path and
// guarded-transition behavior.
func (s *memStore) Transaction(_ context.Context, fn func(domain.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

type memOrders struct{ s *memStore }

func (r *memOrders) Create(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.id()
	cp := *o
	r.s.orders[o.ID] = &cp
	return nil
}

func (r *memOrders) FindByID(_ context.Context, id uint64) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrders) FindByRef(_ context.Context, ref string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.OrderRef == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memOrders) LockByID(ctx context.Context, id uint64) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrders) UpdateStatus(_ context.Context, id uint64, from, to domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(from, to) || o.Status != from {
		return fmt.Errorf("order %d: %s -> %s: %w", id, o.Status, to, domain.ErrInvalidTransition)
	}
	o.Status = to
	return nil
}

type memProducts struct{ s *memStore }

func (r *memProducts) Create(_ context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	cp := *p
	r.s.products[p.SKU] = &cp
	return nil
}

func (r *memProducts) FindBySKU(_ context.Context, sku string) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[sku]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProducts) LockBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return r.FindBySKU(ctx, sku)
}

func (r *memProducts) AdjustStock(_ context.Context, sku string, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[sku]
	if !ok {
		return domain.ErrNotFound
	}
	if p.StockQuantity+delta < 0 {
		return fmt.Errorf("sku %s: adjust by %d: %w", sku, delta, domain.ErrInsufficientStock)
	}
	p.StockQuantity += delta
	return nil
}

type memReservations struct{ s *memStore }

func (r *memReservations) Create(_ context.Context, res *domain.StockReservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res.ID = r.s.id()
	cp := *res
	r.s.reservations[res.ID] = &cp
	return nil
}

func (r *memReservations) FindByOrderAndSKU(_ context.Context, orderID uint64, sku string) (*domain.StockReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range r.s.reservations {
		if res.OrderID == orderID && res.ProductSKU == sku {
			cp := *res
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memReservations) ListByOrder(_ context.Context, orderID uint64, status domain.ReservationStatus) ([]*domain.StockReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.StockReservation
	for _, res := range r.s.reservations {
		if res.OrderID == orderID && res.Status == status {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memReservations) UpdateStatus(_ context.Context, id uint64, from, to domain.ReservationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if res.Status != from {
		return fmt.Errorf("reservation %d in status %s: %w", id, res.Status, domain.ErrInvalidTransition)
	}
	res.Status = to
	return nil
}

func (r *memReservations) CommitAll(_ context.Context, orderID uint64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, res := range r.s.reservations {
		if res.OrderID == orderID && res.Status == domain.ReservationReserved {
			res.Status = domain.ReservationCommitted
			n++
		}
	}
	return n, nil
}

type memPayments struct{ s *memStore }

func (r *memPayments) Create(_ context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r *memPayments) Update(_ context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r *memPayments) LatestByOrder(_ context.Context, orderID uint64) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.Payment
	for _, p := range r.s.payments {
		if p.OrderID == orderID && (latest == nil || p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

type memRefunds struct{ s *memStore }

func (r *memRefunds) Create(_ context.Context, ref *domain.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref.ID = r.s.id()
	cp := *ref
	r.s.refunds[ref.ID] = &cp
	return nil
}

func (r *memRefunds) FindByID(_ context.Context, id uint64) (*domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.refunds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ref
	return &cp, nil
}

func (r *memRefunds) FindByRef(_ context.Context, refRef string) (*domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ref := range r.s.refunds {
		if ref.RefundRef == refRef {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memRefunds) ListByOrder(_ context.Context, orderID uint64) ([]*domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Refund
	for _, ref := range r.s.refunds {
		if ref.OrderID == orderID {
			cp := *ref
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRefunds) Update(_ context.Context, ref *domain.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.refunds[ref.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *ref
	r.s.refunds[ref.ID] = &cp
	return nil
}

func (r *memRefunds) UpdateStatus(_ context.Context, id uint64, from, to domain.RefundStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.refunds[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransitionRefund(from, to) || ref.Status != from {
		return fmt.Errorf("refund %d: %s -> %s: %w", id, ref.Status, to, domain.ErrInvalidTransition)
	}
	ref.Status = to
	return nil
}

func (r *memRefunds) SumCompletedByOrder(_ context.Context, orderID, excludeID uint64) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, ref := range r.s.refunds {
		if ref.OrderID == orderID && ref.Status == domain.RefundCompleted && ref.ID != excludeID {
			sum = sum.Add(ref.Amount)
		}
	}
	return sum, nil
}

func (r *memRefunds) List(_ context.Context, status domain.RefundStatus, limit int) ([]*domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Refund
	for _, ref := range r.s.refunds {
		if status != "" && ref.Status != status {
			continue
		}
		cp := *ref
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRefunds) Stats(_ context.Context) (*domain.RefundStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &domain.RefundStats{
		ByStatus:      make(map[domain.RefundStatus]int64),
		TotalRefunded: decimal.Zero,
	}
	for _, ref := range r.s.refunds {
		stats.ByStatus[ref.Status]++
		stats.TotalRequests++
		if ref.Status == domain.RefundCompleted {
			stats.TotalRefunded = stats.TotalRefunded.Add(ref.Amount)
		}
	}
	return stats, nil
}

type memNotifications struct{ s *memStore }

func (r *memNotifications) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.id()
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r *memNotifications) Update(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[n.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}
