// internal/service/fulfillment/infrastructure/store.go
package infrastructure

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfillment/internal/service/fulfillment/domain"
)

// GormStore is the MySQL-backed implementation of domain.Store. A store
// returned inside Transaction is bound to that transaction, so repository
// calls made through it share one local transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Orders() domain.OrderRepository               { return &orderRepo{db: s.db} }
func (s *GormStore) Products() domain.ProductRepository           { return &productRepo{db: s.db} }
func (s *GormStore) Reservations() domain.ReservationRepository   { return &reservationRepo{db: s.db} }
func (s *GormStore) Payments() domain.PaymentRepository           { return &paymentRepo{db: s.db} }
func (s *GormStore) Refunds() domain.RefundRepository             { return &refundRepo{db: s.db} }
func (s *GormStore) Notifications() domain.NotificationRepository { return &notificationRepo{db: s.db} }

func (s *GormStore) Transaction(ctx context.Context, fn func(domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func notFound(err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// ---- orders ----

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	m := toOrderModel(o)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create order")
	}
	o.ID = m.ID
	o.CreatedAt = m.CreatedAt
	o.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var m OrderModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainOrder(&m), nil
}

func (r *orderRepo) FindByRef(ctx context.Context, ref string) (*domain.Order, error) {
	var m OrderModel
	if err := r.db.WithContext(ctx).Where("order_ref = ?", ref).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainOrder(&m), nil
}

func (r *orderRepo) LockByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return toDomainOrder(&m), nil
}

// UpdateStatus enforces the transition table and performs the optimistic
// guarded update in one statement: zero rows affected means the order moved
// out of `from` underneath us (duplicate delivery, concurrent step).
func (r *orderRepo) UpdateStatus(ctx context.Context, id uint64, from, to domain.OrderStatus) error {
	if !domain.CanTransition(from, to) {
		return errors.Wrapf(domain.ErrInvalidTransition, "order %d: %s -> %s", id, from, to)
	}
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update order status")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrInvalidTransition, "order %d no longer in status %s", id, from)
	}
	return nil
}

// ---- products ----

type productRepo struct {
	db *gorm.DB
}

func (r *productRepo) Create(ctx context.Context, p *domain.Product) error {
	m := &ProductModel{SKU: p.SKU, Name: p.Name, Price: p.Price, StockQuantity: p.StockQuantity}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create product")
	}
	p.ID = m.ID
	return nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainProduct(&m), nil
}

func (r *productRepo) LockBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var m ProductModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku = ?", sku).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return toDomainProduct(&m), nil
}

// AdjustStock applies delta atomically; the stock_quantity >= -delta guard
// keeps the counter from ever going negative even without the row lock.
func (r *productRepo) AdjustStock(ctx context.Context, sku string, delta int) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("sku = ? AND stock_quantity + ? >= 0", sku, delta).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if res.Error != nil {
		return errors.Wrap(res.Error, "adjust stock")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrInsufficientStock, "sku %s: adjust by %d", sku, delta)
	}
	return nil
}

// ---- reservations ----

type reservationRepo struct {
	db *gorm.DB
}

func (r *reservationRepo) Create(ctx context.Context, res *domain.StockReservation) error {
	m := &StockReservationModel{
		OrderID:    res.OrderID,
		ProductSKU: res.ProductSKU,
		Quantity:   res.Quantity,
		Status:     string(res.Status),
		ExpiresAt:  res.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create reservation")
	}
	res.ID = m.ID
	return nil
}

func (r *reservationRepo) FindByOrderAndSKU(ctx context.Context, orderID uint64, sku string) (*domain.StockReservation, error) {
	var m StockReservationModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_sku = ?", orderID, sku).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return toDomainReservation(&m), nil
}

func (r *reservationRepo) ListByOrder(ctx context.Context, orderID uint64, status domain.ReservationStatus) ([]*domain.StockReservation, error) {
	var models []StockReservationModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, string(status)).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list reservations")
	}
	out := make([]*domain.StockReservation, 0, len(models))
	for i := range models {
		out = append(out, toDomainReservation(&models[i]))
	}
	return out, nil
}

func (r *reservationRepo) UpdateStatus(ctx context.Context, id uint64, from, to domain.ReservationStatus) error {
	res := r.db.WithContext(ctx).Model(&StockReservationModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update reservation status")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrInvalidTransition, "reservation %d no longer in status %s", id, from)
	}
	return nil
}

func (r *reservationRepo) CommitAll(ctx context.Context, orderID uint64) (int, error) {
	res := r.db.WithContext(ctx).Model(&StockReservationModel{}).
		Where("order_id = ? AND status = ?", orderID, string(domain.ReservationReserved)).
		Update("status", string(domain.ReservationCommitted))
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "commit reservations")
	}
	return int(res.RowsAffected), nil
}

// ---- payments ----

type paymentRepo struct {
	db *gorm.DB
}

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	m := &PaymentModel{
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		ErrorMessage:  p.ErrorMessage,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create payment")
	}
	p.ID = m.ID
	p.CreatedAt = m.CreatedAt
	return nil
}

func (r *paymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":         string(p.Status),
			"transaction_id": p.TransactionID,
			"error_message":  p.ErrorMessage,
		}).Error
	return errors.Wrap(err, "update payment")
}

func (r *paymentRepo) LatestByOrder(ctx context.Context, orderID uint64) (*domain.Payment, error) {
	var m PaymentModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return toDomainPayment(&m), nil
}

// ---- refunds ----

type refundRepo struct {
	db *gorm.DB
}

func (r *refundRepo) Create(ctx context.Context, ref *domain.Refund) error {
	m := toRefundModel(ref)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create refund")
	}
	ref.ID = m.ID
	ref.CreatedAt = m.CreatedAt
	return nil
}

func (r *refundRepo) FindByID(ctx context.Context, id uint64) (*domain.Refund, error) {
	var m RefundModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainRefund(&m), nil
}

func (r *refundRepo) FindByRef(ctx context.Context, ref string) (*domain.Refund, error) {
	var m RefundModel
	if err := r.db.WithContext(ctx).Where("refund_ref = ?", ref).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainRefund(&m), nil
}

func (r *refundRepo) ListByOrder(ctx context.Context, orderID uint64) ([]*domain.Refund, error) {
	var models []RefundModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("requested_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list refunds")
	}
	out := make([]*domain.Refund, 0, len(models))
	for i := range models {
		out = append(out, toDomainRefund(&models[i]))
	}
	return out, nil
}

func (r *refundRepo) Update(ctx context.Context, ref *domain.Refund) error {
	err := r.db.WithContext(ctx).Model(&RefundModel{}).
		Where("id = ?", ref.ID).
		Updates(map[string]any{
			"status":         string(ref.Status),
			"transaction_id": ref.TransactionID,
			"error_message":  ref.ErrorMessage,
			"processed_at":   ref.ProcessedAt,
		}).Error
	return errors.Wrap(err, "update refund")
}

func (r *refundRepo) UpdateStatus(ctx context.Context, id uint64, from, to domain.RefundStatus) error {
	if !domain.CanTransitionRefund(from, to) {
		return errors.Wrapf(domain.ErrInvalidTransition, "refund %d: %s -> %s", id, from, to)
	}
	res := r.db.WithContext(ctx).Model(&RefundModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update refund status")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrInvalidTransition, "refund %d no longer in status %s", id, from)
	}
	return nil
}

func (r *refundRepo) SumCompletedByOrder(ctx context.Context, orderID uint64, excludeID uint64) (decimal.Decimal, error) {
	q := r.db.WithContext(ctx).Model(&RefundModel{}).
		Where("order_id = ? AND status = ?", orderID, string(domain.RefundCompleted))
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var sum decimal.NullDecimal
	if err := q.Select("SUM(refund_amount)").Scan(&sum).Error; err != nil {
		return decimal.Zero, errors.Wrap(err, "sum completed refunds")
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *refundRepo) List(ctx context.Context, status domain.RefundStatus, limit int) ([]*domain.Refund, error) {
	q := r.db.WithContext(ctx).Model(&RefundModel{}).Order("requested_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []RefundModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list refunds")
	}
	out := make([]*domain.Refund, 0, len(models))
	for i := range models {
		out = append(out, toDomainRefund(&models[i]))
	}
	return out, nil
}

func (r *refundRepo) Stats(ctx context.Context) (*domain.RefundStats, error) {
	var rows []struct {
		Status string
		Count  int64
		Total  decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).Model(&RefundModel{}).
		Select("status, COUNT(*) AS count, SUM(refund_amount) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "refund stats")
	}
	stats := &domain.RefundStats{
		ByStatus:      make(map[domain.RefundStatus]int64, len(rows)),
		TotalRefunded: decimal.Zero,
	}
	for _, row := range rows {
		status := domain.RefundStatus(row.Status)
		stats.ByStatus[status] = row.Count
		stats.TotalRequests += row.Count
		if status == domain.RefundCompleted && row.Total.Valid {
			stats.TotalRefunded = stats.TotalRefunded.Add(row.Total.Decimal)
		}
	}
	return stats, nil
}

// ---- notifications ----

type notificationRepo struct {
	db *gorm.DB
}

func (r *notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	m := &NotificationModel{
		OrderID:        n.OrderID,
		OrderReference: n.OrderReference,
		CustomerID:     n.CustomerID,
		Kind:           string(n.Kind),
		Channel:        n.Channel,
		Recipient:      n.Recipient,
		Message:        n.Message,
		Status:         string(n.Status),
		ErrorMessage:   n.ErrorMessage,
		SentAt:         n.SentAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create notification")
	}
	n.ID = m.ID
	return nil
}

func (r *notificationRepo) Update(ctx context.Context, n *domain.Notification) error {
	err := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("id = ?", n.ID).
		Updates(map[string]any{
			"status":        string(n.Status),
			"error_message": n.ErrorMessage,
			"sent_at":       n.SentAt,
		}).Error
	return errors.Wrap(err, "update notification")
}
