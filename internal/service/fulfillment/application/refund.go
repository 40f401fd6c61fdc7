// internal/service/fulfillment/application/refund.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/domain"
	"fulfillment/internal/service/fulfillment/domain/port"
	"fulfillment/internal/taskqueue"
)

// RefundService validates and applies refunds against an order's remaining
// refundable balance. Request-time validation is synchronous and never enters
// the queue; settlement runs as a retryable task that must never double-count
// money, even under duplicate delivery.
type RefundService struct {
	store   domain.Store
	gateway port.PaymentGateway
	events  port.EventPublisher
	queue   taskqueue.Queue
	tracer  trace.Tracer
}

func NewRefundService(store domain.Store, gateway port.PaymentGateway, events port.EventPublisher, queue taskqueue.Queue) *RefundService {
	return &RefundService{
		store:   store,
		gateway: gateway,
		events:  events,
		queue:   queue,
		tracer:  otel.Tracer("fulfillment.refund"),
	}
}

// Register wires the refund processing handler into the worker.
func (s *RefundService) Register(w *taskqueue.Worker) {
	w.Handle(TaskProcessRefund, s.HandleProcessRefund)
}

type RefundRequest struct {
	OrderRef    string
	Amount      decimal.Decimal
	Type        domain.RefundType
	Reason      string
	Description string
	Metadata    map[string]string
}

type RefundResponse struct {
	RefundRef string
	Status    domain.RefundStatus
}

// RequestRefund validates the request against the order's refundable balance,
// persists a pending refund and enqueues its settlement.
func (s *RefundService) RequestRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	ctx, span := s.tracer.Start(ctx, "refund.Request")
	defer span.End()
	span.SetAttributes(attribute.String("order.ref", req.OrderRef))

	order, err := s.store.Orders().FindByRef(ctx, req.OrderRef)
	if err != nil {
		return nil, err
	}
	if !order.Refundable() {
		return nil, fmt.Errorf("order %s in status %s: %w", order.OrderRef, order.Status, domain.ErrOrderNotRefundable)
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidRefundAmount
	}

	refunded, err := s.store.Refunds().SumCompletedByOrder(ctx, order.ID, 0)
	if err != nil {
		return nil, err
	}
	refundable := order.TotalAmount.Sub(refunded)

	if req.Amount.GreaterThan(refundable) {
		return nil, fmt.Errorf("requested %s, refundable %s: %w",
			req.Amount, refundable, domain.ErrAmountExceedsRefundable)
	}
	if req.Type == domain.RefundFull && !req.Amount.Equal(refundable) {
		return nil, fmt.Errorf("requested %s, refundable %s: %w",
			req.Amount, refundable, domain.ErrFullRefundMismatch)
	}

	refund := &domain.Refund{
		RefundRef:      "REF-" + order.OrderRef + "-" + randomRef(6),
		OrderID:        order.ID,
		OrderReference: order.OrderRef,
		CustomerID:     order.CustomerID,
		Type:           req.Type,
		Amount:         req.Amount,
		OriginalAmount: order.TotalAmount,
		Reason:         req.Reason,
		Description:    req.Description,
		Status:         domain.RefundPending,
		Metadata:       req.Metadata,
		RequestedAt:    time.Now().UTC(),
	}
	if err := s.store.Refunds().Create(ctx, refund); err != nil {
		return nil, err
	}

	if err := s.enqueueProcessing(ctx, refund.ID); err != nil {
		// The pending row is persisted; an operator retry can still pick it
		// up, so surface the enqueue failure without undoing the request.
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("refund_ref", refund.RefundRef).
		Str("order_ref", order.OrderRef).
		Str("amount", refund.Amount.String()).
		Msg("refund requested")

	return &RefundResponse{RefundRef: refund.RefundRef, Status: refund.Status}, nil
}

// HandleProcessRefund settles one refund. Idempotency guard first: a refund
// already completed is a strict no-op (no second gateway call, no status
// regression). The refundable balance is re-validated excluding the refund's
// own row, which was persisted before this check and must not be counted
// against itself; the check runs again under the order's row lock when the
// refund completes, so concurrent settlements cannot jointly overdraw the
// order.
func (s *RefundService) HandleProcessRefund(ctx context.Context, payload json.RawMessage) error {
	var p RefundTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return taskqueue.NoRetry(fmt.Errorf("malformed refund task payload: %w", err))
	}

	refund, err := s.store.Refunds().FindByID(ctx, p.RefundID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Ctx(ctx).Error().Uint64("refund_id", p.RefundID).Msg("refund not found")
			return taskqueue.NoRetry(err)
		}
		return err
	}

	ctx, span := s.tracer.Start(ctx, "refund.Process")
	defer span.End()
	span.SetAttributes(attribute.String("refund.ref", refund.RefundRef))

	switch refund.Status {
	case domain.RefundCompleted:
		logger.Ctx(ctx).Info().Str("refund_ref", refund.RefundRef).Msg("refund already completed, skipping")
		// Re-emit on duplicate delivery: the event id is deterministic, so
		// consumers collapse this with the original emission, and a publish
		// that failed on the completing attempt is healed here.
		s.publishCompleted(ctx, refund)
		return nil
	case domain.RefundCancelled:
		logger.Ctx(ctx).Info().Str("refund_ref", refund.RefundRef).Msg("refund was cancelled, skipping")
		return nil
	}

	logger.Ctx(ctx).Info().Str("refund_ref", refund.RefundRef).Msg("processing refund")

	err = s.store.Transaction(ctx, func(tx domain.Store) error {
		order, err := tx.Orders().FindByID(ctx, refund.OrderID)
		if err != nil {
			return err
		}
		if !order.Refundable() {
			return fmt.Errorf("order %s in status %s: %w", order.OrderRef, order.Status, domain.ErrOrderNotRefundable)
		}

		refunded, err := tx.Refunds().SumCompletedByOrder(ctx, order.ID, refund.ID)
		if err != nil {
			return err
		}
		remaining := order.TotalAmount.Sub(refunded)
		if refund.Amount.GreaterThan(remaining) {
			return fmt.Errorf("refund %s of %s exceeds remaining %s: %w",
				refund.RefundRef, refund.Amount, remaining, domain.ErrAmountExceedsRefundable)
		}

		if refund.Status == domain.RefundProcessing {
			// Redelivery of an attempt that crashed mid-flight; the status
			// transition already happened.
			return nil
		}
		return tx.Refunds().UpdateStatus(ctx, refund.ID, refund.Status, domain.RefundProcessing)
	})
	if err != nil {
		return s.fail(ctx, refund, err)
	}
	refund.Status = domain.RefundProcessing

	// Gateway settlement happens outside any transaction: no lock is held
	// across the simulated latency window.
	result, gwErr := s.gateway.Refund(ctx, refund)
	if gwErr != nil {
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, "refund declined")
		return s.fail(ctx, refund, gwErr)
	}

	// The completed write is the transition that consumes refundable balance,
	// so it must be serialized per order: lock the order row, re-check the
	// remaining balance excluding this refund's own row, and only then flip
	// processing to completed. Two sibling refunds settling on different
	// workers both pass the pre-gateway check; the loser of this lock sees the
	// winner's completed row and fails instead of overdrawing the order.
	now := time.Now().UTC()
	err = s.store.Transaction(ctx, func(tx domain.Store) error {
		order, err := tx.Orders().LockByID(ctx, refund.OrderID)
		if err != nil {
			return err
		}
		current, err := tx.Refunds().FindByID(ctx, refund.ID)
		if err != nil {
			return err
		}
		if current.Status == domain.RefundCompleted {
			return errAlreadySettled
		}
		refunded, err := tx.Refunds().SumCompletedByOrder(ctx, order.ID, refund.ID)
		if err != nil {
			return err
		}
		remaining := order.TotalAmount.Sub(refunded)
		if refund.Amount.GreaterThan(remaining) {
			return fmt.Errorf("refund %s of %s exceeds remaining %s at settlement: %w",
				refund.RefundRef, refund.Amount, remaining, domain.ErrAmountExceedsRefundable)
		}
		if err := tx.Refunds().UpdateStatus(ctx, refund.ID, domain.RefundProcessing, domain.RefundCompleted); err != nil {
			return err
		}
		refund.Status = domain.RefundCompleted
		refund.TransactionID = result.TransactionID
		refund.ErrorMessage = ""
		refund.ProcessedAt = &now
		return tx.Refunds().Update(ctx, refund)
	})
	if errors.Is(err, errAlreadySettled) {
		logger.Ctx(ctx).Info().Str("refund_ref", refund.RefundRef).Msg("refund settled by a concurrent delivery")
		return nil
	}
	if err != nil {
		return s.fail(ctx, refund, err)
	}

	s.publishCompleted(ctx, refund)

	logger.Ctx(ctx).Info().
		Str("refund_ref", refund.RefundRef).
		Str("transaction_id", refund.TransactionID).
		Msg("refund processed")
	return nil
}

// errAlreadySettled short-circuits the settlement transaction when another
// delivery of the same refund completed it first.
var errAlreadySettled = errors.New("refund already settled")

// publishCompleted emits the refund completed event. Failures are logged, not
// fatal: the event id is deterministic, so a duplicate task delivery re-emits
// it and downstream dedup collapses the copies.
func (s *RefundService) publishCompleted(ctx context.Context, refund *domain.Refund) {
	processedAt := refund.RequestedAt
	if refund.ProcessedAt != nil {
		processedAt = *refund.ProcessedAt
	}
	ev := &domain.RefundCompletedEvent{
		EventID:     "refund-completed-" + refund.RefundRef,
		RefundID:    refund.ID,
		RefundRef:   refund.RefundRef,
		OrderRef:    refund.OrderReference,
		CustomerID:  refund.CustomerID,
		Amount:      refund.Amount,
		Type:        refund.Type,
		ProcessedAt: processedAt,
	}
	if err := s.events.RefundCompleted(ctx, ev); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("refund_ref", refund.RefundRef).Msg("failed to publish refund completed event")
	}
}

// Cancel aborts a refund that is still pending. Anything past pending has
// begun settlement and can no longer be cancelled.
func (s *RefundService) Cancel(ctx context.Context, refundRef string) (*domain.Refund, error) {
	refund, err := s.store.Refunds().FindByRef(ctx, refundRef)
	if err != nil {
		return nil, err
	}
	if err := s.store.Refunds().UpdateStatus(ctx, refund.ID, domain.RefundPending, domain.RefundCancelled); err != nil {
		return nil, fmt.Errorf("cancel refund %s in status %s: %w", refundRef, refund.Status, err)
	}
	refund.Status = domain.RefundCancelled
	logger.Ctx(ctx).Info().Str("refund_ref", refundRef).Msg("refund cancelled")
	return refund, nil
}

// Retry is the operator-triggered re-entry for a failed refund: back to
// pending and re-enqueued. Never taken automatically.
func (s *RefundService) Retry(ctx context.Context, refundRef string) (*domain.Refund, error) {
	refund, err := s.store.Refunds().FindByRef(ctx, refundRef)
	if err != nil {
		return nil, err
	}
	if err := s.store.Refunds().UpdateStatus(ctx, refund.ID, domain.RefundFailed, domain.RefundPending); err != nil {
		return nil, fmt.Errorf("retry refund %s in status %s: %w", refundRef, refund.Status, err)
	}
	refund.Status = domain.RefundPending
	refund.ErrorMessage = ""
	if err := s.store.Refunds().Update(ctx, refund); err != nil {
		return nil, err
	}
	if err := s.enqueueProcessing(ctx, refund.ID); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("refund_ref", refundRef).Msg("refund queued for retry")
	return refund, nil
}

// OrderRefundSummary is the read-side view of an order's refund position.
type OrderRefundSummary struct {
	OrderRef      string
	TotalAmount   decimal.Decimal
	TotalRefunded decimal.Decimal
	Refundable    decimal.Decimal
	FullyRefunded bool
	Refunds       []*domain.Refund
}

// ByOrder returns all refunds for an order together with its refundable
// position.
func (s *RefundService) ByOrder(ctx context.Context, orderRef string) (*OrderRefundSummary, error) {
	order, err := s.store.Orders().FindByRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	refunds, err := s.store.Refunds().ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	refunded, err := s.store.Refunds().SumCompletedByOrder(ctx, order.ID, 0)
	if err != nil {
		return nil, err
	}
	return &OrderRefundSummary{
		OrderRef:      order.OrderRef,
		TotalAmount:   order.TotalAmount,
		TotalRefunded: refunded,
		Refundable:    order.TotalAmount.Sub(refunded),
		FullyRefunded: refunded.GreaterThanOrEqual(order.TotalAmount),
		Refunds:       refunds,
	}, nil
}

// Get returns one refund by its reference.
func (s *RefundService) Get(ctx context.Context, refundRef string) (*domain.Refund, error) {
	return s.store.Refunds().FindByRef(ctx, refundRef)
}

// List returns refunds newest-first, optionally filtered by status.
func (s *RefundService) List(ctx context.Context, status domain.RefundStatus, limit int) ([]*domain.Refund, error) {
	if status != "" && !domain.ValidRefundStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, domain.ErrInvalidRefundStatus)
	}
	return s.store.Refunds().List(ctx, status, limit)
}

// Stats returns the aggregate refund position across all orders.
func (s *RefundService) Stats(ctx context.Context) (*domain.RefundStats, error) {
	return s.store.Refunds().Stats(ctx)
}

func (s *RefundService) enqueueProcessing(ctx context.Context, refundID uint64) error {
	return s.queue.Enqueue(ctx, taskqueue.Task{
		Name:        TaskProcessRefund,
		Queue:       QueueRefunds,
		Payload:     mustMarshal(RefundTaskPayload{RefundID: refundID}),
		MaxAttempts: stepAttempts,
		Timeout:     refundTimeout,
	})
}

// fail records the failure on the refund row and re-raises so the queue's
// retry budget governs redelivery.
func (s *RefundService) fail(ctx context.Context, refund *domain.Refund, cause error) error {
	refund.Status = domain.RefundFailed
	refund.ErrorMessage = cause.Error()
	if err := s.store.Refunds().Update(ctx, refund); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("refund_ref", refund.RefundRef).Msg("failed to record refund failure")
	}
	logger.Ctx(ctx).Warn().Err(cause).Str("refund_ref", refund.RefundRef).Msg("refund processing failed")
	return fmt.Errorf("process refund %s: %w", refund.RefundRef, cause)
}
