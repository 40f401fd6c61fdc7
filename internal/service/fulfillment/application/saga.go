// internal/service/fulfillment/application/saga.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/domain"
	"fulfillment/internal/service/fulfillment/domain/port"
	"fulfillment/internal/taskqueue"
)

// SagaOrchestrator runs ReserveStock -> ProcessPayment -> FinalizeOrder as a
// dependent chain of retryable tasks sharing one order id, with RollbackOrder
// as the compensation dispatched once the chain is abandoned. Every handler
// tolerates redelivery: reservation is keyed per (order, sku), payment
// creates a fresh attempt row, finalize and rollback are no-ops once their
// terminal state is reached.
type SagaOrchestrator struct {
	store    domain.Store
	ledger   *InventoryLedger
	gateway  port.PaymentGateway
	notifier port.Notifier
	events   port.EventPublisher
	queue    taskqueue.Queue
	tracer   trace.Tracer
}

func NewSagaOrchestrator(store domain.Store, ledger *InventoryLedger, gateway port.PaymentGateway, notifier port.Notifier, events port.EventPublisher, queue taskqueue.Queue) *SagaOrchestrator {
	return &SagaOrchestrator{
		store:    store,
		ledger:   ledger,
		gateway:  gateway,
		notifier: notifier,
		events:   events,
		queue:    queue,
		tracer:   otel.Tracer("fulfillment.saga"),
	}
}

// Register wires the saga step handlers into the worker.
func (o *SagaOrchestrator) Register(w *taskqueue.Worker) {
	w.Handle(TaskReserveStock, o.HandleReserveStock)
	w.Handle(TaskProcessPayment, o.HandleProcessPayment)
	w.Handle(TaskFinalizeOrder, o.HandleFinalizeOrder)
	w.Handle(TaskRollbackOrder, o.HandleRollbackOrder)
}

// StartWorkflow enqueues the fulfillment chain for one order.
func (o *SagaOrchestrator) StartWorkflow(ctx context.Context, orderID uint64) error {
	ctx, span := o.tracer.Start(ctx, "saga.StartWorkflow")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", int64(orderID)))

	payload := mustMarshal(OrderTaskPayload{OrderID: orderID})
	tasks := []taskqueue.Task{
		{Name: TaskReserveStock, Queue: QueueOrders, Payload: payload, MaxAttempts: stepAttempts, Timeout: reserveTimeout},
		{Name: TaskProcessPayment, Queue: QueueOrders, Payload: payload, MaxAttempts: stepAttempts, Timeout: paymentTimeout},
		{Name: TaskFinalizeOrder, Queue: QueueOrders, Payload: payload, MaxAttempts: stepAttempts, Timeout: finalizeTimeout},
	}
	rollback := &taskqueue.Task{
		Name: TaskRollbackOrder, Queue: QueueOrders, Payload: payload,
		MaxAttempts: stepAttempts, Timeout: rollbackTimeout,
	}
	return o.queue.EnqueueChain(ctx, tasks, rollback)
}

// HandleReserveStock debits inventory, creates the reservation and moves the
// order to reserved. On any failure the order is set to failed before the
// error propagates, so an abandoned chain always leaves a terminal,
// inspectable status for compensation to pick up.
func (o *SagaOrchestrator) HandleReserveStock(ctx context.Context, payload json.RawMessage) error {
	order, err := o.loadOrder(ctx, payload)
	if err != nil {
		return err
	}

	ctx, span := o.stepSpan(ctx, "saga.ReserveStock", order)
	defer span.End()

	// Redelivery after the reserve transaction already committed.
	if order.Status == domain.OrderReserved || order.Status == domain.OrderPaymentProcessing || order.Status == domain.OrderCompleted {
		logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("stock already reserved, skipping")
		return nil
	}

	logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("reserving stock")

	err = o.store.Transaction(ctx, func(tx domain.Store) error {
		if err := o.ledger.Reserve(ctx, tx, order); err != nil {
			return err
		}
		return tx.Orders().UpdateStatus(ctx, order.ID, order.Status, domain.OrderReserved)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock reservation failed")
		o.markFailed(ctx, order)
		return fmt.Errorf("reserve stock for order %s: %w", order.OrderRef, err)
	}

	logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("stock reserved")
	return nil
}

// HandleProcessPayment creates a payment attempt, moves the order to
// payment_processing and invokes the gateway. The gateway call happens
// outside any transaction so no database lock is held across the simulated
// network latency.
func (o *SagaOrchestrator) HandleProcessPayment(ctx context.Context, payload json.RawMessage) error {
	order, err := o.loadOrder(ctx, payload)
	if err != nil {
		return err
	}

	ctx, span := o.stepSpan(ctx, "saga.ProcessPayment", order)
	defer span.End()

	if order.Status == domain.OrderCompleted {
		return nil
	}

	logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("processing payment")

	payment := &domain.Payment{
		OrderID:  order.ID,
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		Status:   domain.PaymentProcessing,
	}
	err = o.store.Transaction(ctx, func(tx domain.Store) error {
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		switch order.Status {
		case domain.OrderReserved:
			return tx.Orders().UpdateStatus(ctx, order.ID, domain.OrderReserved, domain.OrderPaymentProcessing)
		case domain.OrderPaymentProcessing:
			// Retried attempt; the transition already happened.
			return nil
		default:
			return fmt.Errorf("order %s in status %s cannot enter payment: %w",
				order.OrderRef, order.Status, domain.ErrInvalidTransition)
		}
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("prepare payment for order %s: %w", order.OrderRef, err)
	}

	result, chargeErr := o.gateway.Charge(ctx, order)
	if chargeErr != nil {
		payment.Status = domain.PaymentFailed
		payment.ErrorMessage = chargeErr.Error()
		if err := o.store.Payments().Update(ctx, payment); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_ref", order.OrderRef).Msg("failed to record declined payment")
		}
		span.RecordError(chargeErr)
		span.SetStatus(codes.Error, "payment declined")
		logger.Ctx(ctx).Warn().Str("order_ref", order.OrderRef).Msg("payment failed")
		return fmt.Errorf("charge order %s: %w", order.OrderRef, chargeErr)
	}

	payment.Status = domain.PaymentCompleted
	payment.TransactionID = result.TransactionID
	if err := o.store.Payments().Update(ctx, payment); err != nil {
		return fmt.Errorf("record completed payment for order %s: %w", order.OrderRef, err)
	}

	logger.Ctx(ctx).Info().
		Str("order_ref", order.OrderRef).
		Str("transaction_id", result.TransactionID).
		Msg("payment completed")
	return nil
}

// HandleFinalizeOrder commits the reservations and completes the order. It
// requires the latest payment attempt to be completed, a defensive check in
// case step ordering assumptions are ever violated.
func (o *SagaOrchestrator) HandleFinalizeOrder(ctx context.Context, payload json.RawMessage) error {
	order, err := o.loadOrder(ctx, payload)
	if err != nil {
		return err
	}

	ctx, span := o.stepSpan(ctx, "saga.FinalizeOrder", order)
	defer span.End()

	if order.Status == domain.OrderCompleted {
		logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("order already finalized, skipping")
		// Re-emit on duplicate delivery: the event id is deterministic, so
		// consumers collapse this with the original emission, and a publish
		// that failed on the completing attempt is healed here.
		o.publishCompleted(ctx, order)
		return nil
	}

	logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("finalizing order")

	err = o.store.Transaction(ctx, func(tx domain.Store) error {
		payment, err := tx.Payments().LatestByOrder(ctx, order.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("order %s: %w", order.OrderRef, domain.ErrPaymentNotCompleted)
			}
			return err
		}
		if payment.Status != domain.PaymentCompleted {
			return fmt.Errorf("order %s latest payment is %s: %w",
				order.OrderRef, payment.Status, domain.ErrPaymentNotCompleted)
		}
		if err := o.ledger.Commit(ctx, tx, order.ID); err != nil {
			return err
		}
		return tx.Orders().UpdateStatus(ctx, order.ID, order.Status, domain.OrderCompleted)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalization failed")
		return fmt.Errorf("finalize order %s: %w", order.OrderRef, err)
	}

	o.notify(ctx, order, domain.NotificationSuccess)
	o.publishCompleted(ctx, order)

	logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("order finalized")
	return nil
}

// publishCompleted emits the order completed event. Failures are logged, not
// fatal: emission is at most once per delivery, and only a duplicate delivery
// of the finalize task re-emits it. Consumers dedup on the deterministic id.
func (o *SagaOrchestrator) publishCompleted(ctx context.Context, order *domain.Order) {
	ev := &domain.OrderCompletedEvent{
		EventID:     "order-completed-" + order.OrderRef,
		OrderID:     order.ID,
		OrderRef:    order.OrderRef,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		CompletedAt: order.UpdatedAt,
	}
	if err := o.events.OrderCompleted(ctx, ev); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_ref", order.OrderRef).Msg("failed to publish order completed event")
	}
}

// HandleRollbackOrder is the compensation task: release reservations, credit
// stock back, park the order in rollback, emit the failure notification.
// Idempotent: an order with no reserved reservations is a no-op for
// inventory.
func (o *SagaOrchestrator) HandleRollbackOrder(ctx context.Context, payload json.RawMessage) error {
	order, err := o.loadOrder(ctx, payload)
	if err != nil {
		return err
	}

	ctx, span := o.stepSpan(ctx, "saga.RollbackOrder", order)
	defer span.End()

	if order.Status == domain.OrderRollback {
		logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("order already rolled back, skipping")
		return nil
	}

	logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("rolling back order")

	err = o.store.Transaction(ctx, func(tx domain.Store) error {
		if err := o.ledger.Release(ctx, tx, order.ID); err != nil {
			return err
		}
		if !domain.CanTransition(order.Status, domain.OrderRollback) {
			// Nothing legal to transition (e.g. the order never left
			// pending); inventory is already clean, keep the status.
			logger.Ctx(ctx).Warn().
				Str("order_ref", order.OrderRef).
				Str("status", string(order.Status)).
				Msg("order not transitionable to rollback, leaving status")
			return nil
		}
		return tx.Orders().UpdateStatus(ctx, order.ID, order.Status, domain.OrderRollback)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rollback failed")
		// Re-raise so the queue retries the rollback itself; compensation is
		// never silently dropped.
		return fmt.Errorf("rollback order %s: %w", order.OrderRef, err)
	}

	o.notify(ctx, order, domain.NotificationFailed)

	logger.Ctx(ctx).Info().Str("order_ref", order.OrderRef).Msg("order rolled back")
	return nil
}

func (o *SagaOrchestrator) loadOrder(ctx context.Context, payload json.RawMessage) (*domain.Order, error) {
	var p OrderTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, taskqueue.NoRetry(fmt.Errorf("malformed order task payload: %w", err))
	}
	order, err := o.store.Orders().FindByID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Ctx(ctx).Error().Uint64("order_id", p.OrderID).Msg("order not found")
			return nil, taskqueue.NoRetry(err)
		}
		return nil, err
	}
	return order, nil
}

// markFailed parks the order in failed if its current status permits.
// Already-failed orders (duplicate delivery) are left alone.
func (o *SagaOrchestrator) markFailed(ctx context.Context, order *domain.Order) {
	if !domain.CanTransition(order.Status, domain.OrderFailed) {
		return
	}
	if err := o.store.Orders().UpdateStatus(ctx, order.ID, order.Status, domain.OrderFailed); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_ref", order.OrderRef).Msg("failed to mark order as failed")
	}
}

// notify fires the delayed notification task; failures are logged, never
// fatal to the step.
func (o *SagaOrchestrator) notify(ctx context.Context, order *domain.Order, kind domain.NotificationKind) {
	if err := o.notifier.Notify(ctx, order.ID, kind, "log", ""); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_ref", order.OrderRef).Msg("failed to enqueue notification")
	}
}

func (o *SagaOrchestrator) stepSpan(ctx context.Context, name string, order *domain.Order) (context.Context, trace.Span) {
	ctx, span := o.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("order.ref", order.OrderRef),
		attribute.String("order.status", string(order.Status)),
	)
	return ctx, span
}
