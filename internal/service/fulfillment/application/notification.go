// internal/service/fulfillment/application/notification.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/domain"
	"fulfillment/internal/taskqueue"
)

// NotificationService records and "delivers" order notifications. Delivery
// here is the log channel only; the audit row is what matters to the rest of
// the system.
type NotificationService struct {
	store domain.Store
}

func NewNotificationService(store domain.Store) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) Register(w *taskqueue.Worker) {
	w.Handle(TaskSendNotification, s.HandleSend)
}

func (s *NotificationService) HandleSend(ctx context.Context, payload json.RawMessage) error {
	var p NotificationTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return taskqueue.NoRetry(fmt.Errorf("malformed notification payload: %w", err))
	}

	order, err := s.store.Orders().FindByID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Ctx(ctx).Error().Uint64("order_id", p.OrderID).Msg("notification target order not found")
			return taskqueue.NoRetry(err)
		}
		return err
	}

	n := &domain.Notification{
		OrderID:        order.ID,
		OrderReference: order.OrderRef,
		CustomerID:     order.CustomerID,
		Kind:           p.Kind,
		Channel:        p.Channel,
		Recipient:      p.Recipient,
		Message:        buildMessage(order, p.Kind),
		Status:         domain.NotificationPending,
	}
	if err := s.store.Notifications().Create(ctx, n); err != nil {
		return err
	}

	// Log-channel delivery; email would branch here on p.Channel.
	logger.Ctx(ctx).Info().
		Str("order_ref", order.OrderRef).
		Str("kind", string(p.Kind)).
		Str("channel", p.Channel).
		Msg(n.Message)

	now := time.Now().UTC()
	n.Status = domain.NotificationSent
	n.SentAt = &now
	return s.store.Notifications().Update(ctx, n)
}

func buildMessage(order *domain.Order, kind domain.NotificationKind) string {
	switch kind {
	case domain.NotificationSuccess:
		return fmt.Sprintf("Order %s for %s completed, total %s %s",
			order.OrderRef, order.CustomerName, order.TotalAmount, order.Currency)
	default:
		return fmt.Sprintf("Order %s for %s could not be fulfilled and was rolled back",
			order.OrderRef, order.CustomerName)
	}
}

// QueueNotifier implements port.Notifier by enqueuing a delayed send task, so
// the transaction that triggered the notification commits before delivery.
type QueueNotifier struct {
	queue taskqueue.Queue
}

func NewQueueNotifier(queue taskqueue.Queue) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) Notify(ctx context.Context, orderID uint64, kind domain.NotificationKind, channel, recipient string) error {
	return n.queue.Enqueue(ctx, taskqueue.Task{
		Name:        TaskSendNotification,
		Queue:       QueueNotifications,
		Payload:     mustMarshal(NotificationTaskPayload{OrderID: orderID, Kind: kind, Channel: channel, Recipient: recipient}),
		MaxAttempts: stepAttempts,
		Timeout:     notifyTimeout,
		Delay:       notifyDelay,
	})
}
