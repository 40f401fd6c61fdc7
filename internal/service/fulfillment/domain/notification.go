// internal/service/fulfillment/domain/notification.go
package domain

import "time"

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationFailed  NotificationKind = "failed"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationErrored NotificationStatus = "failed"
)

// Notification is the audit row for one dispatched notification. Delivery is
// fire-and-forget; the core only enqueues the send task.
type Notification struct {
	ID             uint64
	OrderID        uint64
	OrderReference string
	CustomerID     string
	Kind           NotificationKind
	Channel        string // "log" or "email"
	Recipient      string
	Message        string
	Status         NotificationStatus
	ErrorMessage   string
	SentAt         *time.Time
	CreatedAt      time.Time
}
