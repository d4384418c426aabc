package domain

import "time"

type NotificationType string

const (
	NotificationCheckout         NotificationType = "CHECKOUT"
	NotificationRenewal          NotificationType = "RENEWAL"
	NotificationReturn           NotificationType = "RETURN"
	NotificationLost             NotificationType = "LOST"
	NotificationOverdue          NotificationType = "OVERDUE_REMINDER"
	NotificationSubmitted        NotificationType = "SUBMITTED"
	NotificationApproved         NotificationType = "APPROVED"
	NotificationPublished        NotificationType = "PUBLISHED"
	NotificationRejected         NotificationType = "REJECTED"
	NotificationChangesRequested NotificationType = "CHANGES_REQUESTED"
)

// Notification is an outbox row written in the same transaction as the
// state change it describes. EventID deduplicates delivery.
type Notification struct {
	ID          int32             `json:"id"`
	EventID     string            `json:"event_id"`
	RecipientID int32             `json:"recipient_id"`
	Type        NotificationType  `json:"type"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Attributes  map[string]string `json:"attributes"`
	IsRead      bool              `json:"is_read"`
	CreatedAt   time.Time         `json:"created_at"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty"`
}
