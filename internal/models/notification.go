// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypePriceAlert NotificationType = "PRICE_ALERT"
	NotificationTypeSystem     NotificationType = "SYSTEM"
	NotificationTypeAccount    NotificationType = "ACCOUNT"
)

type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "EMAIL"
	ChannelWebhook NotificationChannel = "WEBHOOK"
	ChannelInApp   NotificationChannel = "IN_APP"
)

type NotificationStatus string

const (
	StatusPending NotificationStatus = "PENDING"
	StatusSent    NotificationStatus = "SENT"
	StatusFailed  NotificationStatus = "FAILED"
)

// Notification is the durable audit record of one delivery attempt chain.
// It is created PENDING before any delivery side effect runs and transitions
// to exactly one of SENT or FAILED. ReadAt is mutated only by the owning
// user through the API.
type Notification struct {
	ID      uuid.UUID           `json:"id"`
	UserID  uuid.UUID           `json:"userId"`
	AlertID *uuid.UUID          `json:"alertId,omitempty"` // nil for system notifications
	Type    NotificationType    `json:"type"`
	Channel NotificationChannel `json:"channel"`
	Subject string              `json:"subject"`
	Message string              `json:"message"`
	Status  NotificationStatus  `json:"status"`
	SentAt  *time.Time          `json:"sentAt,omitempty"`
	ReadAt  *time.Time          `json:"readAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsRead reports whether the notification has been read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
