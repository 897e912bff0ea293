// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// User carries the contact surface this service needs for delivery.
// Identity management lives upstream.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	WebhookARN string    `json:"webhookArn,omitempty"` // SNS topic for WEBHOOK channel delivery
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}
