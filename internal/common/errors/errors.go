// Package errors provides standardized error handling for the alert and
// notification pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Alert evaluation
	ErrCodeAlertQueryFailed      ErrorCode = "ALERT_QUERY_FAILED"
	ErrCodeAlertNotFound         ErrorCode = "ALERT_NOT_FOUND"
	ErrCodeAlertAlreadyTriggered ErrorCode = "ALERT_ALREADY_TRIGGERED"
	ErrCodePriceLookupFailed     ErrorCode = "PRICE_LOOKUP_FAILED"
	ErrCodePriceNotFound         ErrorCode = "PRICE_NOT_FOUND"
	ErrCodeEnqueueFailed         ErrorCode = "ENQUEUE_FAILED"

	// Notification dispatch
	ErrCodeRecipientNotFound      ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrCodeNotificationCreateFail ErrorCode = "NOTIFICATION_CREATE_FAILED"
	ErrCodeDeliveryFailed         ErrorCode = "DELIVERY_FAILED"
	ErrCodeDeliveryTimeout        ErrorCode = "DELIVERY_TIMEOUT"
	ErrCodeInvalidDispatchUnit    ErrorCode = "INVALID_DISPATCH_UNIT"

	// Infrastructure
	ErrCodeDatabaseFailed    ErrorCode = "DATABASE_FAILED"
	ErrCodeQueryTimeout      ErrorCode = "QUERY_TIMEOUT"
	ErrCodeIndexWriteFailed  ErrorCode = "INDEX_WRITE_FAILED"
	ErrCodeBroadcastFailed   ErrorCode = "BROADCAST_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsRetryable reports whether err is a StandardError marked retryable.
// Unknown error types are treated as retryable so transient infrastructure
// failures get another attempt.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// ==========================
// Error Constructors
// ==========================

// NewAlertQueryFailedError wraps a failure to enumerate eligible alerts.
// This is the only error the evaluation cycle propagates to its caller.
func NewAlertQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertQueryFailed,
		Message:   "Failed to enumerate eligible alerts",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlertNotFoundError creates a non-retryable data fault for a dispatch
// unit referencing a deleted alert.
func NewAlertNotFoundError(alertID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertNotFound,
		Message:   "Alert referenced by dispatch unit does not exist",
		Details:   fmt.Sprintf("alertId: %s", alertID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPriceLookupFailedError creates a retryable price resolution error.
func NewPriceLookupFailedError(symbol string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePriceLookupFailed,
		Message:   "Failed to resolve latest price",
		Details:   fmt.Sprintf("symbol %s: %v", symbol, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecipientNotFoundError creates a non-retryable data fault for a
// notification whose owning user no longer exists.
func NewRecipientNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecipientNotFound,
		Message:   "Notification recipient does not exist",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError creates a retryable channel delivery error.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel %s: %v", channel, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryTimeoutError creates a retryable timeout error; treated
// identically to a delivery failure by the dispatcher.
func NewDeliveryTimeoutError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryTimeout,
		Message:   "Notification delivery timed out",
		Details:   fmt.Sprintf("channel: %s", channel),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidDispatchUnitError creates a non-retryable error for a queue
// message that fails schema validation. Retrying cannot fix a bad payload.
func NewInvalidDispatchUnitError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDispatchUnit,
		Message:   "Dispatch unit failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationCreateFailedError signals that the audit record for a
// notification could not be written. Without the record there is nothing
// to settle, so the dispatcher drops the unit.
func NewNotificationCreateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationCreateFail,
		Message:   "Failed to create notification record",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBroadcastFailedError creates a retryable broadcast publish error.
func NewBroadcastFailedError(topicARN string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBroadcastFailed,
		Message:   "Broadcast publish failed",
		Details:   fmt.Sprintf("topic %s: %v", topicARN, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseError creates a retryable database error.
func NewDatabaseError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseFailed,
		Message:   "Database operation failed",
		Details:   fmt.Sprintf("%s: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
