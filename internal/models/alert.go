// internal/models/alert.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConditionType is the closed set of alert condition variants.
type ConditionType string

const (
	ConditionPriceAbove    ConditionType = "PRICE_ABOVE"
	ConditionPriceBelow    ConditionType = "PRICE_BELOW"
	ConditionPercentChange ConditionType = "PERCENT_CHANGE"
)

// Valid reports whether t is a known condition type.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionPriceAbove, ConditionPriceBelow, ConditionPercentChange:
		return true
	}
	return false
}

// Condition pairs a condition type with its threshold.
type Condition struct {
	Type      ConditionType   `json:"type"`
	Threshold decimal.Decimal `json:"threshold"`
}

// Alert is a user-configured price alert against one stock.
//
// A one-time alert deactivates itself on first trigger; a recurring alert
// stays eligible and TriggeredAt reflects only the most recent trigger.
type Alert struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"userId"`
	StockID        uuid.UUID       `json:"stockId"`
	Symbol         string          `json:"symbol"`
	ConditionType  ConditionType   `json:"conditionType"`
	ThresholdValue decimal.Decimal `json:"thresholdValue"`
	OneTime        bool            `json:"oneTime"`
	IsActive       bool            `json:"isActive"`
	TriggeredAt    *time.Time      `json:"triggeredAt,omitempty"`
	LastCheckedAt  *time.Time      `json:"lastCheckedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Condition returns the alert's condition as a tagged variant.
func (a *Alert) Condition() Condition {
	return Condition{Type: a.ConditionType, Threshold: a.ThresholdValue}
}
