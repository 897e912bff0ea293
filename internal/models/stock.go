// internal/models/stock.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Stock is master data: symbols change rarely, prices constantly, so the
// two live in separate tables with separate access patterns.
type Stock struct {
	ID        uuid.UUID `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange"` // NYSE, NASDAQ, NSE, BSE, LSE
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"isActive"` // soft delete: delisted stocks keep history
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
