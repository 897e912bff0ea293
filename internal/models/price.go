// internal/models/price.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceObservation is one immutable time-series point for a stock.
// This core only reads "latest"; ingestion happens elsewhere.
type PriceObservation struct {
	ID         uuid.UUID       `json:"id"`
	StockID    uuid.UUID       `json:"stockId"`
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Volume     int64           `json:"volume"`
	ObservedAt time.Time       `json:"observedAt"`
	Source     string          `json:"source"` // ALPHA_VANTAGE, MANUAL, YAHOO, POLYGON
}
