// internal/models/watchlist.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Watchlist struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type WatchlistItem struct {
	ID          uuid.UUID `json:"id"`
	WatchlistID uuid.UUID `json:"watchlistId"`
	StockID     uuid.UUID `json:"stockId"`
	Symbol      string    `json:"symbol"`
	Note        string    `json:"note,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}
