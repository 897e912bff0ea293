// internal/store/prices.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"stockwatch/internal/models"
)

// PriceStore reads and writes the stock price time series.
type PriceStore struct {
	db *sql.DB
}

func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

// LatestBySymbol returns the most recent observation for a symbol, or
// sql.ErrNoRows when the symbol has no price history.
func (s *PriceStore) LatestBySymbol(ctx context.Context, symbol string) (*models.PriceObservation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.stock_id, s.symbol, p.price, p.volume, p.observed_at, p.source
		FROM stock_prices p
		JOIN stocks s ON s.id = p.stock_id
		WHERE s.symbol = $1
		ORDER BY p.observed_at DESC
		LIMIT 1`, symbol)

	var obs models.PriceObservation
	err := row.Scan(&obs.ID, &obs.StockID, &obs.Symbol, &obs.Price, &obs.Volume, &obs.ObservedAt, &obs.Source)
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// Insert records one observation. Rows are immutable once written.
func (s *PriceStore) Insert(ctx context.Context, obs *models.PriceObservation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_prices (id, stock_id, price, volume, observed_at, source)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		obs.ID, obs.StockID, obs.Price, obs.Volume, obs.ObservedAt, obs.Source)
	if err != nil {
		return fmt.Errorf("insert price for stock %s: %w", obs.StockID, err)
	}
	return nil
}
