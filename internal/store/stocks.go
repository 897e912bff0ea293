// internal/store/stocks.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"stockwatch/internal/models"

	"github.com/google/uuid"
)

// StockStore provides access to stock master data.
type StockStore struct {
	db *sql.DB
}

func NewStockStore(db *sql.DB) *StockStore {
	return &StockStore{db: db}
}

const stockColumns = `id, symbol, name, exchange, currency, is_active, created_at, updated_at`

func (s *StockStore) GetBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM stocks WHERE symbol = $1`, stockColumns), symbol)
	stock, err := scanStock(row)
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (s *StockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM stocks WHERE id = $1`, stockColumns), id)
	stock, err := scanStock(row)
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// ListActive returns all stocks that have not been soft-deleted.
func (s *StockStore) ListActive(ctx context.Context) ([]models.Stock, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM stocks WHERE is_active = TRUE ORDER BY symbol`, stockColumns))
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()

	var out []models.Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stock)
	}
	return out, rows.Err()
}

// Search matches symbol or name, case-insensitive.
func (s *StockStore) Search(ctx context.Context, query string) ([]models.Stock, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM stocks
		WHERE is_active = TRUE AND (symbol ILIKE '%%' || $1 || '%%' OR name ILIKE '%%' || $1 || '%%')
		ORDER BY symbol`, stockColumns), query)
	if err != nil {
		return nil, fmt.Errorf("search stocks: %w", err)
	}
	defer rows.Close()

	var out []models.Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stock)
	}
	return out, rows.Err()
}

func (s *StockStore) Create(ctx context.Context, stock *models.Stock) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stocks (id, symbol, name, exchange, currency, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())`,
		stock.ID, stock.Symbol, stock.Name, stock.Exchange, stock.Currency)
	if err != nil {
		return fmt.Errorf("create stock %s: %w", stock.Symbol, err)
	}
	return nil
}

func scanStock(r rowScanner) (models.Stock, error) {
	var stock models.Stock
	err := r.Scan(
		&stock.ID, &stock.Symbol, &stock.Name, &stock.Exchange,
		&stock.Currency, &stock.IsActive, &stock.CreatedAt, &stock.UpdatedAt,
	)
	return stock, err
}
