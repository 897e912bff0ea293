// internal/store/watchlists.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"stockwatch/internal/models"

	"github.com/google/uuid"
)

// WatchlistStore provides access to user watchlists and their items.
type WatchlistStore struct {
	db *sql.DB
}

func NewWatchlistStore(db *sql.DB) *WatchlistStore {
	return &WatchlistStore{db: db}
}

func (s *WatchlistStore) Create(ctx context.Context, w *models.Watchlist) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchlists (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())`,
		w.ID, w.UserID, w.Name)
	if err != nil {
		return fmt.Errorf("create watchlist: %w", err)
	}
	return nil
}

func (s *WatchlistStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Watchlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM watchlists WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlists for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.Watchlist
	for rows.Next() {
		var w models.Watchlist
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *WatchlistStore) AddItem(ctx context.Context, item *models.WatchlistItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchlist_items (id, watchlist_id, stock_id, note, added_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (watchlist_id, stock_id) DO NOTHING`,
		item.ID, item.WatchlistID, item.StockID, item.Note)
	if err != nil {
		return fmt.Errorf("add watchlist item: %w", err)
	}
	return nil
}

func (s *WatchlistStore) RemoveItem(ctx context.Context, watchlistID, stockID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM watchlist_items WHERE watchlist_id = $1 AND stock_id = $2`,
		watchlistID, stockID)
	if err != nil {
		return fmt.Errorf("remove watchlist item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *WatchlistStore) ListItems(ctx context.Context, watchlistID uuid.UUID) ([]models.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.watchlist_id, i.stock_id, s.symbol, COALESCE(i.note, ''), i.added_at
		FROM watchlist_items i
		JOIN stocks s ON s.id = i.stock_id
		WHERE i.watchlist_id = $1
		ORDER BY i.added_at`, watchlistID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist items: %w", err)
	}
	defer rows.Close()

	var out []models.WatchlistItem
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.ID, &item.WatchlistID, &item.StockID, &item.Symbol, &item.Note, &item.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
