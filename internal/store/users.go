// internal/store/users.go
package store

import (
	"context"
	"database/sql"

	"stockwatch/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UserStore reads the user contact surface needed for delivery.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, COALESCE(webhook_arn, ''), is_active, created_at
		FROM users WHERE id = $1`, id)

	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.WebhookARN, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListActiveByIDs returns the active subset of the given users, for
// system broadcasts.
func (s *UserStore) ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, full_name, COALESCE(webhook_arn, ''), is_active, created_at
		FROM users WHERE id = ANY($1) AND is_active = TRUE`, pq.Array(strIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.WebhookARN, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
