// internal/store/alerts.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stockwatch/internal/models"

	"github.com/google/uuid"
)

// AlertStore provides access to price alert records.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

const alertColumns = `a.id, a.user_id, a.stock_id, s.symbol, a.condition_type, a.threshold_value,
	a.one_time, a.is_active, a.triggered_at, a.last_checked_at, a.created_at, a.updated_at`

// EligibleAlerts returns every alert the evaluation cycle should look at.
// One-time alerts drop out of eligibility once triggered; recurring alerts
// stay eligible regardless of trigger history.
func (s *AlertStore) EligibleAlerts(ctx context.Context) ([]models.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM price_alerts a
		JOIN stocks s ON s.id = a.stock_id
		WHERE a.is_active = TRUE
		  AND (a.one_time = FALSE OR a.triggered_at IS NULL)
		ORDER BY a.created_at`, alertColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query eligible alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// TryTrigger records a trigger with a compare-and-set: the conditional WHERE
// repeats the eligibility predicate so that when two overlapping cycles race
// on the same one-time alert, exactly one update wins. One-time alerts are
// deactivated in the same statement so a second cycle cannot double-trigger
// before dispatch drains. Returns false if a concurrent pass won the race.
func (s *AlertStore) TryTrigger(ctx context.Context, alertID uuid.UUID, triggeredAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE price_alerts
		SET triggered_at = $2,
		    is_active = CASE WHEN one_time THEN FALSE ELSE is_active END,
		    updated_at = NOW()
		WHERE id = $1
		  AND is_active = TRUE
		  AND (one_time = FALSE OR triggered_at IS NULL)`,
		alertID, triggeredAt)
	if err != nil {
		return false, fmt.Errorf("trigger alert %s: %w", alertID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("trigger alert %s: rows affected: %w", alertID, err)
	}
	return n == 1, nil
}

// TouchLastChecked records that an evaluation pass looked at this alert,
// regardless of the outcome.
func (s *AlertStore) TouchLastChecked(ctx context.Context, alertID uuid.UUID, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE price_alerts SET last_checked_at = $2 WHERE id = $1`,
		alertID, checkedAt)
	if err != nil {
		return fmt.Errorf("touch alert %s: %w", alertID, err)
	}
	return nil
}

// GetByID loads one alert with its stock symbol.
func (s *AlertStore) GetByID(ctx context.Context, alertID uuid.UUID) (*models.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM price_alerts a
		JOIN stocks s ON s.id = a.stock_id
		WHERE a.id = $1`, alertColumns)

	row := s.db.QueryRowContext(ctx, query, alertID)
	alert, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get alert %s: %w", alertID, err)
	}
	return &alert, nil
}

// Create inserts a new alert: active, untriggered.
func (s *AlertStore) Create(ctx context.Context, alert *models.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_alerts
			(id, user_id, stock_id, condition_type, threshold_value, one_time, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())`,
		alert.ID, alert.UserID, alert.StockID, alert.ConditionType, alert.ThresholdValue, alert.OneTime)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// ListByUser returns all alerts owned by a user, newest first.
func (s *AlertStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM price_alerts a
		JOIN stocks s ON s.id = a.stock_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC`, alertColumns)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts for user %s: %w", userID, err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// SetActive flips is_active only. The API layer never writes triggered_at.
func (s *AlertStore) SetActive(ctx context.Context, alertID, userID uuid.UUID, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE price_alerts SET is_active = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		alertID, userID, active)
	if err != nil {
		return fmt.Errorf("set alert %s active=%t: %w", alertID, active, err)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(r rowScanner) (models.Alert, error) {
	var (
		alert         models.Alert
		triggeredAt   sql.NullTime
		lastCheckedAt sql.NullTime
	)
	err := r.Scan(
		&alert.ID, &alert.UserID, &alert.StockID, &alert.Symbol,
		&alert.ConditionType, &alert.ThresholdValue,
		&alert.OneTime, &alert.IsActive,
		&triggeredAt, &lastCheckedAt,
		&alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return models.Alert{}, err
	}
	if triggeredAt.Valid {
		alert.TriggeredAt = &triggeredAt.Time
	}
	if lastCheckedAt.Valid {
		alert.LastCheckedAt = &lastCheckedAt.Time
	}
	return alert, nil
}
