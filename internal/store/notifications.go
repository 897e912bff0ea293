// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stockwatch/internal/models"

	"github.com/google/uuid"
)

// NotificationStore provides access to the notification audit trail.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Create inserts a notification record. The dispatcher calls this with
// status PENDING before any delivery side effect runs, so the audit trail
// survives delivery failure.
func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	var alertID interface{}
	if n.AlertID != nil {
		alertID = *n.AlertID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, user_id, alert_id, notification_type, channel, subject, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		n.ID, n.UserID, alertID, n.Type, n.Channel, n.Subject, n.Message, n.Status)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// UpdateStatus moves a notification to a terminal status. sentAt is non-nil
// only for SENT. Retries mutate this one record; they never insert another.
func (s *NotificationStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, sentAt *time.Time) error {
	var sent interface{}
	if sentAt != nil {
		sent = *sentAt
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = $2, sent_at = $3 WHERE id = $1`,
		id, status, sent)
	if err != nil {
		return fmt.Errorf("update notification %s status: %w", id, err)
	}
	return nil
}

// ListByUser returns a user's notifications, optionally filtered to unread.
func (s *NotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, alert_id, notification_type, channel, subject, message, status, sent_at, read_at, created_at
		FROM notifications
		WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead sets read_at once; re-reading does not move the timestamp.
func (s *NotificationStore) MarkRead(ctx context.Context, id, userID uuid.UUID, readAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $3 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		id, userID, readAt)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
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

// UnreadCount returns how many notifications the user has not read.
func (s *NotificationStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count for user %s: %w", userID, err)
	}
	return count, nil
}

// DeleteReadBefore removes read notifications older than the cutoff.
// Unread notifications are kept forever.
func (s *NotificationStore) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read_at IS NOT NULL AND created_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	return res.RowsAffected()
}

func scanNotification(r rowScanner) (models.Notification, error) {
	var (
		n       models.Notification
		alertID uuid.NullUUID
		sentAt  sql.NullTime
		readAt  sql.NullTime
	)
	err := r.Scan(
		&n.ID, &n.UserID, &alertID, &n.Type, &n.Channel,
		&n.Subject, &n.Message, &n.Status,
		&sentAt, &readAt, &n.CreatedAt,
	)
	if err != nil {
		return models.Notification{}, err
	}
	if alertID.Valid {
		n.AlertID = &alertID.UUID
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	return n, nil
}
