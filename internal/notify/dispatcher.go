// internal/notify/dispatcher.go
package notify

import (
	"context"
	"database/sql"
	"errors"
	"time"

	stderrors "stockwatch/internal/common/errors"
	"stockwatch/internal/common/logger"
	"stockwatch/internal/common/metrics"
	"stockwatch/internal/common/observability"
	"stockwatch/internal/models"
	"stockwatch/internal/queue"

	"github.com/google/uuid"
)

// Store surfaces the dispatcher needs, defined here so tests can fake them.
type AlertLoader interface {
	GetByID(ctx context.Context, alertID uuid.UUID) (*models.Alert, error)
}

type StockLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Stock, error)
}

type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type NotificationRecorder interface {
	Create(ctx context.Context, n *models.Notification) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, sentAt *time.Time) error
}

// AuditIndexer mirrors notification records into the search index.
// Best-effort: indexing failures never affect dispatch.
type AuditIndexer interface {
	Index(ctx context.Context, n *models.Notification)
}

// Dispatcher turns one dispatch unit into a durable audit record plus a
// best-effort delivery attempt.
//
// The notification record is committed with status PENDING before the first
// delivery attempt, so the audit trail survives any delivery failure.
// Retries mutate that one record; they never create another.
type Dispatcher struct {
	alerts        AlertLoader
	stocks        StockLoader
	users         UserLoader
	notifications NotificationRecorder
	channels      map[models.NotificationChannel]Channel
	indexer       AuditIndexer

	maxAttempts     int
	backoffBase     time.Duration
	deliveryTimeout time.Duration

	logger logger.Logger
	obs    *observability.Observability
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
}

type DispatcherConfig struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	DeliveryTimeout time.Duration
}

func NewDispatcher(
	alerts AlertLoader,
	stocks StockLoader,
	users UserLoader,
	notifications NotificationRecorder,
	channels []Channel,
	indexer AuditIndexer,
	cfg DispatcherConfig,
	log logger.Logger,
) *Dispatcher {
	byType := make(map[models.NotificationChannel]Channel, len(channels))
	for _, ch := range channels {
		byType[ch.Type()] = ch
	}
	return &Dispatcher{
		alerts:          alerts,
		stocks:          stocks,
		users:           users,
		notifications:   notifications,
		channels:        byType,
		indexer:         indexer,
		maxAttempts:     cfg.MaxAttempts,
		backoffBase:     cfg.BackoffBase,
		deliveryTimeout: cfg.DeliveryTimeout,
		logger:          log,
		now:             time.Now,
		sleep:           sleepCtx,
	}
}

// WithObservability attaches the OTel meters. Optional; prometheus counters
// are always recorded.
func (d *Dispatcher) WithObservability(obs *observability.Observability) *Dispatcher {
	d.obs = obs
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// HandleUnit processes one dispatch unit end to end. It never returns an
// error to the consumer: every failure is either retried here or recorded
// as a terminal FAILED status.
func (d *Dispatcher) HandleUnit(ctx context.Context, unit queue.DispatchUnit) {
	start := d.now()

	alert, err := d.alerts.GetByID(ctx, unit.AlertID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = stderrors.NewAlertNotFoundError(unit.AlertID.String())
		}
		d.dropUnit(unit, "alert lookup failed", err)
		return
	}

	user, err := d.users.GetByID(ctx, alert.UserID)
	if err != nil {
		d.dropUnit(unit, "recipient lookup failed", err)
		return
	}

	stockName := alert.Symbol
	if stock, err := d.stocks.GetByID(ctx, alert.StockID); err == nil {
		stockName = stock.Name
	}

	subject, body := RenderPriceAlert(alert, stockName, unit.ObservedPrice)

	channelType := models.ChannelEmail
	if user.Email == "" && user.WebhookARN != "" {
		channelType = models.ChannelWebhook
	}
	channel, ok := d.channels[channelType]
	if !ok {
		d.dropUnit(unit, "no channel configured", errors.New(string(channelType)))
		return
	}

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  user.ID,
		AlertID: &alert.ID,
		Type:    models.NotificationTypePriceAlert,
		Channel: channelType,
		Subject: subject,
		Message: body,
		Status:  models.StatusPending,
	}

	// Audit record first. If this fails there is nothing to mutate later,
	// so the unit is dropped and surfaced loudly.
	if err := d.notifications.Create(ctx, notification); err != nil {
		d.dropUnit(unit, "notification create failed", err)
		return
	}
	if d.indexer != nil {
		d.indexer.Index(ctx, notification)
	}

	sent := d.deliverWithRetry(ctx, channel, user, subject, body)

	if sent {
		sentAt := d.now()
		notification.Status = models.StatusSent
		notification.SentAt = &sentAt
		if err := d.notifications.UpdateStatus(ctx, notification.ID, models.StatusSent, &sentAt); err != nil {
			d.logger.Error("failed to record SENT status", map[string]interface{}{
				"notificationId": notification.ID.String(),
				"error":          err.Error(),
			})
		}
		metrics.DispatchOutcomes.WithLabelValues("sent").Inc()
		if d.obs != nil {
			d.obs.RecordDispatchProcessed(ctx, "sent")
		}
	} else {
		notification.Status = models.StatusFailed
		if err := d.notifications.UpdateStatus(ctx, notification.ID, models.StatusFailed, nil); err != nil {
			d.logger.Error("failed to record FAILED status", map[string]interface{}{
				"notificationId": notification.ID.String(),
				"error":          err.Error(),
			})
		}
		metrics.DispatchOutcomes.WithLabelValues("failed").Inc()
		if d.obs != nil {
			d.obs.RecordDispatchProcessed(ctx, "failed")
		}
	}

	if d.indexer != nil {
		d.indexer.Index(ctx, notification)
	}
	metrics.DispatchDuration.WithLabelValues(string(channelType)).Observe(d.now().Sub(start).Seconds())
	if d.obs != nil {
		d.obs.RecordDispatchDuration(ctx, d.now().Sub(start), string(channelType))
	}
}

// deliverWithRetry makes up to maxAttempts sequential delivery attempts,
// doubling the delay between attempts (10s, 20s, ... with the default base).
// A non-retryable error ends the loop early.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, channel Channel, user *models.User, subject, body string) bool {
	delay := d.backoffBase

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		dctx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
		err := channel.Deliver(dctx, user, subject, body)
		cancel()

		if err == nil {
			metrics.DispatchAttempts.WithLabelValues(string(channel.Type()), "ok").Inc()
			return true
		}

		metrics.DispatchAttempts.WithLabelValues(string(channel.Type()), "error").Inc()
		d.logger.Warn("delivery attempt failed", map[string]interface{}{
			"channel":     string(channel.Type()),
			"attempt":     attempt,
			"maxAttempts": d.maxAttempts,
			"error":       err.Error(),
		})

		if !stderrors.IsRetryable(err) {
			return false
		}
		if attempt < d.maxAttempts {
			d.sleep(ctx, delay)
			delay *= 2
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func (d *Dispatcher) dropUnit(unit queue.DispatchUnit, reason string, err error) {
	fields := map[string]interface{}{
		"alertId": unit.AlertID.String(),
		"reason":  reason,
	}
	var stdErr *stderrors.StandardError
	if errors.Is(err, sql.ErrNoRows) || (errors.As(err, &stdErr) && !stdErr.Retryable) {
		fields["permanent"] = true
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	d.logger.Error("dropping dispatch unit", fields)
	metrics.DispatchOutcomes.WithLabelValues("dropped").Inc()
}
