// internal/alerts/cycle.go
package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	stderrors "stockwatch/internal/common/errors"
	"stockwatch/internal/common/logger"
	"stockwatch/internal/common/metrics"
	"stockwatch/internal/models"
	"stockwatch/internal/pricing"
	"stockwatch/internal/queue"

	"github.com/google/uuid"
)

// AlertSource is the store surface the cycle needs.
type AlertSource interface {
	EligibleAlerts(ctx context.Context) ([]models.Alert, error)
	TryTrigger(ctx context.Context, alertID uuid.UUID, triggeredAt time.Time) (bool, error)
	TouchLastChecked(ctx context.Context, alertID uuid.UUID, checkedAt time.Time) error
}

// PriceLookup resolves the latest observation for a symbol.
type PriceLookup interface {
	Latest(ctx context.Context, symbol string) (*models.PriceObservation, error)
}

// DispatchEnqueuer hands a dispatch unit to the durable queue. The cycle's
// only obligation is a successful enqueue, never delivery.
type DispatchEnqueuer interface {
	Enqueue(ctx context.Context, unit queue.DispatchUnit) error
}

// Cycle runs one full, bounded evaluation pass over all eligible alerts.
//
// Alerts on different instruments have no ordering dependency, so a pass
// fans out over a bounded worker pool. Per-alert state mutation goes through
// the store's conditional update, so two overlapping passes never
// double-trigger a one-time alert.
type Cycle struct {
	alerts  AlertSource
	prices  PriceLookup
	queue   DispatchEnqueuer
	logger  logger.Logger
	workers int
	now     func() time.Time
}

func NewCycle(alerts AlertSource, prices PriceLookup, q DispatchEnqueuer, workers int, log logger.Logger) *Cycle {
	if workers <= 0 {
		workers = 1
	}
	return &Cycle{
		alerts:  alerts,
		prices:  prices,
		queue:   q,
		logger:  log,
		workers: workers,
		now:     time.Now,
	}
}

// Run executes one pass. The only error it propagates is a failure to even
// enumerate eligible alerts; everything per-alert is isolated and logged.
func (c *Cycle) Run(ctx context.Context) error {
	start := c.now()

	eligible, err := c.alerts.EligibleAlerts(ctx)
	if err != nil {
		metrics.CycleRuns.WithLabelValues("error").Inc()
		return stderrors.NewAlertQueryFailedError(err)
	}

	c.logger.Info("evaluation cycle started", map[string]interface{}{
		"eligible": len(eligible),
	})

	jobs := make(chan models.Alert)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for alert := range jobs {
				c.evaluateOne(ctx, alert)
			}
		}()
	}

feed:
	for _, alert := range eligible {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- alert:
		}
	}
	close(jobs)
	wg.Wait()

	metrics.CycleRuns.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(c.now().Sub(start).Seconds())

	c.logger.Info("evaluation cycle finished", map[string]interface{}{
		"eligible": len(eligible),
		"duration": c.now().Sub(start).String(),
	})
	return nil
}

// evaluateOne runs the per-alert steps. Failures here never abort the pass
// for other alerts.
func (c *Cycle) evaluateOne(ctx context.Context, alert models.Alert) {
	now := c.now()

	// The check happened, whatever its outcome.
	defer func() {
		if err := c.alerts.TouchLastChecked(ctx, alert.ID, now); err != nil {
			c.logger.Warn("failed to update last_checked_at", map[string]interface{}{
				"alertId": alert.ID.String(),
				"error":   err.Error(),
			})
		}
	}()

	obs, err := c.prices.Latest(ctx, alert.Symbol)
	if err != nil {
		if errors.Is(err, pricing.ErrNoPrice) {
			metrics.AlertsEvaluated.WithLabelValues("skipped_no_price").Inc()
			return
		}
		metrics.AlertsEvaluated.WithLabelValues("error").Inc()
		lookupErr := stderrors.NewPriceLookupFailedError(alert.Symbol, err)
		c.logger.Warn("price lookup failed, skipping alert this pass", map[string]interface{}{
			"alertId":   alert.ID.String(),
			"symbol":    alert.Symbol,
			"retryable": lookupErr.Retryable,
			"error":     lookupErr.Error(),
		})
		return
	}

	if !Evaluate(alert.Condition(), obs.Price) {
		metrics.AlertsEvaluated.WithLabelValues("not_triggered").Inc()
		return
	}

	won, err := c.alerts.TryTrigger(ctx, alert.ID, now)
	if err != nil {
		metrics.AlertsEvaluated.WithLabelValues("error").Inc()
		c.logger.Error("trigger update failed", map[string]interface{}{
			"alertId": alert.ID.String(),
			"error":   err.Error(),
		})
		return
	}
	if !won {
		// A concurrent pass got there first. Expected race; it dispatched.
		return
	}

	metrics.AlertsEvaluated.WithLabelValues("triggered").Inc()

	unit := queue.DispatchUnit{
		AlertID:       alert.ID,
		ObservedPrice: obs.Price,
		ObservedAt:    obs.ObservedAt,
	}
	if err := c.queue.Enqueue(ctx, unit); err != nil {
		// The trigger is durable but the dispatch unit was lost; surface it
		// loudly so an operator can resend.
		c.logger.Error("failed to enqueue dispatch unit", map[string]interface{}{
			"alertId": alert.ID.String(),
			"symbol":  alert.Symbol,
			"error":   err.Error(),
		})
		return
	}

	c.logger.Info("alert triggered", map[string]interface{}{
		"alertId": alert.ID.String(),
		"symbol":  alert.Symbol,
		"price":   obs.Price.String(),
	})
}
