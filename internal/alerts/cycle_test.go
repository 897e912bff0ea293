// internal/alerts/cycle_test.go
package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "stockwatch/internal/common/errors"
	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"
	"stockwatch/internal/pricing"
	"stockwatch/internal/queue"
)

// ==========================
// Fakes
// ==========================

type fakeAlertSource struct {
	mu          sync.Mutex
	eligible    []models.Alert
	eligibleErr error
	triggerWins map[uuid.UUID]bool
	triggered   []uuid.UUID
	touched     []uuid.UUID
}

func (f *fakeAlertSource) EligibleAlerts(ctx context.Context) ([]models.Alert, error) {
	return f.eligible, f.eligibleErr
}

func (f *fakeAlertSource) TryTrigger(ctx context.Context, alertID uuid.UUID, triggeredAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	won, ok := f.triggerWins[alertID]
	if !ok {
		won = true
	}
	if won {
		f.triggered = append(f.triggered, alertID)
	}
	return won, nil
}

func (f *fakeAlertSource) TouchLastChecked(ctx context.Context, alertID uuid.UUID, checkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, alertID)
	return nil
}

type fakePriceLookup struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (f *fakePriceLookup) Latest(ctx context.Context, symbol string) (*models.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return nil, pricing.ErrNoPrice
	}
	return &models.PriceObservation{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}, nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	units []queue.DispatchUnit
	err   error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, unit queue.DispatchUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.units = append(f.units, unit)
	return nil
}

func testAlert(symbol string, condType models.ConditionType, threshold string) models.Alert {
	return models.Alert{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		StockID:        uuid.New(),
		Symbol:         symbol,
		ConditionType:  condType,
		ThresholdValue: decimal.RequireFromString(threshold),
		OneTime:        true,
		IsActive:       true,
	}
}

// ==========================
// Tests
// ==========================

func TestCycle_Run_TriggersAndEnqueues(t *testing.T) {
	above := testAlert("AAPL", models.ConditionPriceAbove, "150")
	below := testAlert("TSLA", models.ConditionPriceBelow, "200")
	quiet := testAlert("MSFT", models.ConditionPriceAbove, "9999")

	alerts := &fakeAlertSource{eligible: []models.Alert{above, below, quiet}}
	prices := &fakePriceLookup{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("151.25"),
		"TSLA": decimal.RequireFromString("199.99"),
		"MSFT": decimal.RequireFromString("430.00"),
	}}
	q := &fakeEnqueuer{}

	cycle := NewCycle(alerts, prices, q, 4, logger.NewNoOpLogger())
	err := cycle.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{above.ID, below.ID}, alerts.triggered)
	assert.Len(t, q.units, 2)
	for _, unit := range q.units {
		assert.False(t, unit.ObservedPrice.IsZero())
		assert.False(t, unit.ObservedAt.IsZero())
	}
	// Every eligible alert is marked checked, triggered or not.
	assert.Len(t, alerts.touched, 3)
}

func TestCycle_Run_LostRaceDoesNotEnqueue(t *testing.T) {
	alert := testAlert("AAPL", models.ConditionPriceAbove, "100")

	alerts := &fakeAlertSource{
		eligible:    []models.Alert{alert},
		triggerWins: map[uuid.UUID]bool{alert.ID: false},
	}
	prices := &fakePriceLookup{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("101"),
	}}
	q := &fakeEnqueuer{}

	cycle := NewCycle(alerts, prices, q, 1, logger.NewNoOpLogger())
	require.NoError(t, cycle.Run(context.Background()))

	assert.Empty(t, alerts.triggered)
	assert.Empty(t, q.units)
	assert.Len(t, alerts.touched, 1)
}

func TestCycle_Run_NoPriceSkipsAlert(t *testing.T) {
	alert := testAlert("NEWIPO", models.ConditionPriceAbove, "10")

	alerts := &fakeAlertSource{eligible: []models.Alert{alert}}
	prices := &fakePriceLookup{prices: map[string]decimal.Decimal{}}
	q := &fakeEnqueuer{}

	cycle := NewCycle(alerts, prices, q, 1, logger.NewNoOpLogger())
	require.NoError(t, cycle.Run(context.Background()))

	assert.Empty(t, alerts.triggered)
	assert.Empty(t, q.units)
	assert.Len(t, alerts.touched, 1, "a skipped alert still counts as checked")
}

func TestCycle_Run_PriceErrorIsolatedToOneAlert(t *testing.T) {
	broken := testAlert("BRKN", models.ConditionPriceAbove, "10")
	healthy := testAlert("AAPL", models.ConditionPriceAbove, "100")

	alerts := &fakeAlertSource{eligible: []models.Alert{broken, healthy}}
	prices := &fakePriceLookup{
		prices: map[string]decimal.Decimal{"AAPL": decimal.RequireFromString("101")},
		errs:   map[string]error{"BRKN": errors.New("redis connection refused")},
	}
	q := &fakeEnqueuer{}

	cycle := NewCycle(alerts, prices, q, 2, logger.NewNoOpLogger())
	require.NoError(t, cycle.Run(context.Background()))

	assert.Equal(t, []uuid.UUID{healthy.ID}, alerts.triggered)
	assert.Len(t, q.units, 1)
	assert.Len(t, alerts.touched, 2)
}

func TestCycle_Run_EligibleQueryFailure(t *testing.T) {
	alerts := &fakeAlertSource{eligibleErr: errors.New("connection reset")}
	cycle := NewCycle(alerts, &fakePriceLookup{}, &fakeEnqueuer{}, 1, logger.NewNoOpLogger())

	err := cycle.Run(context.Background())
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeAlertQueryFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestCycle_Run_EnqueueFailureDoesNotAbortPass(t *testing.T) {
	first := testAlert("AAPL", models.ConditionPriceAbove, "100")
	second := testAlert("TSLA", models.ConditionPriceAbove, "100")

	alerts := &fakeAlertSource{eligible: []models.Alert{first, second}}
	prices := &fakePriceLookup{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("150"),
		"TSLA": decimal.RequireFromString("150"),
	}}
	q := &fakeEnqueuer{err: errors.New("kafka unavailable")}

	cycle := NewCycle(alerts, prices, q, 1, logger.NewNoOpLogger())
	require.NoError(t, cycle.Run(context.Background()))

	// Both alerts were triggered and checked despite the enqueue failures.
	assert.Len(t, alerts.triggered, 2)
	assert.Len(t, alerts.touched, 2)
	assert.Empty(t, q.units)
}
