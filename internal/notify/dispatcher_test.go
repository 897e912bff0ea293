// internal/notify/dispatcher_test.go
package notify

import (
	"context"
	"database/sql"
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
	"stockwatch/internal/queue"
)

// ==========================
// Fakes
// ==========================

type fakeAlertLoader struct {
	alert *models.Alert
	err   error
}

func (f *fakeAlertLoader) GetByID(ctx context.Context, alertID uuid.UUID) (*models.Alert, error) {
	return f.alert, f.err
}

type fakeStockLoader struct {
	stock *models.Stock
	err   error
}

func (f *fakeStockLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	return f.stock, f.err
}

type fakeUserLoader struct {
	user *models.User
	err  error
}

func (f *fakeUserLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.user, f.err
}

// eventRecorder captures the order of store writes and delivery attempts
// so tests can assert the record-before-delivery ordering.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type fakeRecorder struct {
	rec       *eventRecorder
	created   []*models.Notification
	updates   []models.NotificationStatus
	sentAts   []*time.Time
	createErr error
}

func (f *fakeRecorder) Create(ctx context.Context, n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.rec.add("create:" + string(n.Status))
	copied := *n
	f.created = append(f.created, &copied)
	return nil
}

func (f *fakeRecorder) UpdateStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, sentAt *time.Time) error {
	f.rec.add("update:" + string(status))
	f.updates = append(f.updates, status)
	f.sentAts = append(f.sentAts, sentAt)
	return nil
}

type scriptedChannel struct {
	rec      *eventRecorder
	channel  models.NotificationChannel
	results  []error
	attempts int
}

func (c *scriptedChannel) Type() models.NotificationChannel {
	return c.channel
}

func (c *scriptedChannel) Deliver(ctx context.Context, user *models.User, subject, body string) error {
	c.rec.add("deliver")
	idx := c.attempts
	c.attempts++
	if idx < len(c.results) {
		return c.results[idx]
	}
	return nil
}

// ==========================
// Helpers
// ==========================

func testDispatchAlert() *models.Alert {
	return &models.Alert{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		StockID:        uuid.New(),
		Symbol:         "AAPL",
		ConditionType:  models.ConditionPriceAbove,
		ThresholdValue: decimal.RequireFromString("150"),
		OneTime:        true,
	}
}

func testDispatchUnit(alertID uuid.UUID) queue.DispatchUnit {
	return queue.DispatchUnit{
		AlertID:       alertID,
		ObservedPrice: decimal.RequireFromString("151.25"),
		ObservedAt:    time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func newTestDispatcher(
	t *testing.T,
	alert *models.Alert,
	channel Channel,
	recorder *fakeRecorder,
) (*Dispatcher, *[]time.Duration) {
	t.Helper()

	user := &models.User{
		ID:       alert.UserID,
		Email:    "holder@example.com",
		FullName: "Pat Holder",
		IsActive: true,
	}
	stock := &models.Stock{ID: alert.StockID, Symbol: alert.Symbol, Name: "Apple Inc."}

	d := NewDispatcher(
		&fakeAlertLoader{alert: alert},
		&fakeStockLoader{stock: stock},
		&fakeUserLoader{user: user},
		recorder,
		[]Channel{channel},
		nil,
		DispatcherConfig{
			MaxAttempts:     3,
			BackoffBase:     10 * time.Second,
			DeliveryTimeout: 30 * time.Second,
		},
		logger.NewNoOpLogger(),
	)

	var sleeps []time.Duration
	d.sleep = func(ctx context.Context, delay time.Duration) {
		sleeps = append(sleeps, delay)
	}
	return d, &sleeps
}

// ==========================
// Tests
// ==========================

func TestDispatcher_SuccessFirstAttempt(t *testing.T) {
	alert := testDispatchAlert()
	rec := &eventRecorder{}
	recorder := &fakeRecorder{rec: rec}
	channel := &scriptedChannel{rec: rec, channel: models.ChannelEmail}

	d, sleeps := newTestDispatcher(t, alert, channel, recorder)
	d.HandleUnit(context.Background(), testDispatchUnit(alert.ID))

	require.Len(t, recorder.created, 1)
	assert.Equal(t, models.StatusPending, recorder.created[0].Status)
	assert.Equal(t, alert.UserID, recorder.created[0].UserID)
	require.NotNil(t, recorder.created[0].AlertID)
	assert.Equal(t, alert.ID, *recorder.created[0].AlertID)

	require.Len(t, recorder.updates, 1)
	assert.Equal(t, models.StatusSent, recorder.updates[0])
	require.NotNil(t, recorder.sentAts[0])

	assert.Equal(t, 1, channel.attempts)
	assert.Empty(t, *sleeps)
}

func TestDispatcher_RecordCreatedBeforeDelivery(t *testing.T) {
	alert := testDispatchAlert()
	rec := &eventRecorder{}
	recorder := &fakeRecorder{rec: rec}
	channel := &scriptedChannel{rec: rec, channel: models.ChannelEmail}

	d, _ := newTestDispatcher(t, alert, channel, recorder)
	d.HandleUnit(context.Background(), testDispatchUnit(alert.ID))

	require.GreaterOrEqual(t, len(rec.events), 2)
	assert.Equal(t, "create:PENDING", rec.events[0], "audit record must exist before any delivery attempt")
	assert.Equal(t, "deliver", rec.events[1])
}

func TestDispatcher_RetryableFailureExhaustsAttempts(t *testing.T) {
	alert := testDispatchAlert()
	rec := &eventRecorder{}
	recorder := &fakeRecorder{rec: rec}
	channel := &scriptedChannel{
		rec:     rec,
		channel: models.ChannelEmail,
		results: []error{
			stderrors.NewDeliveryFailedError("EMAIL", context.DeadlineExceeded),
			stderrors.NewDeliveryFailedError("EMAIL", context.DeadlineExceeded),
			stderrors.NewDeliveryFailedError("EMAIL", context.DeadlineExceeded),
		},
	}

	d, sleeps := newTestDispatcher(t, alert, channel, recorder)
	d.HandleUnit(context.Background(), testDispatchUnit(alert.ID))

	assert.Equal(t, 3, channel.attempts, "exactly max attempts, no more")
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, *sleeps, "doubling delay between attempts")

	require.Len(t, recorder.updates, 1)
	assert.Equal(t, models.StatusFailed, recorder.updates[0])
	assert.Nil(t, recorder.sentAts[0], "a failed notification has no sent time")
}

func TestDispatcher_RecoversOnSecondAttempt(t *testing.T) {
	alert := testDispatchAlert()
	rec := &eventRecorder{}
	recorder := &fakeRecorder{rec: rec}
	channel := &scriptedChannel{
		rec:     rec,
		channel: models.ChannelEmail,
		results: []error{stderrors.NewDeliveryTimeoutError("EMAIL"), nil},
	}

	d, sleeps := newTestDispatcher(t, alert, channel, recorder)
	d.HandleUnit(context.Background(), testDispatchUnit(alert.ID))

	assert.Equal(t, 2, channel.attempts)
	assert.Equal(t, []time.Duration{10 * time.Second}, *sleeps)

	require.Len(t, recorder.updates, 1)
	assert.Equal(t, models.StatusSent, recorder.updates[0])
	require.Len(t, recorder.created, 1, "retries reuse the original record")
}

func TestDispatcher_NonRetryableFailureStopsEarly(t *testing.T) {
	alert := testDispatchAlert()
	rec := &eventRecorder{}
	recorder := &fakeRecorder{rec: rec}
	channel := &scriptedChannel{
		rec:     rec,
		channel: models.ChannelEmail,
		results: []error{stderrors.NewRecipientNotFoundError(alert.UserID.String())},
	}

	d, sleeps := newTestDispatcher(t, alert, channel, recorder)
	d.HandleUnit(context.Background(), testDispatchUnit(alert.ID))

	assert.Equal(t, 1, channel.attempts, "data faults are not retried")
	assert.Empty(t, *sleeps)

	require.Len(t, recorder.updates, 1)
	assert.Equal(t, models.StatusFailed, recorder.updates[0])
}

func TestDispatcher_MissingAlertDropsUnit(t *testing.T) {
	rec := &eventRecorder{}
	recorder := &fakeRecorder{rec: rec}
	channel := &scriptedChannel{rec: rec, channel: models.ChannelEmail}

	d := NewDispatcher(
		&fakeAlertLoader{err: sql.ErrNoRows},
		&fakeStockLoader{},
		&fakeUserLoader{},
		recorder,
		[]Channel{channel},
		nil,
		DispatcherConfig{MaxAttempts: 3, BackoffBase: 10 * time.Second, DeliveryTimeout: 30 * time.Second},
		logger.NewNoOpLogger(),
	)
	d.HandleUnit(context.Background(), testDispatchUnit(uuid.New()))

	assert.Empty(t, recorder.created, "no audit record for a deleted alert")
	assert.Zero(t, channel.attempts)
}

func TestDispatcher_CreateFailureSkipsDelivery(t *testing.T) {
	alert := testDispatchAlert()
	rec := &eventRecorder{}
	recorder := &fakeRecorder{rec: rec, createErr: sql.ErrConnDone}
	channel := &scriptedChannel{rec: rec, channel: models.ChannelEmail}

	d, _ := newTestDispatcher(t, alert, channel, recorder)
	d.HandleUnit(context.Background(), testDispatchUnit(alert.ID))

	assert.Zero(t, channel.attempts, "no delivery without a PENDING record")
	assert.Empty(t, recorder.updates)
}
