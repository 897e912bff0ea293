// internal/pricing/service_test.go
package pricing

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"
)

type fakeSource struct {
	obs   *models.PriceObservation
	err   error
	calls int
}

func (f *fakeSource) LatestBySymbol(ctx context.Context, symbol string) (*models.PriceObservation, error) {
	f.calls++
	return f.obs, f.err
}

func newTestService(t *testing.T, source *fakeSource) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(client, source, 5*time.Minute, 5*time.Second, logger.NewNoOpLogger())
	return svc, mr
}

func testObservation(symbol, price string) *models.PriceObservation {
	return &models.PriceObservation{
		ID:         uuid.New(),
		StockID:    uuid.New(),
		Symbol:     symbol,
		Price:      decimal.RequireFromString(price),
		ObservedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		Source:     "ALPHA_VANTAGE",
	}
}

func TestService_Latest_CacheMissFillsCache(t *testing.T) {
	source := &fakeSource{obs: testObservation("AAPL", "151.25")}
	svc, mr := newTestService(t, source)

	obs, err := svc.Latest(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, obs.Price.Equal(decimal.RequireFromString("151.25")))
	assert.Equal(t, 1, source.calls)

	cached, err := mr.Get("latest_price:AAPL")
	require.NoError(t, err)
	var fromCache models.PriceObservation
	require.NoError(t, json.Unmarshal([]byte(cached), &fromCache))
	assert.True(t, fromCache.Price.Equal(obs.Price))

	// TTL is set so a stale latest eventually expires on its own.
	assert.Greater(t, mr.TTL("latest_price:AAPL"), time.Duration(0))
}

func TestService_Latest_CacheHitSkipsSource(t *testing.T) {
	source := &fakeSource{obs: testObservation("AAPL", "151.25")}
	svc, _ := newTestService(t, source)

	_, err := svc.Latest(context.Background(), "AAPL")
	require.NoError(t, err)

	obs, err := svc.Latest(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, obs.Price.Equal(decimal.RequireFromString("151.25")))
	assert.Equal(t, 1, source.calls, "second read must come from the cache")
}

func TestService_Latest_CorruptCacheFallsThrough(t *testing.T) {
	source := &fakeSource{obs: testObservation("AAPL", "151.25")}
	svc, mr := newTestService(t, source)

	require.NoError(t, mr.Set("latest_price:AAPL", "{not json"))

	obs, err := svc.Latest(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, obs.Price.Equal(decimal.RequireFromString("151.25")))
	assert.Equal(t, 1, source.calls)

	// The corrupt entry was replaced with a good one.
	cached, err := mr.Get("latest_price:AAPL")
	require.NoError(t, err)
	assert.NoError(t, json.Unmarshal([]byte(cached), &models.PriceObservation{}))
}

func TestService_Latest_NoObservation(t *testing.T) {
	source := &fakeSource{err: sql.ErrNoRows}
	svc, _ := newTestService(t, source)

	_, err := svc.Latest(context.Background(), "NEWIPO")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestService_Invalidate(t *testing.T) {
	source := &fakeSource{obs: testObservation("AAPL", "151.25")}
	svc, mr := newTestService(t, source)

	_, err := svc.Latest(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, mr.Exists("latest_price:AAPL"))

	require.NoError(t, svc.Invalidate(context.Background(), "AAPL"))
	assert.False(t, mr.Exists("latest_price:AAPL"))

	// Next read goes back to the source.
	source.obs = testObservation("AAPL", "160.00")
	obs, err := svc.Latest(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, obs.Price.Equal(decimal.RequireFromString("160.00")))
	assert.Equal(t, 2, source.calls)
}
