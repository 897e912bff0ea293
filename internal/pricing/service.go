// internal/pricing/service.go
package pricing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrNoPrice is returned when a symbol has no price observation at all.
// The evaluation cycle treats this as "skip", not as a failure.
var ErrNoPrice = errors.New("no price observation for symbol")

// ObservationSource is the durable price series behind the cache.
type ObservationSource interface {
	LatestBySymbol(ctx context.Context, symbol string) (*models.PriceObservation, error)
}

// Service resolves the latest known price with a cache-then-store read path.
// The cache entry expires on a TTL; price ingestion (out of process)
// invalidates the key on write.
type Service struct {
	cache   *redis.Client
	source  ObservationSource
	ttl     time.Duration
	timeout time.Duration
	logger  logger.Logger
}

func NewService(cache *redis.Client, source ObservationSource, ttl, timeout time.Duration, log logger.Logger) *Service {
	return &Service{
		cache:   cache,
		source:  source,
		ttl:     ttl,
		timeout: timeout,
		logger:  log,
	}
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("latest_price:%s", symbol)
}

// Latest returns the most recent observation for symbol. A cache miss or a
// cache error falls through to the store; only a store failure is an error.
func (s *Service) Latest(ctx context.Context, symbol string) (*models.PriceObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cached, err := s.cache.Get(ctx, cacheKey(symbol)).Result()
	if err == nil {
		var obs models.PriceObservation
		if jsonErr := json.Unmarshal([]byte(cached), &obs); jsonErr == nil {
			return &obs, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = s.cache.Del(ctx, cacheKey(symbol)).Err()
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("price cache read failed", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
	}

	obs, err := s.source.LatestBySymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoPrice
		}
		return nil, fmt.Errorf("latest price for %s: %w", symbol, err)
	}

	if data, jsonErr := json.Marshal(obs); jsonErr == nil {
		if setErr := s.cache.Set(ctx, cacheKey(symbol), data, s.ttl).Err(); setErr != nil {
			s.logger.Warn("price cache write failed", map[string]interface{}{
				"symbol": symbol,
				"error":  setErr.Error(),
			})
		}
	}

	return obs, nil
}

// Invalidate drops the cached latest price for symbol. Called by the price
// insert path so readers never see a stale latest for the full TTL.
func (s *Service) Invalidate(ctx context.Context, symbol string) error {
	return s.cache.Del(ctx, cacheKey(symbol)).Err()
}
