package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/models"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
)

// Every routine read model is stored under this prefix so a single pattern evicts them all.
const (
	routineKeyPrefix    = "routine:"
	routineCachePattern = routineKeyPrefix + "*"
)

// GridCacheKey names the cached grid for one day, or the whole week when day is empty.
func GridCacheKey(day models.Weekday) string {
	return routineKeyPrefix + "grid:" + cacheDayPart(day)
}

// ReportCacheKey names a cached utilization report.
func ReportCacheKey(dimension string, day models.Weekday) string {
	return fmt.Sprintf("%sreport:%s:%s", routineKeyPrefix, dimension, cacheDayPart(day))
}

func cacheDayPart(day models.Weekday) string {
	if day == "" {
		return "all"
	}
	return string(day)
}

// CacheRepository abstracts the Redis and in-process cache stores.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the routine read-model store and reports hit ratios to metrics.
// A failing store never fails a read: callers fall through to the database.
type CacheService struct {
	store   CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(store CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.store != nil
}

// Get loads key into dest and reports whether it was found.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.store.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key. A non-positive ttl uses the configured default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	start := time.Now()
	err := s.store.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// InvalidateRoutine drops every cached grid and report after the committed routine changed.
func (s *CacheService) InvalidateRoutine(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.store.DeleteByPattern(ctx, routineCachePattern); err != nil {
		s.logger.Warn("routine cache invalidation failed", zap.Error(err))
		return err
	}
	return nil
}

// readThrough returns the cached value for key or builds it with load and stores it.
// The bool reports a cache hit. Store errors degrade to a miss.
func readThrough[T any](ctx context.Context, cache *CacheService, key string, load func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if hit, err := cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	value, err := load(ctx)
	if err != nil {
		return value, false, err
	}
	_ = cache.Set(ctx, key, value, 0)
	return value, false, nil
}
