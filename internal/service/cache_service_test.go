package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

type brokenCacheStore struct {
	deletes int
}

func (b *brokenCacheStore) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (b *brokenCacheStore) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func (b *brokenCacheStore) DeleteByPattern(context.Context, string) error {
	b.deletes++
	return errors.New("connection refused")
}

func TestRoutineCacheKeys(t *testing.T) {
	assert.Equal(t, "routine:grid:all", GridCacheKey(""))
	assert.Equal(t, "routine:grid:Monday", GridCacheKey(models.Monday))
	assert.Equal(t, "routine:report:rooms:Friday", ReportCacheKey(ReportDimensionRooms, models.Friday))
}

func TestReadThroughDegradesToLoaderWhenStoreFails(t *testing.T) {
	cache := NewCacheService(&brokenCacheStore{}, NewMetricsService(), time.Minute, nil, true)
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	value, hit, err := readThrough(context.Background(), cache, "routine:grid:all", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, value)

	_, _, err = readThrough(context.Background(), cache, "routine:grid:all", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestReadThroughWithoutCache(t *testing.T) {
	var cache *CacheService
	value, hit, err := readThrough(context.Background(), cache, "k", func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", value)
	assert.NoError(t, cache.InvalidateRoutine(context.Background()))
}

func TestReadThroughPropagatesLoaderError(t *testing.T) {
	cache := NewCacheService(&brokenCacheStore{}, nil, 0, nil, true)
	_, _, err := readThrough(context.Background(), cache, "k", func(context.Context) (string, error) {
		return "", errors.New("db down")
	})
	require.EqualError(t, err, "db down")
}

func TestInvalidateRoutineReportsStoreFailure(t *testing.T) {
	store := &brokenCacheStore{}
	cache := NewCacheService(store, nil, 0, nil, true)
	assert.Error(t, cache.InvalidateRoutine(context.Background()))
	assert.Equal(t, 1, store.deletes)

	disabled := NewCacheService(store, nil, 0, nil, false)
	assert.NoError(t, disabled.InvalidateRoutine(context.Background()))
	assert.Equal(t, 1, store.deletes)
}
