package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 180, cfg.Routine.MaxDurationMinutes)
	assert.Equal(t, 15, cfg.Routine.MinGapMinutes)
	assert.Equal(t, []string{"201", "202", "203", "301", "302"}, cfg.Routine.GridRooms)
	assert.Len(t, cfg.Routine.GridTimeSlots, 9)
	assert.False(t, cfg.Routine.ImportCrossCheck)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Reports.SignedURLTTL)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CACHE_BACKEND", "REDIS")
	v.Set("ROUTINE_GRID_ROOMS", " 101 , ,102")
	v.Set("CACHE_TTL", "not-a-duration")
	v.Set("ROUTINE_IMPORT_MAX_BYTES", -1)

	cfg := fromViper(v)

	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, []string{"101", "102"}, cfg.Routine.GridRooms)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, int64(2*1024*1024), cfg.Routine.ImportMaxBytes)
}
