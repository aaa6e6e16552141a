package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "carsensor", cfg.SourceName)
	assert.Equal(t, "https://www.carsensor.net", cfg.BaseURL)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 20000, cfg.PoolSize)
	assert.Equal(t, 300, cfg.MaxListings)
	assert.Equal(t, 10, cfg.PerMakeLimit)
	assert.Equal(t, 7, cfg.InactiveAfterDays)
	assert.Equal(t, 30, cfg.DeleteAfterDays)
	assert.InDelta(t, 0.62, cfg.JPYToRUBRate, 1e-9)
	assert.False(t, cfg.RunOnce)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_LISTINGS", "50")
	t.Setenv("RUN_ONCE", "true")
	t.Setenv("SOURCE_NAME", "carsensor-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MaxListings)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, "carsensor-test", cfg.SourceName)
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{
		ConnectTimeoutSeconds: 10,
		ReadTimeoutSeconds:    30,
		BackoffSeconds:        2,
		BackoffJitterSeconds:  1,
		RequestDelaySeconds:   0.5,
		BatchPauseSeconds:     2,
		IntervalSeconds:       21600,
	}

	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 2*time.Second, cfg.BackoffBase())
	assert.Equal(t, time.Second, cfg.BackoffJitter())
	assert.Equal(t, 500*time.Millisecond, cfg.RequestDelay())
	assert.Equal(t, 6*time.Hour, cfg.Interval())
}
