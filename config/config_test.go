package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.True(t, cfg.Postgres.RunMigrationsOnStart)
	assert.Equal(t, "localhost:6379", cfg.Redis.URI)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "http", cfg.Services)

	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Worker.VisibilityTimeout)
	assert.Equal(t, 5*time.Second, cfg.Worker.PopTimeout)
	assert.Equal(t, 30*time.Second, cfg.Worker.RetryBackoffBase)
	assert.Equal(t, "/data/outputs", cfg.Worker.OutputDir)
	assert.Equal(t, 30*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 48000, cfg.Device.BudgetMB)
	assert.False(t, cfg.Observability.Metrics.IsEnabled())
}

func TestAppConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_URI", "redis.internal:6380")
	t.Setenv("SERVICES", "worker,sweeper")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("WORKER_VISIBILITY_TIMEOUT", "5m")
	t.Setenv("DEVICE_BUDGET_MB", "24000")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.URI)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Worker.VisibilityTimeout)
	assert.Equal(t, 24000, cfg.Device.BudgetMB)

	assert.False(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsWorkerEnabled())
	assert.True(t, cfg.IsSweeperEnabled())
}

func TestAppConfig_SanitizeClamps(t *testing.T) {
	cfg := AppConfig{
		Worker: WorkerConfig{
			Concurrency:         0,
			MaxAttempts:         -1,
			VisibilityTimeout:   time.Second,
			RetryBackoffBase:    time.Minute,
			RetryBackoffCeiling: time.Second,
		},
		Sweeper: SweeperConfig{Interval: 10 * time.Millisecond},
		Device:  DeviceConfig{BudgetMB: 100},
	}
	cfg.Sanitize()

	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, 1, cfg.Worker.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Worker.VisibilityTimeout)
	assert.Equal(t, time.Minute, cfg.Worker.RetryBackoffCeiling)
	assert.Equal(t, time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 1024, cfg.Device.BudgetMB)
}

func TestParseServices(t *testing.T) {
	services, err := ParseServices("http, worker")
	require.NoError(t, err)
	assert.True(t, services[ServiceModeHTTP])
	assert.True(t, services[ServiceModeWorker])
	assert.False(t, services[ServiceModeSweeper])

	_, err = ParseServices("")
	require.Error(t, err)

	_, err = ParseServices("http,bogus")
	require.Error(t, err)

	_, err = ParseServices(" , ")
	require.Error(t, err)
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	cfg.Sanitize()
	assert.False(t, cfg.IsEnabled())

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "127.0.0.1:8125"}
	cfg.Sanitize()
	assert.True(t, cfg.IsEnabled())
}
