package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "guardian")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "costguardian")
	t.Setenv("CLICKHOUSE_HOST", "localhost")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("KAFKA_BROKERS", "localhost:9092,localhost:9093")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "costguardian", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30, cfg.Predictor.DefaultLookbackDays)
	assert.Equal(t, 25.50, cfg.Predictor.FallbackBaseMonthly)
	assert.Equal(t, 0.0, cfg.Predictor.FallbackJitter)
	assert.Equal(t, []string{"gpt-4", "gpt-4-turbo", "claude-3-opus"}, cfg.Predictor.ExpensiveModels)
	assert.True(t, cfg.Optimizer.DiversityEnabled)
	assert.False(t, cfg.Optimizer.TelemetryEnabled)
	assert.Equal(t, 365, cfg.Predictor.MaxLookbackDays)
	assert.Equal(t, 10*time.Minute, cfg.Optimizer.RecommendationTTL)
	assert.Equal(t, time.Hour, cfg.Workers.AccuracyAuditInterval)
	assert.Equal(t, "host=localhost port=5432 user=guardian password=secret dbname=costguardian sslmode=disable", cfg.Postgres.DSN())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.False(t, cfg.App.AutoMigrate)
	assert.Equal(t, "dev", cfg.App.Version)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("OPTIMIZER_DIVERSITY_ENABLED", "false")
	t.Setenv("PREDICTOR_FALLBACK_JITTER", "20")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Optimizer.DiversityEnabled)
	assert.Equal(t, 20.0, cfg.Predictor.FallbackJitter)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSec)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	require.NoError(t, os.Unsetenv("POSTGRES_HOST"))

	_, err := Load()
	assert.Error(t, err)
}
