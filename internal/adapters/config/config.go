package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"costguardian/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Predictor     PredictorConfig
	Optimizer     OptimizerConfig
	RateLimit     RateLimitConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"costguardian"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`

	// AutoMigrate applies embedded schema migrations at startup
	AutoMigrate bool `envconfig:"AUTO_MIGRATE" default:"false"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"costguardian"`

	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"costguardian"`

	// ConsumersEnabled turns on usage and performance ingestion
	ConsumersEnabled bool `envconfig:"KAFKA_CONSUMERS_ENABLED" default:"true"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type PredictorConfig struct {
	DefaultLookbackDays int     `envconfig:"PREDICTOR_LOOKBACK_DAYS" default:"30"`
	MaxLookbackDays     int     `envconfig:"PREDICTOR_MAX_LOOKBACK_DAYS" default:"365"`
	MinRecords          int     `envconfig:"PREDICTOR_MIN_RECORDS" default:"3"`
	FallbackBaseMonthly float64 `envconfig:"PREDICTOR_FALLBACK_BASE_MONTHLY" default:"25.50"`
	FallbackJitter      float64 `envconfig:"PREDICTOR_FALLBACK_JITTER" default:"0"` // 0 keeps the fallback deterministic
	FallbackSeed        int64   `envconfig:"PREDICTOR_FALLBACK_SEED" default:"1"`

	ExpensiveModels         []string `envconfig:"PREDICTOR_EXPENSIVE_MODELS" default:"gpt-4,gpt-4-turbo,claude-3-opus"`
	ExpensiveShareThreshold float64  `envconfig:"PREDICTOR_EXPENSIVE_SHARE_THRESHOLD" default:"0.3"`
	PeakHourShareThreshold  float64  `envconfig:"PREDICTOR_PEAK_HOUR_SHARE_THRESHOLD" default:"0.2"`
	HighMonthlySpend        float64  `envconfig:"PREDICTOR_HIGH_MONTHLY_SPEND" default:"100"`
	HighDailyRequests       float64  `envconfig:"PREDICTOR_HIGH_DAILY_REQUESTS" default:"1000"`
}

type OptimizerConfig struct {
	CatalogPath      string `envconfig:"OPTIMIZER_CATALOG_PATH"` // empty uses the compiled-in catalog
	DiversityEnabled bool   `envconfig:"OPTIMIZER_DIVERSITY_ENABLED" default:"true"`

	HistoryCapacity int `envconfig:"OPTIMIZER_HISTORY_CAPACITY" default:"10000"`
	HistorySize     int `envconfig:"OPTIMIZER_HISTORY_SIZE" default:"100"`

	PreferenceWindow         int           `envconfig:"OPTIMIZER_PREFERENCE_WINDOW" default:"50"`
	RecommendationWindowDays int           `envconfig:"OPTIMIZER_RECOMMENDATION_WINDOW_DAYS" default:"30"`
	RecommendationLimit      int           `envconfig:"OPTIMIZER_RECOMMENDATION_LIMIT" default:"100"`
	RecommendationTTL        time.Duration `envconfig:"OPTIMIZER_RECOMMENDATION_TTL" default:"10m"`

	// TelemetryEnabled corrects latency estimates with gateway-measured calls
	TelemetryEnabled    bool `envconfig:"OPTIMIZER_TELEMETRY_ENABLED" default:"false"`
	TelemetryMinSamples int  `envconfig:"OPTIMIZER_TELEMETRY_MIN_SAMPLES" default:"20"`
}

type RateLimitConfig struct {
	Enabled bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`

	// Backend is "memory" (per replica) or "redis" (shared by all replicas)
	Backend         string  `envconfig:"RATE_LIMIT_BACKEND" default:"memory"`
	RequestsPerSec  float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst           int     `envconfig:"RATE_LIMIT_BURST" default:"20"`
	MaxTrackedUsers int     `envconfig:"RATE_LIMIT_MAX_CLIENTS" default:"10000"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	AccuracyAuditInterval    time.Duration `envconfig:"WORKER_ACCURACY_AUDIT_INTERVAL" default:"1h"`
	AccuracyAuditMaxSubjects int           `envconfig:"WORKER_ACCURACY_AUDIT_MAX_SUBJECTS" default:"200"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
