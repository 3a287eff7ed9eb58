package bootstrap

import (
	"os"

	chclient "costguardian/internal/adapters/clickhouse"
	"costguardian/internal/adapters/config"
	errnoop "costguardian/internal/adapters/errors/noop"
	"costguardian/internal/adapters/errors/sentry"
	"costguardian/internal/adapters/kafka"
	pgclient "costguardian/internal/adapters/postgres"
	redisclient "costguardian/internal/adapters/redis"
	"costguardian/internal/api"
	"costguardian/internal/api/health"
	"costguardian/internal/api/rest"
	"costguardian/internal/consumers"
	"costguardian/internal/domain/catalog"
	"costguardian/internal/events"
	"costguardian/internal/metrics"
	chrepo "costguardian/internal/repository/clickhouse"
	pgrepo "costguardian/internal/repository/postgres"
	redisrepo "costguardian/internal/repository/redis"
	"costguardian/internal/services/optimizer"
	"costguardian/internal/services/predictor"
	"costguardian/migrations"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	c.Log = logger.Get()
	c.Log.Infow("Starting service", "name", cfg.App.Name, "env", cfg.App.Env, "version", cfg.App.Version)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure
// ========================================

// MustInitInfrastructure connects to PostgreSQL, ClickHouse and Redis
func (c *Container) MustInitInfrastructure() {
	var err error

	c.PG, err = pgclient.NewClient(c.Context, c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	c.CH, err = chclient.NewClient(c.Context, c.Config.ClickHouse)
	if err != nil {
		c.Log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}

	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("Failed to connect to Redis: %v", err)
	}

	if c.Config.App.AutoMigrate {
		if err := migrations.ApplyPostgres(c.Context, c.PG.DB()); err != nil {
			c.Log.Fatalf("PostgreSQL migrations failed: %v", err)
		}
		if err := migrations.ApplyClickHouse(c.Context, c.CH.Conn()); err != nil {
			c.Log.Fatalf("ClickHouse migrations failed: %v", err)
		}
	}

	metrics.RegisterCustomCollector(
		metrics.NewCustomCollector(c.Log, c.PG.DB(), c.CH.Conn(), c.Redis.Client()),
	)

	c.Log.Info("Infrastructure initialized")
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories creates the storage repositories
func (c *Container) MustInitRepositories() {
	c.Repos.Usage = chrepo.NewUsageRepository(c.CH.Conn(), chrepo.UsageRepositoryConfig{
		BatchSize:     c.Config.ClickHouse.BatchSize,
		FlushInterval: c.Config.ClickHouse.FlushInterval,
	})
	c.Repos.Predictions = pgrepo.NewPredictionRepository(c.PG.DB())
	c.Repos.Performance = pgrepo.NewPerformanceRepository(c.PG.DB())
	c.Repos.Recommendations = redisrepo.NewRecommendationCache(c.Redis.Client())

	c.Log.Info("Repositories initialized")
}

// ========================================
// Phase 4: Messaging
// ========================================

// MustInitAdapters creates the Kafka producer, consumers and event publisher
func (c *Container) MustInitAdapters() {
	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer, c.Log)

	if c.Config.Kafka.ConsumersEnabled {
		c.Adapters.UsageConsumer = provideKafkaConsumer(c.Config, kafka.TopicUsageRecorded, c.Log)
		c.Adapters.PerformanceConsumer = provideKafkaConsumer(c.Config, kafka.TopicModelPerformance, c.Log)
	}

	c.Log.Info("Adapters initialized")
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices creates the cost predictor and model optimizer
func (c *Container) MustInitServices() {
	cat, err := catalog.Load(c.Config.Optimizer.CatalogPath)
	if err != nil {
		c.Log.Fatalf("Failed to load model catalog: %v", err)
	}
	c.Services.Catalog = cat
	c.Log.Infow("Model catalog loaded", "version", cat.Version, "models", len(cat.ModelIDs()))

	c.Services.Predictor = predictor.NewService(
		c.Repos.Usage,
		c.Repos.Predictions,
		c.Adapters.Publisher,
		predictorConfig(c.Config.Predictor),
		c.Log,
	)

	c.Services.Optimizer, err = optimizer.NewService(
		cat,
		c.Repos.Performance,
		c.Repos.Recommendations,
		c.Adapters.Publisher,
		nil,
		optimizerConfig(c.Config.Optimizer),
		c.Log,
	)
	if err != nil {
		c.Log.Fatalf("Failed to create model optimizer: %v", err)
	}

	c.Log.Info("Services initialized")
}

func predictorConfig(cfg config.PredictorConfig) predictor.Config {
	return predictor.Config{
		DefaultLookbackDays:     cfg.DefaultLookbackDays,
		MaxLookbackDays:         cfg.MaxLookbackDays,
		MinRecords:              cfg.MinRecords,
		FallbackBaseMonthly:     cfg.FallbackBaseMonthly,
		FallbackJitter:          cfg.FallbackJitter,
		FallbackSeed:            cfg.FallbackSeed,
		ExpensiveModels:         cfg.ExpensiveModels,
		ExpensiveShareThreshold: cfg.ExpensiveShareThreshold,
		PeakHourShareThreshold:  cfg.PeakHourShareThreshold,
		HighMonthlySpend:        cfg.HighMonthlySpend,
		HighDailyRequests:       cfg.HighDailyRequests,
	}
}

func optimizerConfig(cfg config.OptimizerConfig) optimizer.Config {
	return optimizer.Config{
		DiversityEnabled:         cfg.DiversityEnabled,
		HistoryCapacity:          cfg.HistoryCapacity,
		HistorySize:              cfg.HistorySize,
		PreferenceWindow:         cfg.PreferenceWindow,
		RecommendationWindowDays: cfg.RecommendationWindowDays,
		RecommendationLimit:      cfg.RecommendationLimit,
		RecommendationTTL:        cfg.RecommendationTTL,
		TelemetryLatency:         cfg.TelemetryEnabled,
		TelemetryMinSamples:      cfg.TelemetryMinSamples,
	}
}

// ========================================
// Phase 6: HTTP
// ========================================

// MustInitApplication builds the REST API, health probes and HTTP server
func (c *Container) MustInitApplication() {
	c.Application.APIHandler = rest.NewHandler(
		c.Services.Predictor,
		c.Services.Optimizer,
		c.Config.HTTP.RequestTimeout,
		c.Log,
	)

	if c.Config.RateLimit.Enabled {
		limiter, err := provideLimiter(c.Config.RateLimit, c.Redis)
		if err != nil {
			c.Log.Fatalf("Failed to create rate limiter: %v", err)
		}
		c.Application.RateLimiter = rest.NewRateLimiter(limiter, c.Config.RateLimit.RequestsPerSec, c.Log)
		c.Log.Infow("Rate limiting enabled", "backend", c.Config.RateLimit.Backend)
	}

	// Scheduler is created here so /health can report worker state
	c.Background.WorkerScheduler = provideScheduler(c)

	c.Application.HealthHandler = health.New(
		c.Log,
		map[string]health.Checker{
			"postgres":   c.PG,
			"clickhouse": c.CH,
			"redis":      c.Redis,
		},
		c.Background.WorkerScheduler,
		c.Config.App.Name,
		c.Config.App.Version,
	)

	c.Application.HTTPServer = provideHTTPServer(c)

	c.Log.Info("Application initialized")
}

// ========================================
// Phase 7: Background
// ========================================

// MustInitBackground wires Kafka consumers to the services
func (c *Container) MustInitBackground() {
	if c.Adapters.UsageConsumer != nil {
		c.Background.UsageSvc = consumers.NewUsageConsumer(c.Adapters.UsageConsumer, c.Repos.Usage, c.Log)
	}
	if c.Adapters.PerformanceConsumer != nil {
		c.Background.PerformanceSvc = consumers.NewPerformanceConsumer(c.Adapters.PerformanceConsumer, c.Services.Optimizer, c.Log)
	}

	c.Log.Infow("Background processing initialized",
		"workers", len(c.Background.WorkerScheduler.GetWorkers()),
		"consumers_enabled", c.Config.Kafka.ConsumersEnabled,
	)
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	hostname, _ := os.Hostname()
	tracker, err := sentry.New(sentry.Options{
		DSN:         cfg.ErrorTracking.SentryDSN,
		Environment: cfg.ErrorTracking.Environment,
		Release:     cfg.App.Name + "@" + cfg.App.Version,
		ServerName:  hostname,
	})
	if err != nil {
		log.Warnw("Failed to initialize Sentry, falling back to no-op tracker", "error", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func provideLimiter(cfg config.RateLimitConfig, rdb *redisclient.Client) (rest.Limiter, error) {
	switch cfg.Backend {
	case "redis":
		return redisrepo.NewRateLimiter(rdb.Client(), cfg.RequestsPerSec, cfg.Burst)
	case "memory", "":
		return rest.NewMemoryLimiter(cfg.RequestsPerSec, cfg.Burst, cfg.MaxTrackedUsers)
	default:
		return nil, errors.NewValidationError("RATE_LIMIT_BACKEND", "must be memory or redis", cfg.Backend)
	}
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   true,
	})
	log.Infow("Kafka producer created", "brokers", cfg.Kafka.Brokers)
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	log.Debugw("Creating Kafka consumer", "topic", topic)
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
}

func provideHTTPServer(c *Container) *api.Server {
	return api.NewServer(
		api.ServerConfig{
			Port:         c.Config.HTTP.Port,
			ServiceName:  c.Config.App.Name,
			Version:      c.Config.App.Version,
			ReadTimeout:  c.Config.HTTP.ReadTimeout,
			WriteTimeout: c.Config.HTTP.WriteTimeout,
		},
		c.Application.HealthHandler,
		c.Application.APIHandler,
		c.Application.RateLimiter,
		c.Log,
	)
}
