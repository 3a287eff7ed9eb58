package bootstrap

import (
	"context"
	"sync"

	chclient "costguardian/internal/adapters/clickhouse"
	"costguardian/internal/adapters/config"
	"costguardian/internal/adapters/kafka"
	pgclient "costguardian/internal/adapters/postgres"
	redisclient "costguardian/internal/adapters/redis"
	"costguardian/internal/api"
	"costguardian/internal/api/health"
	"costguardian/internal/api/rest"
	"costguardian/internal/consumers"
	"costguardian/internal/domain/catalog"
	"costguardian/internal/events"
	chrepo "costguardian/internal/repository/clickhouse"
	pgrepo "costguardian/internal/repository/postgres"
	redisrepo "costguardian/internal/repository/redis"
	"costguardian/internal/services/optimizer"
	"costguardian/internal/services/predictor"
	"costguardian/internal/workers"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Data stores
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application
	Background  *Background

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all storage-backed repositories
type Repositories struct {
	Usage           *chrepo.UsageRepository
	Predictions     *pgrepo.PredictionRepository
	Performance     *pgrepo.PerformanceRepository
	Recommendations *redisrepo.RecommendationCache
}

// Adapters groups messaging adapters
type Adapters struct {
	KafkaProducer       *kafka.Producer
	UsageConsumer       *kafka.Consumer
	PerformanceConsumer *kafka.Consumer
	Publisher           *events.Publisher
}

// Services groups the domain services
type Services struct {
	Catalog   *catalog.Catalog
	Predictor *predictor.Service
	Optimizer *optimizer.Service
}

// Application groups the HTTP surface
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
	APIHandler    *rest.Handler
	RateLimiter   *rest.RateLimiter
}

// Background groups consumers and scheduled workers
type Background struct {
	WorkerScheduler *workers.Scheduler
	UsageSvc        *consumers.UsageConsumer
	PerformanceSvc  *consumers.PerformanceConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in order.
// Panics on any initialization error.
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts consumers, workers and the HTTP server
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// Without ingestion the usage repository still needs its flush loop
	if c.Background.UsageSvc == nil {
		c.Repos.Usage.Start(c.Context)
	}

	c.startConsumers()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorw("HTTP server failed", "error", err)
			c.Cancel()
		}
	}()

	c.Log.Info("All systems operational")
	return nil
}

// startConsumers starts the Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	type service interface{ Start(context.Context) error }

	consumerList := map[string]service{}
	if c.Background.UsageSvc != nil {
		consumerList["usage"] = c.Background.UsageSvc
	}
	if c.Background.PerformanceSvc != nil {
		consumerList["model_performance"] = c.Background.PerformanceSvc
	}
	if len(consumerList) == 0 {
		c.Log.Info("Kafka consumers disabled")
		return
	}

	names := make([]string, 0, len(consumerList))
	c.WG.Add(len(consumerList))
	for name, svc := range consumerList {
		names = append(names, name)
		go func() {
			defer c.WG.Done()
			if err := svc.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw("Consumer failed", "consumer", name, "error", err)
			}
		}()
	}

	c.Log.Infow("Event consumers started", "consumers", names)
}

// Shutdown performs graceful shutdown in dependency order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	c.Lifecycle.Shutdown(ShutdownTargets{
		WG:                  c.WG,
		HTTPServer:          c.Application.HTTPServer,
		WorkerScheduler:     c.Background.WorkerScheduler,
		UsageRepository:     c.Repos.Usage,
		KafkaProducer:       c.Adapters.KafkaProducer,
		UsageConsumer:       c.Adapters.UsageConsumer,
		PerformanceConsumer: c.Adapters.PerformanceConsumer,
		PG:                  c.PG,
		CH:                  c.CH,
		Redis:               c.Redis,
		ErrorTracker:        c.ErrorTracker,
	}, c.Log)
}
