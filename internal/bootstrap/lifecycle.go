package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "costguardian/internal/adapters/clickhouse"
	"costguardian/internal/adapters/kafka"
	pgclient "costguardian/internal/adapters/postgres"
	redisclient "costguardian/internal/adapters/redis"
	"costguardian/internal/api"
	chrepo "costguardian/internal/repository/clickhouse"
	"costguardian/internal/workers"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// ShutdownTargets lists everything Shutdown closes. Nil entries are skipped.
type ShutdownTargets struct {
	WG                  *sync.WaitGroup
	HTTPServer          *api.Server
	WorkerScheduler     *workers.Scheduler
	UsageRepository     *chrepo.UsageRepository
	KafkaProducer       *kafka.Producer
	UsageConsumer       *kafka.Consumer
	PerformanceConsumer *kafka.Consumer
	PG                  *pgclient.Client
	CH                  *chclient.Client
	Redis               *redisclient.Client
	ErrorTracker        errors.Tracker
}

// Shutdown stops components in dependency order:
// HTTP first so no new requests arrive, databases last since the
// usage buffer and producer may still need them.
func (l *Lifecycle) Shutdown(t ShutdownTargets, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/8] Stopping HTTP server...")
	if t.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		if err := t.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	log.Info("[2/8] Stopping background workers...")
	if t.WorkerScheduler != nil && t.WorkerScheduler.IsRunning() {
		if err := t.WorkerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		}
	}

	// Closing unblocks ReadMessage before waiting on consumer goroutines
	log.Info("[3/8] Closing Kafka consumers...")
	l.closeKafkaConsumers(map[string]*kafka.Consumer{
		"usage":             t.UsageConsumer,
		"model_performance": t.PerformanceConsumer,
	}, log)

	log.Info("[4/8] Waiting for goroutines...")
	if t.WG != nil {
		l.waitForGoroutines(t.WG, 10*time.Second, log)
	}

	log.Info("[5/8] Flushing usage buffer...")
	if t.UsageRepository != nil {
		if err := t.UsageRepository.Stop(shutdownCtx); err != nil {
			log.Errorw("Usage buffer flush failed", "error", err)
		}
	}

	log.Info("[6/8] Closing Kafka producer...")
	if t.KafkaProducer != nil {
		if err := t.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		}
	}

	log.Info("[7/8] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, t.ErrorTracker, log)
	if err := logger.Sync(); err != nil {
		log.Debugw("Log sync completed with warnings", "error", err)
	}

	log.Info("[8/8] Closing database connections...")
	l.closeDatabases(t.PG, t.CH, t.Redis, log)

	log.Info("Graceful shutdown complete")
}

func (l *Lifecycle) closeKafkaConsumers(consumers map[string]*kafka.Consumer, log *logger.Logger) {
	for name, consumer := range consumers {
		if consumer == nil {
			continue
		}
		if err := consumer.Close(); err != nil {
			log.Errorw("Kafka consumer close failed", "consumer", name, "error", err)
		}
	}
}

func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

func (l *Lifecycle) closeDatabases(pg *pgclient.Client, ch *chclient.Client, rdb *redisclient.Client, log *logger.Logger) {
	var closeErrs errors.MultiError

	if pg != nil {
		closeErrs.Add(errors.Wrap(pg.Close(), "postgres"))
	}
	if ch != nil {
		closeErrs.Add(errors.Wrap(ch.Close(), "clickhouse"))
	}
	if rdb != nil {
		closeErrs.Add(errors.Wrap(rdb.Close(), "redis"))
	}

	if err := closeErrs.ToError(); err != nil {
		log.Errorw("Database close errors", "error", err)
		return
	}
	log.Info("Database connections closed")
}
