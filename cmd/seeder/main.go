// Command seeder fills the usage store with synthetic history so forecasts
// and recommendations can be exercised locally.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	chclient "costguardian/internal/adapters/clickhouse"
	"costguardian/internal/adapters/config"
	"costguardian/internal/adapters/kafka"
	"costguardian/internal/domain/catalog"
	"costguardian/internal/events"
	chrepo "costguardian/internal/repository/clickhouse"
	"costguardian/migrations"
	"costguardian/pkg/logger"
)

func main() {
	env := flag.String("env", "dev", "Profile: dev, test, load")
	sink := flag.String("sink", "clickhouse", "Destination: clickhouse (direct) or kafka (through ingestion)")
	dryRun := flag.Bool("dry-run", false, "Generate and count events without writing them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()
	log := logger.Get()

	profile, ok := profiles[*env]
	if !ok {
		log.Fatalf("Unknown profile %q", *env)
	}

	cat, err := catalog.Load(cfg.Optimizer.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}

	log.Infow("Starting seeder",
		"profile", *env,
		"sink", *sink,
		"dry_run", *dryRun,
		"users", profile.Users,
		"days", profile.Days,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	emit, closeSink := openSink(ctx, cfg, *sink, *dryRun, log)

	start := time.Now()
	n, genErr := NewGenerator(cat, profile).Generate(time.Now().UTC(), emit)
	if err := closeSink(); err != nil {
		log.Errorw("Failed to flush sink", "error", err)
	}
	if genErr != nil {
		log.Fatalf("Seeding stopped after %d events: %v", n, genErr)
	}

	log.Infow("Seeding complete",
		"events", humanize.Comma(int64(n)),
		"took", time.Since(start).Round(time.Millisecond).String(),
	)
}

// openSink returns the per-event writer and a function that flushes and closes it
func openSink(ctx context.Context, cfg *config.Config, sink string, dryRun bool, log *logger.Logger) (func(*events.UsageRecordedEvent) error, func() error) {
	if dryRun {
		return func(*events.UsageRecordedEvent) error { return nil }, func() error { return nil }
	}

	switch sink {
	case "kafka":
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		emit := func(e *events.UsageRecordedEvent) error {
			return producer.Publish(ctx, kafka.TopicUsageRecorded, e.UserID, e)
		}
		return emit, producer.Close

	case "clickhouse":
		client, err := chclient.NewClient(ctx, cfg.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		if err := migrations.ApplyClickHouse(ctx, client.Conn()); err != nil {
			log.Fatalf("ClickHouse migrations failed: %v", err)
		}

		repo := chrepo.NewUsageRepository(client.Conn(), chrepo.UsageRepositoryConfig{
			BatchSize:     5000,
			FlushInterval: time.Second,
		})
		repo.Start(ctx)

		emit := func(e *events.UsageRecordedEvent) error {
			return repo.Store(ctx, e.ToRecord(time.Now()))
		}
		closeFn := func() error {
			defer client.Close()
			if err := repo.Flush(context.Background()); err != nil {
				return err
			}
			return repo.Stop(context.Background())
		}
		return emit, closeFn

	default:
		log.Fatalf("Unknown sink %q", sink)
		return nil, nil
	}
}
