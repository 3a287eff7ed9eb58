package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"costguardian/internal/domain/usage"
	"costguardian/internal/events"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// UsageSink is a buffered usage store with its own flush loop
type UsageSink interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	Store(ctx context.Context, record *usage.UsageRecord) error
}

// UsageConsumer reads usage events from Kafka and writes them to ClickHouse in batches
type UsageConsumer struct {
	reader MessageReader
	sink   UsageSink
	now    func() time.Time
	log    *logger.Logger
}

// NewUsageConsumer creates a new usage consumer
func NewUsageConsumer(reader MessageReader, sink UsageSink, log *logger.Logger) *UsageConsumer {
	return &UsageConsumer{
		reader: reader,
		sink:   sink,
		now:    time.Now,
		log:    log.With("component", "usage_consumer"),
	}
}

// Start consumes until ctx is cancelled, then flushes the sink
func (c *UsageConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting usage consumer (writes to ClickHouse in batches)...")

	c.sink.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.sink.Stop(stopCtx); err != nil {
			c.log.Errorw("Failed to stop usage batch writer", "error", err)
		}
	}()

	return consume(ctx, "usage", c.reader, c.handle, c.log)
}

func (c *UsageConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var event events.UsageRecordedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Mark(errors.ErrInvalidInput, err, "unmarshal usage event")
	}

	record := event.ToRecord(c.now())
	if err := c.sink.Store(ctx, record); err != nil {
		return errors.Wrap(err, "failed to store usage record")
	}

	c.log.Debugw("Usage event buffered",
		"user_id", record.UserID,
		"model", record.Model,
		"cost_usd", record.Cost,
	)
	return nil
}
