package consumers

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/performance"
	"costguardian/internal/events"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// PerformanceTracker records outcomes measured by the gateway
type PerformanceTracker interface {
	TrackObservedPerformance(ctx context.Context, userID, model string, task catalog.TaskType, outcome performance.Outcome) error
}

// PerformanceConsumer feeds outcome reports from Kafka into the optimizer
type PerformanceConsumer struct {
	reader  MessageReader
	tracker PerformanceTracker
	log     *logger.Logger
}

// NewPerformanceConsumer creates a new performance consumer
func NewPerformanceConsumer(reader MessageReader, tracker PerformanceTracker, log *logger.Logger) *PerformanceConsumer {
	return &PerformanceConsumer{
		reader:  reader,
		tracker: tracker,
		log:     log.With("component", "performance_consumer"),
	}
}

// Start consumes until ctx is cancelled
func (c *PerformanceConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting model performance consumer...")
	return consume(ctx, "performance", c.reader, c.handle, c.log)
}

func (c *PerformanceConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var event events.ModelPerformanceEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Mark(errors.ErrInvalidInput, err, "unmarshal performance event")
	}

	if err := c.tracker.TrackObservedPerformance(ctx, event.UserID, event.Model, event.TaskType, event.Outcome); err != nil {
		return errors.Wrap(err, "failed to track model performance")
	}
	return nil
}
