package events

import (
	"context"

	"costguardian/internal/adapters/kafka"
	"costguardian/internal/domain/performance"
	"costguardian/internal/domain/prediction"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// Producer is the slice of the Kafka producer the publisher needs
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher publishes domain events to Kafka
type Publisher struct {
	producer Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log.With("component", "event_publisher"),
	}
}

// PublishPredictionCreated publishes a stored prediction, keyed by subject
func (p *Publisher) PublishPredictionCreated(ctx context.Context, sp *prediction.StoredPrediction) error {
	key := sp.UserID
	if sp.OrganizationID != nil && *sp.OrganizationID != "" {
		key = *sp.OrganizationID
	}

	event := PredictionCreatedEvent{
		Base:       NewBaseEvent(kafka.TopicPredictionCreated, "cost_predictor", sp.UserID),
		Prediction: sp,
	}
	return p.publish(ctx, kafka.TopicPredictionCreated, key, event)
}

// PublishModelPerformance publishes a tracked performance record, keyed by user
func (p *Publisher) PublishModelPerformance(ctx context.Context, rec *performance.Record) error {
	event := ModelPerformanceTrackedEvent{
		Base:   NewBaseEvent(kafka.TopicModelPerformanceTracked, "model_optimizer", rec.UserID),
		Record: rec,
	}
	return p.publish(ctx, kafka.TopicModelPerformanceTracked, rec.UserID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("Failed to publish event", "topic", topic, "key", key, "error", err)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published", "topic", topic, "key", key)
	return nil
}
