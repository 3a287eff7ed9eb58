package kafka

// Topic definitions for Kafka event streaming
const (
	// Ingestion
	TopicUsageRecorded    = "usage.recorded"
	TopicModelPerformance = "model.performance"

	// Outbound events
	TopicPredictionCreated       = "predictions.created"
	TopicModelPerformanceTracked = "model.performance.tracked"
)
