package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/performance"
	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
)

// EventVersion is stamped on every outgoing envelope
const EventVersion = "1.0"

// BaseEvent is the common envelope of every outgoing event
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	UserID    string    `json:"userId,omitempty"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a new base event with defaults
func NewBaseEvent(eventType, source, userID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		UserID:    userID,
		Version:   EventVersion,
	}
}

// PredictionCreatedEvent announces a persisted cost forecast
type PredictionCreatedEvent struct {
	Base       BaseEvent                    `json:"base"`
	Prediction *prediction.StoredPrediction `json:"prediction"`
}

// ModelPerformanceTrackedEvent announces a recorded model outcome
type ModelPerformanceTrackedEvent struct {
	Base   BaseEvent           `json:"base"`
	Record *performance.Record `json:"record"`
}

// UsageRecordedEvent is the inbound message produced by the request gateway
// after each completed AI call.
type UsageRecordedEvent struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Cost           float64   `json:"cost"`
	InputTokens    uint32    `json:"inputTokens"`
	OutputTokens   uint32    `json:"outputTokens"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
}

// ToRecord converts the event into a usage record. A missing id is generated
// and a missing timestamp defaults to receivedAt.
func (e UsageRecordedEvent) ToRecord(receivedAt time.Time) *usage.UsageRecord {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = receivedAt
	}
	return &usage.UsageRecord{
		ID:             id,
		UserID:         e.UserID,
		OrganizationID: e.OrganizationID,
		Timestamp:      ts.UTC(),
		Cost:           e.Cost,
		InputTokens:    e.InputTokens,
		OutputTokens:   e.OutputTokens,
		Provider:       strings.ToLower(e.Provider),
		Model:          e.Model,
	}
}

// ModelPerformanceEvent is the inbound outcome of a completed call, as
// measured by the gateway that proxied it
type ModelPerformanceEvent struct {
	UserID   string              `json:"userId"`
	Model    string              `json:"model"`
	TaskType catalog.TaskType    `json:"taskType"`
	Outcome  performance.Outcome `json:"outcome"`
}
