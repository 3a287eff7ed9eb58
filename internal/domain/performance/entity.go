package performance

import (
	"time"

	"github.com/google/uuid"

	"costguardian/internal/domain/catalog"
	"costguardian/pkg/errors"
)

// Record is one completed model call as seen by the optimizer.
// Records are append-only; a poor run keeps influencing personalization.
type Record struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"userId"`
	Model      string           `db:"model" json:"model"`
	TaskType   catalog.TaskType `db:"task_type" json:"taskType"`
	LatencyMs  float64          `db:"latency_ms" json:"latencyMs"`
	Tokens     int              `db:"tokens" json:"tokens,omitempty"`
	Cost       float64          `db:"cost_usd" json:"cost"`
	Success    bool             `db:"success" json:"success"`
	UserRating *int             `db:"user_rating" json:"userRating,omitempty"`
	Timestamp  time.Time        `db:"timestamp" json:"timestamp"`
}

// Outcome is the measured result of a call, reported by the caller
type Outcome struct {
	LatencyMs  float64 `json:"latencyMs"`
	Tokens     int     `json:"tokens,omitempty"` // total tokens of the call, 0 when unknown
	Cost       float64 `json:"cost"`
	Success    bool    `json:"success"`
	UserRating *int    `json:"userRating,omitempty"`
}

// Validate rejects impossible measurements
func (o Outcome) Validate() error {
	if o.LatencyMs < 0 {
		return errors.NewValidationError("latencyMs", "must not be negative", o.LatencyMs)
	}
	if o.Tokens < 0 {
		return errors.NewValidationError("tokens", "must not be negative", o.Tokens)
	}
	if o.Cost < 0 {
		return errors.NewValidationError("cost", "must not be negative", o.Cost)
	}
	if o.UserRating != nil && (*o.UserRating < 1 || *o.UserRating > 5) {
		return errors.NewValidationError("userRating", "must be between 1 and 5", *o.UserRating)
	}
	return nil
}

// NewRecord builds a record from an outcome, stamping id and time
func NewRecord(userID, model string, task catalog.TaskType, o Outcome, at time.Time) *Record {
	return &Record{
		ID:         uuid.New(),
		UserID:     userID,
		Model:      model,
		TaskType:   task,
		LatencyMs:  o.LatencyMs,
		Tokens:     o.Tokens,
		Cost:       o.Cost,
		Success:    o.Success,
		UserRating: o.UserRating,
		Timestamp:  at,
	}
}

// Filter narrows a performance history query
type Filter struct {
	UserID      string
	TaskType    *catalog.TaskType
	Since       *time.Time
	SuccessOnly bool
	Limit       int
}
