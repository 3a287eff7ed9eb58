package usage

import (
	"time"

	"costguardian/pkg/errors"
)

// UsageRecord is one completed AI request with its cost.
// Records are written by the ingestion pipeline and never mutated.
type UsageRecord struct {
	ID             string    `ch:"id" json:"id"`
	UserID         string    `ch:"user_id" json:"userId"`
	OrganizationID string    `ch:"organization_id" json:"organizationId,omitempty"`
	Timestamp      time.Time `ch:"timestamp" json:"timestamp"`

	Cost         float64 `ch:"cost_usd" json:"cost"`
	InputTokens  uint32  `ch:"input_tokens" json:"inputTokens"`
	OutputTokens uint32  `ch:"output_tokens" json:"outputTokens"`

	Provider string `ch:"provider" json:"provider"` // openai, claude, gemini, grok, perplexity
	Model    string `ch:"model" json:"model"`
}

// Validate checks a record before it is stored
func (r *UsageRecord) Validate() error {
	if r.UserID == "" {
		return errors.NewValidationError("userId", "is required", r.UserID)
	}
	if r.Cost < 0 {
		return errors.NewValidationError("cost", "must not be negative", r.Cost)
	}
	if r.Timestamp.IsZero() {
		return errors.NewValidationError("timestamp", "is required", r.Timestamp)
	}
	if r.Model == "" {
		return errors.NewValidationError("model", "is required", r.Model)
	}
	return nil
}

// Subject identifies whose spend is being analysed: a single user,
// or the whole organization when OrganizationID is set.
type Subject struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// Key returns the id that scopes history queries
func (s Subject) Key() string {
	if s.OrganizationID != "" {
		return s.OrganizationID
	}
	return s.UserID
}

// IsOrganization reports whether the subject is organization-wide
func (s Subject) IsOrganization() bool {
	return s.OrganizationID != ""
}

// Validate requires the calling user to be known
func (s Subject) Validate() error {
	if s.UserID == "" {
		return errors.NewValidationError("userId", "is required", s.UserID)
	}
	return nil
}
