package catalog

import (
	"costguardian/pkg/errors"
)

// TaskType classifies the kind of work a model is asked to do
type TaskType string

const (
	TaskChat          TaskType = "chat"
	TaskCompletion    TaskType = "completion"
	TaskCode          TaskType = "code"
	TaskAnalysis      TaskType = "analysis"
	TaskCreative      TaskType = "creative"
	TaskTranslation   TaskType = "translation"
	TaskSummarization TaskType = "summarization"
)

// AllTaskTypes returns every supported task type
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskChat,
		TaskCompletion,
		TaskCode,
		TaskAnalysis,
		TaskCreative,
		TaskTranslation,
		TaskSummarization,
	}
}

// IsValid checks if the task type is supported
func (t TaskType) IsValid() bool {
	switch t {
	case TaskChat, TaskCompletion, TaskCode, TaskAnalysis, TaskCreative, TaskTranslation, TaskSummarization:
		return true
	default:
		return false
	}
}

// String returns the string representation of the task type
func (t TaskType) String() string {
	return string(t)
}

// Speed is a qualitative response-speed bucket
type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedMedium Speed = "medium"
	SpeedSlow   Speed = "slow"
)

// IsValid checks if the speed bucket is known
func (s Speed) IsValid() bool {
	switch s {
	case SpeedFast, SpeedMedium, SpeedSlow:
		return true
	default:
		return false
	}
}

// Pricing is USD per one million tokens
type Pricing struct {
	Input  float64 `yaml:"input" json:"input"`
	Output float64 `yaml:"output" json:"output"`
}

// Capabilities describes a single model entry in the catalog
type Capabilities struct {
	Provider                string  `yaml:"provider" json:"provider"`
	ContextWindowTokens     int     `yaml:"context_window_tokens" json:"contextWindowTokens"`
	SupportsVision          bool    `yaml:"supports_vision" json:"supportsVision"`
	SupportsFunctionCalling bool    `yaml:"supports_function_calling" json:"supportsFunctionCalling"`
	SupportsStreaming       bool    `yaml:"supports_streaming" json:"supportsStreaming"`
	ResponseSpeed           Speed   `yaml:"response_speed" json:"responseSpeed"`
	CostPerMillionTokens    Pricing `yaml:"cost_per_million_tokens" json:"costPerMillionTokens"`
}

// TaskPreference lists the preferred models for a task and their quality
type TaskPreference struct {
	Preferred []string           `yaml:"preferred" json:"preferred"`
	Quality   map[string]float64 `yaml:"quality" json:"quality"`
}

// TaskRequirements is the per-call input to model selection
type TaskRequirements struct {
	TaskType                TaskType `json:"taskType"`
	EstimatedTokens         int      `json:"estimatedTokens"`
	RequiresVision          bool     `json:"requiresVision,omitempty"`
	RequiresFunctionCalling bool     `json:"requiresFunctionCalling,omitempty"`
	RequiresStreaming       bool     `json:"requiresStreaming,omitempty"`
	MaxLatencyMs            *float64 `json:"maxLatencyMs,omitempty"`
	MaxCostUSD              *float64 `json:"maxCostUsd,omitempty"`
	MinQuality              *float64 `json:"minQuality,omitempty"`
}

// Validate checks the requirements are usable for scoring
func (r TaskRequirements) Validate() error {
	if !r.TaskType.IsValid() {
		return errors.NewValidationError("taskType", "unsupported task type", r.TaskType)
	}
	if r.EstimatedTokens <= 0 {
		return errors.NewValidationError("estimatedTokens", "must be positive", r.EstimatedTokens)
	}
	if r.MaxLatencyMs != nil && *r.MaxLatencyMs <= 0 {
		return errors.NewValidationError("maxLatencyMs", "must be positive", *r.MaxLatencyMs)
	}
	if r.MaxCostUSD != nil && *r.MaxCostUSD < 0 {
		return errors.NewValidationError("maxCostUsd", "must not be negative", *r.MaxCostUSD)
	}
	if r.MinQuality != nil && (*r.MinQuality < 0 || *r.MinQuality > 1) {
		return errors.NewValidationError("minQuality", "must be within [0,1]", *r.MinQuality)
	}
	return nil
}
