package optimization

import "costguardian/internal/domain/catalog"

// ModelScore is one ranked candidate for a task. Reasons lists every
// factor that contributed to Score.
type ModelScore struct {
	ModelID            string   `json:"modelId"`
	Provider           string   `json:"provider"`
	Score              float64  `json:"score"`
	EstimatedCostUSD   float64  `json:"estimatedCostUsd"`
	EstimatedLatencyMs float64  `json:"estimatedLatencyMs"`
	Reasons            []string `json:"reasons"`
}

// Recommendation is a model suggested from the user's own history
type Recommendation struct {
	Model        string           `json:"model"`
	TaskType     catalog.TaskType `json:"taskType"`
	Confidence   float64          `json:"confidence"`
	Reason       string           `json:"reason"`
	Uses         int              `json:"uses"`
	AvgRating    float64          `json:"avgRating"`
	AvgLatencyMs float64          `json:"avgLatencyMs"`
}
