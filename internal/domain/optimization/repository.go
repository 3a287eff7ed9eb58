package optimization

import (
	"context"
	"time"

	"costguardian/internal/domain/catalog"
)

// RecommendationCache keeps computed recommendations for a short time
type RecommendationCache interface {
	// Get returns cached recommendations or errors.ErrNotFound
	Get(ctx context.Context, userID string, task catalog.TaskType) ([]Recommendation, error)

	Set(ctx context.Context, userID string, task catalog.TaskType, recs []Recommendation, ttl time.Duration) error

	// Invalidate drops the cached entry for the user and task
	Invalidate(ctx context.Context, userID string, task catalog.TaskType) error
}
