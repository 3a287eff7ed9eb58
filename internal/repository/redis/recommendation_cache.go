package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/optimization"
	"costguardian/pkg/errors"
)

// Compile-time check
var _ optimization.RecommendationCache = (*RecommendationCache)(nil)

// RecommendationCache implements optimization.RecommendationCache using Redis
type RecommendationCache struct {
	client *redis.Client
}

// NewRecommendationCache creates a new recommendation cache
func NewRecommendationCache(client *redis.Client) *RecommendationCache {
	return &RecommendationCache{client: client}
}

// Get returns cached recommendations or ErrNotFound on a miss
func (c *RecommendationCache) Get(ctx context.Context, userID string, task catalog.TaskType) ([]optimization.Recommendation, error) {
	key := c.getKey(userID, task)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "no cached recommendations for user=%s task=%s", userID, task)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get recommendations from redis: user=%s", userID)
	}

	var recs []optimization.Recommendation
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal recommendations: user=%s", userID)
	}
	return recs, nil
}

// Set stores recommendations with TTL
func (c *RecommendationCache) Set(ctx context.Context, userID string, task catalog.TaskType, recs []optimization.Recommendation, ttl time.Duration) error {
	if recs == nil {
		recs = []optimization.Recommendation{}
	}

	data, err := json.Marshal(recs)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal recommendations: user=%s", userID)
	}

	if err := c.client.Set(ctx, c.getKey(userID, task), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to save recommendations to redis: user=%s", userID)
	}
	return nil
}

// Invalidate drops the cached entry so the next read rebuilds it
func (c *RecommendationCache) Invalidate(ctx context.Context, userID string, task catalog.TaskType) error {
	if err := c.client.Del(ctx, c.getKey(userID, task)).Err(); err != nil {
		return errors.Wrapf(err, "failed to invalidate recommendations: user=%s", userID)
	}
	return nil
}

func (c *RecommendationCache) getKey(userID string, task catalog.TaskType) string {
	return fmt.Sprintf("recs:%s:%s", userID, task)
}
