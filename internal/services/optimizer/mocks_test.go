package optimizer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/optimization"
	"costguardian/internal/domain/performance"
	"costguardian/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// MockPerformanceRepository is a mock for performance.Repository
type MockPerformanceRepository struct {
	mock.Mock
}

func (m *MockPerformanceRepository) Query(ctx context.Context, filter performance.Filter) ([]*performance.Record, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*performance.Record), args.Error(1)
}

func (m *MockPerformanceRepository) Append(ctx context.Context, record *performance.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockRecommendationCache is a mock for optimization.RecommendationCache
type MockRecommendationCache struct {
	mock.Mock
}

func (m *MockRecommendationCache) Get(ctx context.Context, userID string, task catalog.TaskType) ([]optimization.Recommendation, error) {
	args := m.Called(ctx, userID, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]optimization.Recommendation), args.Error(1)
}

func (m *MockRecommendationCache) Set(ctx context.Context, userID string, task catalog.TaskType, recs []optimization.Recommendation, ttl time.Duration) error {
	args := m.Called(ctx, userID, task, recs, ttl)
	return args.Error(0)
}

func (m *MockRecommendationCache) Invalidate(ctx context.Context, userID string, task catalog.TaskType) error {
	args := m.Called(ctx, userID, task)
	return args.Error(0)
}

// MockPublisher is a mock for EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishModelPerformance(ctx context.Context, record *performance.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
