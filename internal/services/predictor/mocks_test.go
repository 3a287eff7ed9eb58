package predictor

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
	"costguardian/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// MockUsageReader is a mock for usage.Reader
type MockUsageReader struct {
	mock.Mock
}

func (m *MockUsageReader) Query(ctx context.Context, subject usage.Subject, since time.Time) ([]*usage.UsageRecord, error) {
	args := m.Called(ctx, subject, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*usage.UsageRecord), args.Error(1)
}

func (m *MockUsageReader) ActualCost(ctx context.Context, subject usage.Subject, from, to time.Time) (float64, error) {
	args := m.Called(ctx, subject, from, to)
	return args.Get(0).(float64), args.Error(1)
}

// MockAuditStore is a mock for prediction.AuditStore
type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) Append(ctx context.Context, p *prediction.StoredPrediction) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockAuditStore) QueryRecent(ctx context.Context, subject usage.Subject, since time.Time, limit int) ([]*prediction.StoredPrediction, error) {
	args := m.Called(ctx, subject, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*prediction.StoredPrediction), args.Error(1)
}

func (m *MockAuditStore) ListRecentSubjects(ctx context.Context, since time.Time, limit int) ([]usage.Subject, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usage.Subject), args.Error(1)
}

// MockPublisher is a mock for EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPredictionCreated(ctx context.Context, p *prediction.StoredPrediction) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
