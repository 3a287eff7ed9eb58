package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
	"costguardian/pkg/errors"
)

type MockSubjectLister struct {
	mock.Mock
}

func (m *MockSubjectLister) ListRecentSubjects(ctx context.Context, since time.Time, limit int) ([]usage.Subject, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usage.Subject), args.Error(1)
}

type MockAccuracyEvaluator struct {
	mock.Mock
}

func (m *MockAccuracyEvaluator) PredictionAccuracy(ctx context.Context, subject usage.Subject) (*prediction.AccuracyReport, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prediction.AccuracyReport), args.Error(1)
}

func newTestAuditWorker(lister SubjectLister, eval AccuracyEvaluator) *AccuracyAuditWorker {
	w := NewAccuracyAuditWorker(lister, eval, time.Hour, 50, true)
	w.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestAccuracyAuditWorker_EvaluatesEverySubject(t *testing.T) {
	lister := new(MockSubjectLister)
	eval := new(MockAccuracyEvaluator)

	alice := usage.Subject{UserID: "alice"}
	org := usage.Subject{UserID: "bob", OrganizationID: "acme"}
	since := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	lister.On("ListRecentSubjects", mock.Anything, since, 50).Return([]usage.Subject{alice, org}, nil)
	eval.On("PredictionAccuracy", mock.Anything, alice).Return(&prediction.AccuracyReport{Accuracy: 77.5, Evaluated: 2}, nil)
	eval.On("PredictionAccuracy", mock.Anything, org).Return(&prediction.AccuracyReport{}, nil)

	w := newTestAuditWorker(lister, eval)
	require.NoError(t, w.Run(context.Background()))

	lister.AssertExpectations(t)
	eval.AssertExpectations(t)
}

func TestAccuracyAuditWorker_PartialFailureIsNotAnError(t *testing.T) {
	lister := new(MockSubjectLister)
	eval := new(MockAccuracyEvaluator)

	a := usage.Subject{UserID: "a"}
	b := usage.Subject{UserID: "b"}
	lister.On("ListRecentSubjects", mock.Anything, mock.Anything, mock.Anything).Return([]usage.Subject{a, b}, nil)
	eval.On("PredictionAccuracy", mock.Anything, a).Return(nil, errors.ErrHistoryUnavailable)
	eval.On("PredictionAccuracy", mock.Anything, b).Return(&prediction.AccuracyReport{Accuracy: 90, Evaluated: 1}, nil)

	assert.NoError(t, newTestAuditWorker(lister, eval).Run(context.Background()))
}

func TestAccuracyAuditWorker_AllFailed(t *testing.T) {
	lister := new(MockSubjectLister)
	eval := new(MockAccuracyEvaluator)

	a := usage.Subject{UserID: "a"}
	lister.On("ListRecentSubjects", mock.Anything, mock.Anything, mock.Anything).Return([]usage.Subject{a}, nil)
	eval.On("PredictionAccuracy", mock.Anything, a).Return(nil, errors.ErrHistoryUnavailable)

	err := newTestAuditWorker(lister, eval).Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrHistoryUnavailable)
}

func TestAccuracyAuditWorker_ListFailure(t *testing.T) {
	lister := new(MockSubjectLister)
	lister.On("ListRecentSubjects", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	err := newTestAuditWorker(lister, new(MockAccuracyEvaluator)).Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrHistoryUnavailable)
}

func TestAccuracyAuditWorker_NoSubjects(t *testing.T) {
	lister := new(MockSubjectLister)
	lister.On("ListRecentSubjects", mock.Anything, mock.Anything, mock.Anything).Return([]usage.Subject{}, nil)

	assert.NoError(t, newTestAuditWorker(lister, new(MockAccuracyEvaluator)).Run(context.Background()))
}
