package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/optimization"
	"costguardian/internal/domain/performance"
	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, subject usage.Subject, period prediction.Period, lookbackDays int) (*prediction.Result, error) {
	args := m.Called(ctx, subject, period, lookbackDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prediction.Result), args.Error(1)
}

func (m *MockPredictor) PredictionAccuracy(ctx context.Context, subject usage.Subject) (*prediction.AccuracyReport, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prediction.AccuracyReport), args.Error(1)
}

type MockOptimizer struct {
	mock.Mock
}

func (m *MockOptimizer) SelectOptimalModel(ctx context.Context, req catalog.TaskRequirements, userID string, providers []string) ([]optimization.ModelScore, error) {
	args := m.Called(ctx, req, userID, providers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]optimization.ModelScore), args.Error(1)
}

func (m *MockOptimizer) OptimizeForCost(req catalog.TaskRequirements, threshold float64) ([]optimization.ModelScore, error) {
	args := m.Called(req, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]optimization.ModelScore), args.Error(1)
}

func (m *MockOptimizer) BuildFallbackChain(primary string, req catalog.TaskRequirements) ([]string, error) {
	args := m.Called(primary, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockOptimizer) TrackModelPerformance(ctx context.Context, userID, model string, task catalog.TaskType, outcome performance.Outcome) error {
	return m.Called(ctx, userID, model, task, outcome).Error(0)
}

func (m *MockOptimizer) PersonalizedRecommendations(ctx context.Context, userID string, task catalog.TaskType) ([]optimization.Recommendation, error) {
	args := m.Called(ctx, userID, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]optimization.Recommendation), args.Error(1)
}

func newTestServer(p Predictor, o Optimizer) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(p, o, time.Second, testLogger()).Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestPredict_Success(t *testing.T) {
	p := new(MockPredictor)
	subject := usage.Subject{UserID: "u1", OrganizationID: "acme"}
	p.On("Predict", mock.Anything, subject, prediction.PeriodWeekly, 14).
		Return(&prediction.Result{Period: prediction.PeriodWeekly, PredictedCost: 12.5, Trend: prediction.TrendStable}, nil)

	rec := do(t, newTestServer(p, new(MockOptimizer)), http.MethodPost, "/v1/predictions",
		`{"period":"weekly","lookbackDays":14}`,
		map[string]string{HeaderUserID: "u1", HeaderOrganizationID: "acme"})

	require.Equal(t, http.StatusOK, rec.Code)
	var got prediction.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 12.5, got.PredictedCost)
	p.AssertExpectations(t)
}

func TestPredict_DefaultsToMonthly(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, usage.Subject{UserID: "u1"}, prediction.PeriodMonthly, 0).
		Return(&prediction.Result{Period: prediction.PeriodMonthly, IsDefault: true}, nil)

	rec := do(t, newTestServer(p, new(MockOptimizer)), http.MethodPost, "/v1/predictions", `{}`,
		map[string]string{HeaderUserID: "u1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	p.AssertExpectations(t)
}

func TestPredict_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"invalid", errors.NewValidationError("period", "must be daily, weekly or monthly", "yearly"), http.StatusBadRequest, "invalid_input"},
		{"history", errors.Mark(errors.ErrHistoryUnavailable, errors.New("dial tcp"), "failed to query usage history"), http.StatusServiceUnavailable, "history_unavailable"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPredictor)
			p.On("Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := do(t, newTestServer(p, new(MockOptimizer)), http.MethodPost, "/v1/predictions",
				`{"period":"monthly"}`, map[string]string{HeaderUserID: "u1"})

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantKind, decodeError(t, rec).Code)
		})
	}
}

func TestPredict_RequiresUser(t *testing.T) {
	rec := do(t, newTestServer(new(MockPredictor), new(MockOptimizer)), http.MethodPost, "/v1/predictions", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "userId", decodeError(t, rec).Field)
}

func TestPredict_MalformedBody(t *testing.T) {
	rec := do(t, newTestServer(new(MockPredictor), new(MockOptimizer)), http.MethodPost, "/v1/predictions", `{"period":`,
		map[string]string{HeaderUserID: "u1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccuracy(t *testing.T) {
	p := new(MockPredictor)
	p.On("PredictionAccuracy", mock.Anything, usage.Subject{UserID: "u1"}).
		Return(&prediction.AccuracyReport{Accuracy: 77.5, Evaluated: 2}, nil)

	rec := do(t, newTestServer(p, new(MockOptimizer)), http.MethodGet, "/v1/predictions/accuracy", "",
		map[string]string{HeaderUserID: "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accuracy":77.5`)
}

func TestSelect_AnonymousAllowed(t *testing.T) {
	o := new(MockOptimizer)
	req := catalog.TaskRequirements{TaskType: catalog.TaskChat, EstimatedTokens: 1000}
	o.On("SelectOptimalModel", mock.Anything, req, "", []string{"openai"}).
		Return([]optimization.ModelScore{{ModelID: "gpt-4o-mini", Provider: "openai", Score: 0.9}}, nil)

	rec := do(t, newTestServer(new(MockPredictor), o), http.MethodPost, "/v1/models/select",
		`{"requirements":{"taskType":"chat","estimatedTokens":1000},"providers":["openai"]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got scoresResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Models, 1)
	assert.Equal(t, "gpt-4o-mini", got.Models[0].ModelID)
}

func TestSelect_EmptyResultIsOK(t *testing.T) {
	o := new(MockOptimizer)
	o.On("SelectOptimalModel", mock.Anything, mock.Anything, "u1", []string(nil)).
		Return([]optimization.ModelScore{}, nil)

	rec := do(t, newTestServer(new(MockPredictor), o), http.MethodPost, "/v1/models/select",
		`{"requirements":{"taskType":"chat","estimatedTokens":1000,"maxCostUsd":0.0000001}}`,
		map[string]string{HeaderUserID: "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"models":[]}`, rec.Body.String())
}

func TestCostOptimized(t *testing.T) {
	o := new(MockOptimizer)
	o.On("OptimizeForCost", mock.Anything, 0.9).
		Return([]optimization.ModelScore{{ModelID: "gemini-1.5-pro"}}, nil)

	rec := do(t, newTestServer(new(MockPredictor), o), http.MethodPost, "/v1/models/cost-optimized",
		`{"requirements":{"taskType":"analysis","estimatedTokens":2000},"qualityThreshold":0.9}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gemini-1.5-pro")
}

func TestFallbackChain_UnknownModel(t *testing.T) {
	o := new(MockOptimizer)
	o.On("BuildFallbackChain", "gpt-7", mock.Anything).
		Return(nil, errors.Mark(errors.ErrUnknownModel, errors.New("gpt-7"), "primary model not in catalog"))

	rec := do(t, newTestServer(new(MockPredictor), o), http.MethodPost, "/v1/models/fallback-chain",
		`{"primary":"gpt-7","requirements":{"taskType":"chat","estimatedTokens":10}}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_model", decodeError(t, rec).Code)
}

func TestFallbackChain_Success(t *testing.T) {
	o := new(MockOptimizer)
	o.On("BuildFallbackChain", "gpt-4o", mock.Anything).Return([]string{"gpt-4o", "gpt-4o-mini", "claude-3-opus"}, nil)

	rec := do(t, newTestServer(new(MockPredictor), o), http.MethodPost, "/v1/models/fallback-chain",
		`{"primary":"gpt-4o","requirements":{"taskType":"chat","estimatedTokens":10}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chain":["gpt-4o","gpt-4o-mini","claude-3-opus"]}`, rec.Body.String())
}

func TestTrackPerformance(t *testing.T) {
	o := new(MockOptimizer)
	rating := 5
	o.On("TrackModelPerformance", mock.Anything, "u1", "claude-3-haiku", catalog.TaskChat,
		performance.Outcome{LatencyMs: 350, Cost: 0.0004, Success: true, UserRating: &rating}).Return(nil)

	rec := do(t, newTestServer(new(MockPredictor), o), http.MethodPost, "/v1/models/performance",
		`{"model":"claude-3-haiku","taskType":"chat","outcome":{"latencyMs":350,"cost":0.0004,"success":true,"userRating":5}}`,
		map[string]string{HeaderUserID: "u1"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	o.AssertExpectations(t)
}

func TestTrackPerformance_RequiresUser(t *testing.T) {
	rec := do(t, newTestServer(new(MockPredictor), new(MockOptimizer)), http.MethodPost, "/v1/models/performance",
		`{"model":"m","taskType":"chat"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendations(t *testing.T) {
	o := new(MockOptimizer)
	o.On("PersonalizedRecommendations", mock.Anything, "u1", catalog.TaskCode).Return(nil, nil)

	rec := do(t, newTestServer(new(MockPredictor), o), http.MethodGet, "/v1/models/recommendations?taskType=code", "",
		map[string]string{HeaderUserID: "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"recommendations":[]}`, rec.Body.String())
}

func TestRecommendations_InvalidTask(t *testing.T) {
	rec := do(t, newTestServer(new(MockPredictor), new(MockOptimizer)), http.MethodGet, "/v1/models/recommendations?taskType=poetry", "",
		map[string]string{HeaderUserID: "u1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "taskType", decodeError(t, rec).Field)
}

func TestHandler_RecoversFromPanic(t *testing.T) {
	p := new(MockPredictor)
	p.On("PredictionAccuracy", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("nil map") })

	rec := do(t, newTestServer(p, new(MockOptimizer)), http.MethodGet, "/v1/predictions/accuracy", "",
		map[string]string{HeaderUserID: "u1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeError(t, rec).Message)
}

func TestCatalog_NotExposedByMock(t *testing.T) {
	rec := do(t, newTestServer(new(MockPredictor), new(MockOptimizer)), http.MethodGet, "/v1/models/catalog", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
