package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/optimization"
	"costguardian/internal/domain/performance"
	"costguardian/pkg/errors"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *MockPerformanceRepository, recs optimization.RecommendationCache, pub EventPublisher) *Service {
	t.Helper()
	svc, err := NewService(catalog.MustDefault(), repo, recs, pub, StaticLatencyEstimator{}, DefaultConfig(), testLogger())
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	return svc
}

func chatRequest() catalog.TaskRequirements {
	return catalog.TaskRequirements{TaskType: catalog.TaskChat, EstimatedTokens: 1000}
}

func ids(scores []optimization.ModelScore) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.ModelID
	}
	return out
}

func TestSelectOptimalModel_ChatDefaults(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)

	scores, err := svc.SelectOptimalModel(context.Background(), chatRequest(), "", nil)
	require.NoError(t, err)

	got := ids(scores)
	assert.Contains(t, got, "gpt-4o-mini")
	assert.Contains(t, got, "claude-3-haiku")
	assert.Equal(t, "gpt-4o-mini", got[0])
	assert.Equal(t, "claude-3-haiku", got[1])

	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].Score, scores[i].Score)
	}
	for _, s := range scores {
		assert.NotEmpty(t, s.Reasons)
		assert.Greater(t, s.EstimatedCostUSD, 0.0)
	}
}

func TestSelectOptimalModel_NothingUnderCostCeiling(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)

	req := chatRequest()
	req.MaxCostUSD = ptr(0.0001)

	scores, err := svc.SelectOptimalModel(context.Background(), req, "", nil)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
}

func TestSelectOptimalModel_ProviderFilterAndMinQuality(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)

	scores, err := svc.SelectOptimalModel(context.Background(), chatRequest(), "", []string{"claude"})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, s := range scores {
		assert.Equal(t, "claude", s.Provider)
	}

	req := chatRequest()
	req.MinQuality = ptr(0.95)
	scores, err = svc.SelectOptimalModel(context.Background(), req, "", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gpt-4o", "claude-3-5-sonnet", "claude-3-opus"}, ids(scores))
}

func TestSelectOptimalModel_UserPreference(t *testing.T) {
	repo := new(MockPerformanceRepository)
	svc := newTestService(t, repo, nil, nil)

	history := make([]*performance.Record, 0, 50)
	for i := 0; i < 50; i++ {
		history = append(history, &performance.Record{UserID: "user-1", Model: "claude-3-haiku", Success: true})
	}
	repo.On("Query", mock.Anything, performance.Filter{UserID: "user-1", Limit: 50}).Return(history, nil)

	scores, err := svc.SelectOptimalModel(context.Background(), chatRequest(), "user-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, scores)

	assert.Equal(t, "claude-3-haiku", scores[0].ModelID)
	assert.Contains(t, scores[0].Reasons, "used in 100% of recent calls")
	repo.AssertExpectations(t)
}

func TestSelectOptimalModel_PreferenceWindowServedFromCache(t *testing.T) {
	repo := new(MockPerformanceRepository)
	svc := newTestService(t, repo, nil, nil)

	history := make([]*performance.Record, 0, 50)
	for i := 0; i < 50; i++ {
		history = append(history, &performance.Record{
			UserID: "user-1", Model: "claude-3-haiku", Success: true,
			Timestamp: testNow.Add(-time.Duration(i+1) * time.Minute),
		})
	}
	repo.On("Query", mock.Anything, performance.Filter{UserID: "user-1", Limit: 50}).Return(history, nil).Once()
	repo.On("Append", mock.Anything, mock.Anything).Return(nil)

	for i := 0; i < 2; i++ {
		_, err := svc.SelectOptimalModel(context.Background(), chatRequest(), "user-1", nil)
		require.NoError(t, err)
	}

	require.NoError(t, svc.TrackModelPerformance(context.Background(), "user-1", "gpt-4o-mini", catalog.TaskChat, performance.Outcome{LatencyMs: 300, Success: true}))

	scores, err := svc.SelectOptimalModel(context.Background(), chatRequest(), "user-1", nil)
	require.NoError(t, err)

	byID := make(map[string]optimization.ModelScore, len(scores))
	for _, s := range scores {
		byID[s.ModelID] = s
	}
	assert.Contains(t, byID["claude-3-haiku"].Reasons, "used in 98% of recent calls")
	assert.Contains(t, byID["gpt-4o-mini"].Reasons, "used in 2% of recent calls")
	repo.AssertNumberOfCalls(t, "Query", 1)
}

func TestSelectOptimalModel_DefaultLatencyIgnoresTrackedCalls(t *testing.T) {
	repo := new(MockPerformanceRepository)
	repo.On("Append", mock.Anything, mock.Anything).Return(nil)
	repo.On("Query", mock.Anything, mock.Anything).Return([]*performance.Record{}, nil)

	svc, err := NewService(catalog.MustDefault(), repo, nil, nil, nil, DefaultConfig(), testLogger())
	require.NoError(t, err)

	maxLatency := 5000.0
	bounded := catalog.TaskRequirements{TaskType: catalog.TaskChat, EstimatedTokens: 100000, MaxLatencyMs: &maxLatency}

	scores, err := svc.SelectOptimalModel(context.Background(), bounded, "other-user", nil)
	require.NoError(t, err)
	require.Empty(t, scores)

	fast := performance.Outcome{LatencyMs: 1, Tokens: 100000, Success: true}
	for i := 0; i < 20; i++ {
		require.NoError(t, svc.TrackModelPerformance(context.Background(), "tenant-a", "claude-3-opus", catalog.TaskChat, fast))
		require.NoError(t, svc.TrackObservedPerformance(context.Background(), "tenant-a", "claude-3-opus", catalog.TaskChat, fast))
	}

	scores, err = svc.SelectOptimalModel(context.Background(), bounded, "other-user", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)

	unbounded := catalog.TaskRequirements{TaskType: catalog.TaskChat, EstimatedTokens: 100000}
	scores, err = svc.SelectOptimalModel(context.Background(), unbounded, "other-user", nil)
	require.NoError(t, err)
	require.NotEmpty(t, scores)
	for _, s := range scores {
		caps, _ := svc.Catalog().Model(s.ModelID)
		assert.Equal(t, StaticLatencyEstimator{}.EstimateLatency(s.ModelID, caps, 100000), s.EstimatedLatencyMs, s.ModelID)
	}
	assert.Contains(t, ids(scores), "claude-3-opus")
}

func TestSelectOptimalModel_TelemetryUsesMeasuredCallsOnly(t *testing.T) {
	repo := new(MockPerformanceRepository)
	repo.On("Append", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultConfig()
	cfg.TelemetryLatency = true
	svc, err := NewService(catalog.MustDefault(), repo, nil, nil, nil, cfg, testLogger())
	require.NoError(t, err)

	opus, _ := svc.Catalog().Model("claude-3-opus")
	req := catalog.TaskRequirements{TaskType: catalog.TaskChat, EstimatedTokens: 100000}
	static := StaticLatencyEstimator{}.EstimateLatency("claude-3-opus", opus, req.EstimatedTokens)

	opusLatency := func() float64 {
		scores, err := svc.OptimizeForCost(req, 0.1)
		require.NoError(t, err)
		for _, s := range scores {
			if s.ModelID == "claude-3-opus" {
				return s.EstimatedLatencyMs
			}
		}
		t.Fatal("claude-3-opus not ranked")
		return 0
	}

	reported := performance.Outcome{LatencyMs: 1, Tokens: 100000, Success: true}
	for i := 0; i < 20; i++ {
		require.NoError(t, svc.TrackModelPerformance(context.Background(), "tenant-a", "claude-3-opus", catalog.TaskChat, reported))
	}
	assert.Equal(t, static, opusLatency(), "caller reports do not move the estimate")

	measured := performance.Outcome{LatencyMs: 0.8 * static, Tokens: 100000, Success: true}
	for i := 0; i < 20; i++ {
		require.NoError(t, svc.TrackObservedPerformance(context.Background(), "gateway", "claude-3-opus", catalog.TaskChat, measured))
	}
	assert.InDelta(t, 0.8*static, opusLatency(), 1e-6)
}

func TestSelectOptimalModel_HistoryUnavailable(t *testing.T) {
	repo := new(MockPerformanceRepository)
	svc := newTestService(t, repo, nil, nil)
	repo.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("postgres down"))

	_, err := svc.SelectOptimalModel(context.Background(), chatRequest(), "user-1", nil)
	assert.ErrorIs(t, err, errors.ErrHistoryUnavailable)
}

func TestSelectOptimalModel_InvalidRequirements(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)

	_, err := svc.SelectOptimalModel(context.Background(), catalog.TaskRequirements{TaskType: "poetry", EstimatedTokens: 10}, "", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = svc.SelectOptimalModel(context.Background(), catalog.TaskRequirements{TaskType: catalog.TaskChat}, "", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestOptimizeForCost(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)

	scores, err := svc.OptimizeForCost(chatRequest(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, scores)
	assert.Equal(t, "gemini-1.5-flash", scores[0].ModelID)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].Score, scores[i].Score)
	}

	scores, err = svc.OptimizeForCost(chatRequest(), 0.9)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"gpt-4o", "gpt-4-turbo", "claude-3-5-sonnet", "claude-3-opus", "gemini-1.5-pro"},
		ids(scores))
	assert.Equal(t, "gemini-1.5-pro", scores[0].ModelID)

	req := chatRequest()
	req.MaxCostUSD = ptr(0.0001)
	scores, err = svc.OptimizeForCost(req, 0.8)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestBuildFallbackChain(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)

	chain, err := svc.BuildFallbackChain("gpt-4o", chatRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini", "claude-3-opus"}, chain)

	// perplexity has no other model, so only the cross-provider slot is filled
	req := chatRequest()
	req.MaxLatencyMs = ptr(1100)
	chain, err = svc.BuildFallbackChain("sonar-large-online", req)
	require.NoError(t, err)
	assert.Equal(t, "sonar-large-online", chain[0])
	assert.Len(t, chain, 2)
}

func TestBuildFallbackChain_NoDuplicatesAndBounded(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)
	cat := catalog.MustDefault()

	reqs := []catalog.TaskRequirements{
		chatRequest(),
		{TaskType: catalog.TaskCode, EstimatedTokens: 150000, RequiresVision: true},
		{TaskType: catalog.TaskAnalysis, EstimatedTokens: 500, MaxCostUSD: ptr(0.0005)},
		{TaskType: catalog.TaskSummarization, EstimatedTokens: 3000000},
	}

	for _, req := range reqs {
		for _, primary := range cat.ModelIDs() {
			chain, err := svc.BuildFallbackChain(primary, req)
			require.NoError(t, err)

			assert.LessOrEqual(t, len(chain), 3)
			assert.Equal(t, primary, chain[0])

			seen := make(map[string]bool)
			for _, id := range chain {
				assert.False(t, seen[id], "duplicate %s in %v", id, chain)
				seen[id] = true
			}
		}
	}
}

func TestBuildFallbackChain_UnknownPrimary(t *testing.T) {
	svc := newTestService(t, new(MockPerformanceRepository), nil, nil)

	_, err := svc.BuildFallbackChain("gpt-9", chatRequest())
	assert.ErrorIs(t, err, errors.ErrUnknownModel)
}

func TestTrackModelPerformance(t *testing.T) {
	repo := new(MockPerformanceRepository)
	recs := new(MockRecommendationCache)
	pub := new(MockPublisher)
	svc := newTestService(t, repo, recs, pub)

	rating := 4
	outcome := performance.Outcome{LatencyMs: 850, Cost: 0.003, Success: true, UserRating: &rating}

	repo.On("Append", mock.Anything, mock.MatchedBy(func(r *performance.Record) bool {
		return r.UserID == "user-1" && r.Model == "gpt-4o" && r.TaskType == catalog.TaskCode &&
			r.LatencyMs == 850 && *r.UserRating == 4 && r.Timestamp.Equal(testNow)
	})).Return(nil)
	recs.On("Invalidate", mock.Anything, "user-1", catalog.TaskCode).Return(nil)
	pub.On("PublishModelPerformance", mock.Anything, mock.Anything).Return(nil)

	err := svc.TrackModelPerformance(context.Background(), "user-1", "gpt-4o", catalog.TaskCode, outcome)
	require.NoError(t, err)

	cached := svc.cache.ModelRecords("user-1", "gpt-4o")
	require.Len(t, cached, 1)
	assert.Equal(t, 850.0, cached[0].LatencyMs)

	repo.AssertExpectations(t)
	recs.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestTrackModelPerformance_StoreFailureIsSwallowed(t *testing.T) {
	repo := new(MockPerformanceRepository)
	recs := new(MockRecommendationCache)
	svc := newTestService(t, repo, recs, nil)

	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("insert failed"))
	recs.On("Invalidate", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	err := svc.TrackModelPerformance(context.Background(), "user-1", "gpt-4o", catalog.TaskChat, performance.Outcome{LatencyMs: 10, Success: true})
	assert.NoError(t, err)
	assert.Len(t, svc.cache.ModelRecords("user-1", "gpt-4o"), 1)
}

func TestTrackModelPerformance_InvalidOutcome(t *testing.T) {
	repo := new(MockPerformanceRepository)
	svc := newTestService(t, repo, nil, nil)

	rating := 7
	err := svc.TrackModelPerformance(context.Background(), "user-1", "gpt-4o", catalog.TaskChat, performance.Outcome{UserRating: &rating})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	err = svc.TrackModelPerformance(context.Background(), "", "gpt-4o", catalog.TaskChat, performance.Outcome{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestPersonalizedRecommendations(t *testing.T) {
	repo := new(MockPerformanceRepository)
	recs := new(MockRecommendationCache)
	svc := newTestService(t, repo, recs, nil)

	five := 5
	var history []*performance.Record
	for i := 0; i < 10; i++ {
		history = append(history, &performance.Record{Model: "gpt-4o-mini", LatencyMs: 400, Success: true, UserRating: &five})
	}
	for i := 0; i < 5; i++ {
		history = append(history, &performance.Record{Model: "claude-3-haiku", LatencyMs: 600, Success: true})
	}

	task := catalog.TaskChat
	since := testNow.AddDate(0, 0, -30)
	recs.On("Get", mock.Anything, "user-1", task).Return(nil, errors.ErrNotFound)
	repo.On("Query", mock.Anything, performance.Filter{
		UserID:      "user-1",
		TaskType:    &task,
		Since:       &since,
		SuccessOnly: true,
		Limit:       100,
	}).Return(history, nil)
	recs.On("Set", mock.Anything, "user-1", task, mock.Anything, 10*time.Minute).Return(nil)

	got, err := svc.PersonalizedRecommendations(context.Background(), "user-1", task)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "gpt-4o-mini", got[0].Model)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)
	assert.Equal(t, 10, got[0].Uses)
	assert.InDelta(t, 400, got[0].AvgLatencyMs, 1e-9)

	assert.Equal(t, "claude-3-haiku", got[1].Model)
	assert.InDelta(t, 0.5*3.0/5.0, got[1].Confidence, 1e-9)
	assert.InDelta(t, 3.0, got[1].AvgRating, 1e-9)

	repo.AssertExpectations(t)
	recs.AssertExpectations(t)
}

func TestPersonalizedRecommendations_CacheHit(t *testing.T) {
	repo := new(MockPerformanceRepository)
	recs := new(MockRecommendationCache)
	svc := newTestService(t, repo, recs, nil)

	cached := []optimization.Recommendation{{Model: "gpt-4o", Confidence: 0.7}}
	recs.On("Get", mock.Anything, "user-1", catalog.TaskCode).Return(cached, nil)

	got, err := svc.PersonalizedRecommendations(context.Background(), "user-1", catalog.TaskCode)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	repo.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestPersonalizedRecommendations_Empty(t *testing.T) {
	repo := new(MockPerformanceRepository)
	svc := newTestService(t, repo, nil, nil)
	repo.On("Query", mock.Anything, mock.Anything).Return([]*performance.Record{}, nil)

	got, err := svc.PersonalizedRecommendations(context.Background(), "user-1", catalog.TaskChat)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPersonalizedRecommendations_HistoryUnavailable(t *testing.T) {
	repo := new(MockPerformanceRepository)
	svc := newTestService(t, repo, nil, nil)
	repo.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	_, err := svc.PersonalizedRecommendations(context.Background(), "user-1", catalog.TaskChat)
	assert.ErrorIs(t, err, errors.ErrHistoryUnavailable)
}
