package optimizer

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/optimization"
	"costguardian/internal/domain/performance"
	"costguardian/internal/metrics"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

const (
	defaultQualityThreshold = 0.8
	defaultRating           = 3.0
	minCostForRatio         = 1e-12
)

// EventPublisher announces tracked model outcomes
type EventPublisher interface {
	PublishModelPerformance(ctx context.Context, record *performance.Record) error
}

// Service ranks models for tasks and learns from tracked outcomes
type Service struct {
	catalog   *catalog.Catalog
	history   performance.Repository
	cache     *PerformanceCache
	recs      optimization.RecommendationCache
	publisher EventPublisher
	latency   LatencyEstimator
	cfg       Config
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a new model optimizer. recs and publisher may be nil.
// A nil latency estimator means the static estimate, corrected by measured
// latency when cfg.TelemetryLatency is set.
func NewService(
	cat *catalog.Catalog,
	history performance.Repository,
	recs optimization.RecommendationCache,
	publisher EventPublisher,
	latency LatencyEstimator,
	cfg Config,
	log *logger.Logger,
) (*Service, error) {
	cfg = cfg.withDefaults()

	cache, err := NewPerformanceCache(cfg.HistoryCapacity, cfg.HistorySize)
	if err != nil {
		return nil, err
	}
	if latency == nil {
		latency = StaticLatencyEstimator{}
		if cfg.TelemetryLatency {
			latency = NewTelemetryLatencyEstimator(cache, latency, cfg.TelemetryMinSamples)
		}
	}

	return &Service{
		catalog:   cat,
		history:   history,
		cache:     cache,
		recs:      recs,
		publisher: publisher,
		latency:   latency,
		cfg:       cfg,
		log:       log.With("component", "model_optimizer"),
		now:       time.Now,
	}, nil
}

// Catalog returns the capability catalog the service scores against
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// SelectOptimalModel ranks every eligible model for the task, best first.
// availableProviders restricts candidates when non-empty. No eligible
// model yields an empty slice.
func (s *Service) SelectOptimalModel(ctx context.Context, req catalog.TaskRequirements, userID string, availableProviders []string) ([]optimization.ModelScore, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ratios, err := s.preferenceRatios(ctx, userID)
	if err != nil {
		return nil, err
	}

	scores := make([]optimization.ModelScore, 0, len(s.catalog.ModelIDs()))
	for _, id := range s.catalog.ModelIDs() {
		caps, _ := s.catalog.Model(id)
		if len(availableProviders) > 0 && !slices.Contains(availableProviders, caps.Provider) {
			continue
		}
		if !MeetsRequirements(id, caps, req, s.latency) {
			continue
		}

		quality := s.catalog.Quality(req.TaskType, id)
		if req.MinQuality != nil && quality < *req.MinQuality {
			continue
		}

		cost := EstimateCost(caps, req.EstimatedTokens)
		value, reasons := score(scoreInput{
			quality:         quality,
			costUSD:         cost,
			speed:           caps.ResponseSpeed,
			preferenceRatio: ratios[id],
			preferred:       s.catalog.IsPreferred(req.TaskType, id),
			task:            req.TaskType,
		})

		scores = append(scores, optimization.ModelScore{
			ModelID:            id,
			Provider:           caps.Provider,
			Score:              value,
			EstimatedCostUSD:   cost,
			EstimatedLatencyMs: s.latency.EstimateLatency(id, caps, req.EstimatedTokens),
			Reasons:            reasons,
		})
	}

	sortScores(scores)
	if s.cfg.DiversityEnabled {
		scores = ApplyProviderDiversity(scores)
	}

	top := ""
	if len(scores) > 0 {
		top = scores[0].ModelID
	}
	metrics.RecordModelSelection(req.TaskType.String(), top)

	return scores, nil
}

// preferenceRatios returns the share of the user's recent calls per model
func (s *Service) preferenceRatios(ctx context.Context, userID string) (map[string]float64, error) {
	if userID == "" {
		return nil, nil
	}

	if cached, ok := s.cache.Recent(userID, s.cfg.PreferenceWindow); ok {
		models := make([]string, len(cached))
		for i, r := range cached {
			models[i] = r.Model
		}
		return shares(models), nil
	}

	records, err := s.history.Query(ctx, performance.Filter{
		UserID: userID,
		Limit:  s.cfg.PreferenceWindow,
	})
	if err != nil {
		return nil, errors.Mark(errors.ErrHistoryUnavailable, err, "failed to query performance history")
	}
	s.cache.Seed(userID, records)

	models := make([]string, len(records))
	for i, r := range records {
		models[i] = r.Model
	}
	return shares(models), nil
}

func shares(models []string) map[string]float64 {
	if len(models) == 0 {
		return nil
	}
	ratios := make(map[string]float64)
	for _, m := range models {
		ratios[m]++
	}
	for m := range ratios {
		ratios[m] /= float64(len(models))
	}
	return ratios
}

// OptimizeForCost ranks eligible models meeting the quality threshold by
// quality per dollar. A non-positive threshold means 0.8.
func (s *Service) OptimizeForCost(req catalog.TaskRequirements, qualityThreshold float64) ([]optimization.ModelScore, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if qualityThreshold <= 0 {
		qualityThreshold = defaultQualityThreshold
	}

	scores := make([]optimization.ModelScore, 0)
	for _, id := range s.catalog.ModelIDs() {
		caps, _ := s.catalog.Model(id)
		if !MeetsRequirements(id, caps, req, s.latency) {
			continue
		}

		quality := s.catalog.Quality(req.TaskType, id)
		if quality < qualityThreshold {
			continue
		}

		cost := EstimateCost(caps, req.EstimatedTokens)
		scores = append(scores, optimization.ModelScore{
			ModelID:            id,
			Provider:           caps.Provider,
			Score:              quality / math.Max(cost, minCostForRatio),
			EstimatedCostUSD:   cost,
			EstimatedLatencyMs: s.latency.EstimateLatency(id, caps, req.EstimatedTokens),
			Reasons: []string{
				fmt.Sprintf("%s quality %.2f meets threshold %.2f", req.TaskType, quality, qualityThreshold),
				fmt.Sprintf("estimated cost $%.6f", cost),
			},
		})
	}

	sortScores(scores)
	return scores, nil
}

// BuildFallbackChain returns the primary model followed by the cheapest
// eligible model of the same provider and the best eligible model of
// another provider. Slots without a candidate are skipped.
func (s *Service) BuildFallbackChain(primary string, req catalog.TaskRequirements) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	primaryCaps, ok := s.catalog.Model(primary)
	if !ok {
		return nil, errors.Mark(errors.ErrUnknownModel, errors.Newf("model %q", primary), "cannot build fallback chain")
	}

	var (
		sameProvider, otherProvider string
		cheapest                    = math.Inf(1)
		bestQuality                 = -1.0
		bestQualityCost             float64
	)

	for _, id := range s.catalog.ModelIDs() {
		if id == primary {
			continue
		}
		caps, _ := s.catalog.Model(id)
		if !MeetsRequirements(id, caps, req, s.latency) {
			continue
		}
		cost := EstimateCost(caps, req.EstimatedTokens)

		if caps.Provider == primaryCaps.Provider {
			if cost < cheapest {
				cheapest = cost
				sameProvider = id
			}
			continue
		}

		// ids are visited in order, so equal quality and cost keeps the first id
		q := s.catalog.Quality(req.TaskType, id)
		if q > bestQuality || (q == bestQuality && cost < bestQualityCost) {
			bestQuality = q
			bestQualityCost = cost
			otherProvider = id
		}
	}

	chain := []string{primary}
	if sameProvider != "" {
		chain = append(chain, sameProvider)
	}
	if otherProvider != "" {
		chain = append(chain, otherProvider)
	}
	return chain, nil
}

// TrackModelPerformance records the outcome of a completed call as
// reported by the caller. Only invalid input is an error; storage and
// notification are best-effort.
func (s *Service) TrackModelPerformance(ctx context.Context, userID, model string, task catalog.TaskType, outcome performance.Outcome) error {
	return s.track(ctx, userID, model, task, outcome, false)
}

// TrackObservedPerformance records an outcome measured by the gateway.
// Unlike caller reports, its latency also feeds latency telemetry.
func (s *Service) TrackObservedPerformance(ctx context.Context, userID, model string, task catalog.TaskType, outcome performance.Outcome) error {
	return s.track(ctx, userID, model, task, outcome, true)
}

func (s *Service) track(ctx context.Context, userID, model string, task catalog.TaskType, outcome performance.Outcome, measured bool) error {
	if userID == "" {
		return errors.NewValidationError("userId", "is required", userID)
	}
	if model == "" {
		return errors.NewValidationError("model", "is required", model)
	}
	if !task.IsValid() {
		return errors.NewValidationError("taskType", "unsupported task type", task)
	}
	if err := outcome.Validate(); err != nil {
		return err
	}

	record := performance.NewRecord(userID, model, task, outcome, s.now().UTC())
	s.cache.Add(*record)
	if measured {
		s.cache.AddLatencySample(*record)
	}
	metrics.RecordPerformanceTracked(model, outcome.Success)

	if err := s.history.Append(ctx, record); err != nil {
		metrics.PerformanceWriteFailures.Inc()
		s.log.Errorw("Failed to store performance record",
			"user_id", userID,
			"model", model,
			"error", err,
		)
	}

	if s.recs != nil {
		if err := s.recs.Invalidate(ctx, userID, task); err != nil {
			s.log.Warnw("Failed to invalidate recommendations",
				"user_id", userID,
				"task_type", task,
				"error", err,
			)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishModelPerformance(ctx, record); err != nil {
			s.log.Warnw("Failed to publish performance event",
				"record_id", record.ID,
				"error", err,
			)
		}
	}

	return nil
}

// PersonalizedRecommendations ranks the models the user has used
// successfully for the task by confidence
func (s *Service) PersonalizedRecommendations(ctx context.Context, userID string, task catalog.TaskType) ([]optimization.Recommendation, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId", "is required", userID)
	}
	if !task.IsValid() {
		return nil, errors.NewValidationError("taskType", "unsupported task type", task)
	}

	if s.recs != nil {
		cached, err := s.recs.Get(ctx, userID, task)
		switch {
		case err == nil:
			metrics.RecommendationCache.WithLabelValues("hit").Inc()
			return cached, nil
		case errors.Is(err, errors.ErrNotFound):
			metrics.RecommendationCache.WithLabelValues("miss").Inc()
		default:
			metrics.RecommendationCache.WithLabelValues("error").Inc()
			s.log.Warnw("Recommendation cache read failed", "user_id", userID, "error", err)
		}
	}

	since := s.now().UTC().AddDate(0, 0, -s.cfg.RecommendationWindowDays)
	records, err := s.history.Query(ctx, performance.Filter{
		UserID:      userID,
		TaskType:    &task,
		Since:       &since,
		SuccessOnly: true,
		Limit:       s.cfg.RecommendationLimit,
	})
	if err != nil {
		return nil, errors.Mark(errors.ErrHistoryUnavailable, err, "failed to query performance history")
	}

	recs := recommend(records, task)

	if s.recs != nil {
		if err := s.recs.Set(ctx, userID, task, recs, s.cfg.RecommendationTTL); err != nil {
			s.log.Warnw("Failed to cache recommendations", "user_id", userID, "error", err)
		}
	}

	return recs, nil
}

type modelStats struct {
	uses       int
	ratingSum  float64
	latencySum float64
}

// recommend aggregates records per model; unrated calls count as 3 stars
func recommend(records []*performance.Record, task catalog.TaskType) []optimization.Recommendation {
	byModel := make(map[string]*modelStats)
	for _, r := range records {
		if !r.Success {
			continue
		}
		st, ok := byModel[r.Model]
		if !ok {
			st = &modelStats{}
			byModel[r.Model] = st
		}
		st.uses++
		st.latencySum += r.LatencyMs
		if r.UserRating != nil {
			st.ratingSum += float64(*r.UserRating)
		} else {
			st.ratingSum += defaultRating
		}
	}

	out := make([]optimization.Recommendation, 0, len(byModel))
	for model, st := range byModel {
		n := float64(st.uses)
		avgRating := st.ratingSum / n
		avgLatency := st.latencySum / n
		confidence := math.Min(n/10, 1) * (avgRating / 5)

		out = append(out, optimization.Recommendation{
			Model:        model,
			TaskType:     task,
			Confidence:   confidence,
			Reason:       fmt.Sprintf("Used %d times for %s with an average rating of %.1f and %.0fms latency", st.uses, task, avgRating, avgLatency),
			Uses:         st.uses,
			AvgRating:    avgRating,
			AvgLatencyMs: avgLatency,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// sortScores orders by score descending, ties by model id
func sortScores(scores []optimization.ModelScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ModelID < scores[j].ModelID
	})
}
