package predictor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
	"costguardian/internal/metrics"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

const (
	accuracyWindowDays = 30
	accuracySampleSize = 10
)

// EventPublisher announces stored predictions to downstream consumers
type EventPublisher interface {
	PublishPredictionCreated(ctx context.Context, p *prediction.StoredPrediction) error
}

// Service forecasts AI spend from usage history and audits its own accuracy
type Service struct {
	usage     usage.Reader
	audit     prediction.AuditStore
	publisher EventPublisher
	fallback  *fallbackEstimator
	cfg       Config
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a new cost predictor. publisher may be nil.
func NewService(
	usageReader usage.Reader,
	audit prediction.AuditStore,
	publisher EventPublisher,
	cfg Config,
	log *logger.Logger,
) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		usage:     usageReader,
		audit:     audit,
		publisher: publisher,
		fallback:  newFallbackEstimator(cfg.FallbackBaseMonthly, cfg.FallbackJitter, cfg.FallbackSeed),
		cfg:       cfg,
		log:       log.With("component", "cost_predictor"),
		now:       time.Now,
	}
}

// Predict forecasts the subject's spend over the period from the last
// lookbackDays of usage. Thin history yields a flagged default estimate.
func (s *Service) Predict(ctx context.Context, subject usage.Subject, period prediction.Period, lookbackDays int) (*prediction.Result, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if lookbackDays <= 0 {
		lookbackDays = s.cfg.DefaultLookbackDays
	}
	if lookbackDays > s.cfg.MaxLookbackDays {
		return nil, errors.NewValidationError("lookbackDays", fmt.Sprintf("must not exceed %d", s.cfg.MaxLookbackDays), lookbackDays)
	}

	now := s.now().UTC()
	records, err := s.usage.Query(ctx, subject, now.AddDate(0, 0, -lookbackDays))
	if err != nil {
		metrics.RecordPrediction(string(period), false, 0, err)
		return nil, errors.Mark(errors.ErrHistoryUnavailable, err, "failed to query usage history")
	}

	if len(records) < s.cfg.MinRecords {
		s.log.Debugw("Not enough usage history, returning default estimate",
			"subject", subject.Key(),
			"records", len(records),
		)
		result := s.fallback.result(period, now)
		metrics.RecordPrediction(string(period), true, result.Confidence, nil)
		return result, nil
	}

	st := aggregate(records)
	predicted := project(st.avgDailyCost, st.growthRate, period)
	change := st.growthRate * float64(period.Days())
	trend := classifyTrend(st.growthRate)

	result := &prediction.Result{
		Period:           period,
		PredictedCost:    predicted,
		Confidence:       st.confidence(),
		Trend:            trend,
		PercentageChange: change,
		Recommendations:  s.recommend(st, trend, change, predicted, period),
		Breakdown:        st.breakdown(predicted),
		GeneratedAt:      now,
	}

	metrics.RecordPrediction(string(period), false, result.Confidence, nil)
	s.store(ctx, subject, lookbackDays, result, st.features(lookbackDays))

	return result, nil
}

// store appends the audit row and announces it; failures are logged only
func (s *Service) store(ctx context.Context, subject usage.Subject, lookbackDays int, result *prediction.Result, features prediction.Features) {
	stored := &prediction.StoredPrediction{
		ID:            uuid.New(),
		UserID:        subject.UserID,
		Period:        result.Period,
		PredictedCost: result.PredictedCost,
		Confidence:    result.Confidence,
		BasedOnDays:   lookbackDays,
		Features:      features,
		CreatedAt:     result.GeneratedAt,
	}
	if subject.IsOrganization() {
		org := subject.OrganizationID
		stored.OrganizationID = &org
	}

	if err := s.audit.Append(ctx, stored); err != nil {
		metrics.PredictionPersistFailures.Inc()
		s.log.Errorw("Failed to store prediction",
			"subject", subject.Key(),
			"period", result.Period,
			"error", err,
		)
		return
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPredictionCreated(ctx, stored); err != nil {
		s.log.Warnw("Failed to publish prediction event",
			"prediction_id", stored.ID,
			"error", err,
		)
	}
}

// PredictionAccuracy compares the subject's recent stored predictions
// with realized spend over each prediction's window. Predictions whose
// window is still open are listed as pending and not scored.
func (s *Service) PredictionAccuracy(ctx context.Context, subject usage.Subject) (*prediction.AccuracyReport, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -accuracyWindowDays)
	stored, err := s.audit.QueryRecent(ctx, subject, since, accuracySampleSize)
	if err != nil {
		return nil, errors.Mark(errors.ErrHistoryUnavailable, err, "failed to query stored predictions")
	}

	report := &prediction.AccuracyReport{
		Predictions: make([]prediction.AccuracyEntry, 0, len(stored)),
	}

	var errSum float64
	for _, p := range stored {
		end := p.WindowEnd()
		pending := end.After(now)
		if pending {
			end = now
		}

		actual, err := s.usage.ActualCost(ctx, subject, p.CreatedAt, end)
		if err != nil {
			return nil, errors.Mark(errors.ErrHistoryUnavailable, err, "failed to query actual cost")
		}

		entry := prediction.AccuracyEntry{
			PredictionID:  p.ID,
			Period:        p.Period,
			PredictedCost: p.PredictedCost,
			ActualCost:    actual,
			Pending:       pending,
			CreatedAt:     p.CreatedAt,
		}
		if !pending && actual > 0 {
			e := math.Abs(p.PredictedCost-actual) / actual
			entry.Error = &e
			errSum += e
			report.Evaluated++
		}
		report.Predictions = append(report.Predictions, entry)
	}

	if report.Evaluated > 0 {
		meanErr := errSum / float64(report.Evaluated)
		report.Accuracy = math.Max(0, 1-meanErr) * 100
	}

	return report, nil
}
