package workers

import (
	"context"
	"time"

	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
	"costguardian/internal/metrics"
	"costguardian/pkg/errors"
)

// accuracyLookback matches the window PredictionAccuracy evaluates
const accuracyLookback = 30 * 24 * time.Hour

// AccuracyEvaluator computes prediction accuracy for a subject
type AccuracyEvaluator interface {
	PredictionAccuracy(ctx context.Context, subject usage.Subject) (*prediction.AccuracyReport, error)
}

// SubjectLister returns subjects with recent predictions
type SubjectLister interface {
	ListRecentSubjects(ctx context.Context, since time.Time, limit int) ([]usage.Subject, error)
}

// AccuracyAuditWorker periodically samples prediction accuracy of recently
// forecast subjects into the accuracy histogram
type AccuracyAuditWorker struct {
	*BaseWorker
	subjects    SubjectLister
	evaluator   AccuracyEvaluator
	maxSubjects int
	now         func() time.Time
}

// NewAccuracyAuditWorker creates the accuracy audit worker
func NewAccuracyAuditWorker(subjects SubjectLister, evaluator AccuracyEvaluator, interval time.Duration, maxSubjects int, enabled bool) *AccuracyAuditWorker {
	if maxSubjects <= 0 {
		maxSubjects = 200
	}
	return &AccuracyAuditWorker{
		BaseWorker:  NewBaseWorker("accuracy_audit", interval, enabled),
		subjects:    subjects,
		evaluator:   evaluator,
		maxSubjects: maxSubjects,
		now:         time.Now,
	}
}

// Run evaluates every listed subject. One subject failing does not stop the
// others; the run fails only if every evaluation failed.
func (w *AccuracyAuditWorker) Run(ctx context.Context) error {
	subjects, err := w.subjects.ListRecentSubjects(ctx, w.now().Add(-accuracyLookback), w.maxSubjects)
	if err != nil {
		return errors.Mark(errors.ErrHistoryUnavailable, err, "failed to list prediction subjects")
	}

	var (
		failures  errors.MultiError
		evaluated int
		observed  int
	)
	for _, subject := range subjects {
		if ctx.Err() != nil {
			return nil
		}

		report, err := w.evaluator.PredictionAccuracy(ctx, subject)
		if err != nil {
			failures.Add(errors.Wrapf(err, "subject %s", subject.Key()))
			continue
		}
		evaluated++

		if report.Evaluated > 0 {
			metrics.PredictionAccuracy.Observe(report.Accuracy)
			observed++
		}
	}

	w.Log().Infow("Accuracy audit completed",
		"subjects", len(subjects),
		"evaluated", evaluated,
		"observed", observed,
		"failed", len(failures.Errors),
	)

	if evaluated == 0 && failures.HasErrors() {
		return failures.ToError()
	}
	if failures.HasErrors() {
		w.Log().Warnw("Some subjects could not be audited", "error", failures.Errors[0])
	}
	return nil
}
