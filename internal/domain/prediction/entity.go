package prediction

import (
	"time"

	"github.com/google/uuid"

	"costguardian/pkg/errors"
)

// Period is the forecast horizon
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Days returns the number of days the period spans
func (p Period) Days() int {
	switch p {
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	default:
		return 1
	}
}

// WeekendDiscount approximates lower weekend usage for multi-day horizons.
// It is a fixed multiplier, not derived from the data.
func (p Period) WeekendDiscount() float64 {
	switch p {
	case PeriodWeekly:
		return 0.94
	case PeriodMonthly:
		return 0.96
	default:
		return 1
	}
}

// Validate checks the period is supported
func (p Period) Validate() error {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return nil
	default:
		return errors.NewValidationError("period", "must be daily, weekly or monthly", p)
	}
}

// Trend classifies the direction of spend
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Breakdown splits the predicted cost by provider and model
type Breakdown struct {
	ByProvider map[string]float64 `json:"byProvider"`
	ByModel    map[string]float64 `json:"byModel"`
}

// Result is the forecast returned to callers
type Result struct {
	Period           Period    `json:"period"`
	PredictedCost    float64   `json:"predictedCost"`
	Confidence       float64   `json:"confidence"`
	Trend            Trend     `json:"trend"`
	PercentageChange float64   `json:"percentageChange"`
	Recommendations  []string  `json:"recommendations"`
	Breakdown        Breakdown `json:"breakdown"`

	// IsDefault marks a placeholder estimate produced without enough history
	IsDefault   bool      `json:"isDefault"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Features captures the inputs a forecast was derived from
type Features struct {
	RecordCount      int     `json:"recordCount"`
	DaysWithData     int     `json:"daysWithData"`
	LookbackDays     int     `json:"lookbackDays"`
	AvgDailyCost     float64 `json:"avgDailyCost"`
	AvgDailyRequests float64 `json:"avgDailyRequests"`
	GrowthRate       float64 `json:"growthRate"`
	DistinctModels   int     `json:"distinctModels"`
	PeakHour         int     `json:"peakHour"`
}

// StoredPrediction is the append-only audit row kept for accuracy tracking
type StoredPrediction struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	OrganizationID *string   `db:"organization_id" json:"organizationId,omitempty"`
	Period         Period    `db:"period" json:"period"`
	PredictedCost  float64   `db:"predicted_cost" json:"predictedCost"`
	Confidence     float64   `db:"confidence" json:"confidence"`
	BasedOnDays    int       `db:"based_on_days" json:"basedOnDays"`
	Features       Features  `db:"features" json:"features"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// WindowEnd returns the end of the period the prediction covers
func (s *StoredPrediction) WindowEnd() time.Time {
	return s.CreatedAt.AddDate(0, 0, s.Period.Days())
}

// AccuracyEntry compares one stored prediction to realized spend
type AccuracyEntry struct {
	PredictionID  uuid.UUID `json:"predictionId"`
	Period        Period    `json:"period"`
	PredictedCost float64   `json:"predictedCost"`
	ActualCost    float64   `json:"actualCost"`
	// Error is |predicted-actual|/actual; nil when actual spend was zero
	// or the window is still open
	Error *float64 `json:"error,omitempty"`
	// Pending marks a window that has not ended; ActualCost is spend so far
	Pending   bool      `json:"pending,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AccuracyReport aggregates recent prediction errors
type AccuracyReport struct {
	Accuracy    float64         `json:"accuracy"`
	Evaluated   int             `json:"evaluated"`
	Predictions []AccuracyEntry `json:"predictions"`
}
