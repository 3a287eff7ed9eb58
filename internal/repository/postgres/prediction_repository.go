package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
	"costguardian/internal/metrics"
	"costguardian/pkg/errors"
)

// Compile-time check
var _ prediction.AuditStore = (*PredictionRepository)(nil)

// PredictionRepository implements prediction.AuditStore using sqlx
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a new prediction audit repository
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// predictionRow is the on-disk shape: cost as NUMERIC, features as JSONB
type predictionRow struct {
	ID             uuid.UUID       `db:"id"`
	UserID         string          `db:"user_id"`
	OrganizationID *string         `db:"organization_id"`
	Period         string          `db:"period"`
	PredictedCost  decimal.Decimal `db:"predicted_cost"`
	Confidence     float64         `db:"confidence"`
	BasedOnDays    int             `db:"based_on_days"`
	Features       []byte          `db:"features"`
	CreatedAt      time.Time       `db:"created_at"`
}

func (r predictionRow) toDomain() (*prediction.StoredPrediction, error) {
	sp := &prediction.StoredPrediction{
		ID:             r.ID,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		Period:         prediction.Period(r.Period),
		PredictedCost:  r.PredictedCost.InexactFloat64(),
		Confidence:     r.Confidence,
		BasedOnDays:    r.BasedOnDays,
		CreatedAt:      r.CreatedAt,
	}
	if len(r.Features) > 0 {
		if err := json.Unmarshal(r.Features, &sp.Features); err != nil {
			return nil, errors.Wrapf(err, "failed to decode features of prediction %s", r.ID)
		}
	}
	return sp, nil
}

// Append inserts one prediction; rows are never updated
func (r *PredictionRepository) Append(ctx context.Context, p *prediction.StoredPrediction) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	features, err := json.Marshal(p.Features)
	if err != nil {
		return errors.Wrap(err, "failed to encode prediction features")
	}

	query := `
		INSERT INTO stored_predictions (
			id, user_id, organization_id, period,
			predicted_cost, confidence, based_on_days, features, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	start := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.OrganizationID, string(p.Period),
		decimal.NewFromFloat(p.PredictedCost), p.Confidence, p.BasedOnDays, features, p.CreatedAt,
	)
	metrics.RecordDBQuery("postgres", "insert_prediction", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, "failed to insert stored prediction")
	}
	return nil
}

// QueryRecent returns up to limit predictions for the subject created at or
// after since, newest first. An organization subject matches the whole org.
func (r *PredictionRepository) QueryRecent(ctx context.Context, subject usage.Subject, since time.Time, limit int) ([]*prediction.StoredPrediction, error) {
	var (
		query string
		arg   string
	)
	if subject.IsOrganization() {
		query = `
			SELECT id, user_id, organization_id, period, predicted_cost,
				confidence, based_on_days, features, created_at
			FROM stored_predictions
			WHERE organization_id = $1 AND created_at >= $2
			ORDER BY created_at DESC
			LIMIT $3`
		arg = subject.OrganizationID
	} else {
		query = `
			SELECT id, user_id, organization_id, period, predicted_cost,
				confidence, based_on_days, features, created_at
			FROM stored_predictions
			WHERE user_id = $1 AND organization_id IS NULL AND created_at >= $2
			ORDER BY created_at DESC
			LIMIT $3`
		arg = subject.UserID
	}

	start := time.Now()
	var rows []predictionRow
	err := r.db.SelectContext(ctx, &rows, query, arg, since, limit)
	metrics.RecordDBQuery("postgres", "query_predictions", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stored predictions")
	}

	out := make([]*prediction.StoredPrediction, 0, len(rows))
	for _, row := range rows {
		sp, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// ListRecentSubjects returns distinct subjects that received predictions since the given time
func (r *PredictionRepository) ListRecentSubjects(ctx context.Context, since time.Time, limit int) ([]usage.Subject, error) {
	query := `
		SELECT user_id, COALESCE(organization_id, '') AS organization_id
		FROM stored_predictions
		WHERE created_at >= $1
		GROUP BY user_id, organization_id
		ORDER BY MAX(created_at) DESC
		LIMIT $2`

	var rows []struct {
		UserID         string `db:"user_id"`
		OrganizationID string `db:"organization_id"`
	}

	start := time.Now()
	err := r.db.SelectContext(ctx, &rows, query, since, limit)
	metrics.RecordDBQuery("postgres", "list_prediction_subjects", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list prediction subjects")
	}

	subjects := make([]usage.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, usage.Subject{UserID: row.UserID, OrganizationID: row.OrganizationID})
	}
	return subjects, nil
}
