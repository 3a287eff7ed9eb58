package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/performance"
	"costguardian/internal/metrics"
	"costguardian/pkg/errors"
)

// Compile-time check
var _ performance.Repository = (*PerformanceRepository)(nil)

// PerformanceRepository implements performance.Repository using sqlx
type PerformanceRepository struct {
	db DBTX
}

// NewPerformanceRepository creates a new performance log repository
func NewPerformanceRepository(db DBTX) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

type performanceRow struct {
	ID         uuid.UUID       `db:"id"`
	UserID     string          `db:"user_id"`
	Model      string          `db:"model"`
	TaskType   string          `db:"task_type"`
	LatencyMs  float64         `db:"latency_ms"`
	Tokens     int             `db:"tokens"`
	Cost       decimal.Decimal `db:"cost_usd"`
	Success    bool            `db:"success"`
	UserRating *int            `db:"user_rating"`
	Timestamp  time.Time       `db:"timestamp"`
}

func (r performanceRow) toDomain() *performance.Record {
	return &performance.Record{
		ID:         r.ID,
		UserID:     r.UserID,
		Model:      r.Model,
		TaskType:   catalog.TaskType(r.TaskType),
		LatencyMs:  r.LatencyMs,
		Tokens:     r.Tokens,
		Cost:       r.Cost.InexactFloat64(),
		Success:    r.Success,
		UserRating: r.UserRating,
		Timestamp:  r.Timestamp,
	}
}

// Append inserts one performance record
func (r *PerformanceRepository) Append(ctx context.Context, rec *performance.Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `
		INSERT INTO model_performance (
			id, user_id, model, task_type, latency_ms, tokens,
			cost_usd, success, user_rating, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Model, rec.TaskType.String(), rec.LatencyMs, rec.Tokens,
		decimal.NewFromFloat(rec.Cost), rec.Success, rec.UserRating, rec.Timestamp,
	)
	metrics.RecordDBQuery("postgres", "insert_performance", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, "failed to insert performance record")
	}
	return nil
}

// Query returns records matching the filter, newest first
func (r *PerformanceRepository) Query(ctx context.Context, f performance.Filter) ([]*performance.Record, error) {
	if f.UserID == "" {
		return nil, errors.NewValidationError("userId", "is required", f.UserID)
	}

	conds := []string{"user_id = $1"}
	args := []interface{}{f.UserID}

	if f.TaskType != nil {
		args = append(args, f.TaskType.String())
		conds = append(conds, fmt.Sprintf("task_type = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if f.SuccessOnly {
		conds = append(conds, "success = TRUE")
	}

	query := `
		SELECT id, user_id, model, task_type, latency_ms, tokens,
			cost_usd, success, user_rating, timestamp
		FROM model_performance
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY timestamp DESC`

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	start := time.Now()
	var rows []performanceRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	metrics.RecordDBQuery("postgres", "query_performance", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query performance records")
	}

	out := make([]*performance.Record, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
