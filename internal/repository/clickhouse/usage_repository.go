package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"costguardian/internal/domain/usage"
	"costguardian/internal/metrics"
	"costguardian/pkg/clickhouse"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// Compile-time check
var _ usage.Repository = (*UsageRepository)(nil)

const usageTable = "usage_records"

// UsageRepository implements usage.Repository for ClickHouse.
// Writes go through a batch writer; reads hit the table directly.
type UsageRepository struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter[*usage.UsageRecord]
	log         *logger.Logger
}

// UsageRepositoryConfig sizes the write buffer
type UsageRepositoryConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// NewUsageRepository creates a new usage repository with batch writer
func NewUsageRepository(conn driver.Conn, cfg UsageRepositoryConfig) *UsageRepository {
	repo := &UsageRepository{
		conn: conn,
		log:  logger.Get().With("component", "usage_repository"),
	}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[*usage.UsageRecord]{
		FlushFunc:    repo.flushBatch,
		TableName:    usageTable,
		MaxBatchSize: cfg.BatchSize,
		MaxAge:       cfg.FlushInterval,
	})

	return repo
}

// Start begins the background flush loop
func (r *UsageRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop flushes pending records and stops the batch writer
func (r *UsageRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Flush writes buffered records now
func (r *UsageRepository) Flush(ctx context.Context) error {
	return r.batchWriter.Flush(ctx)
}

// Store buffers a usage record; it is written on the next flush
func (r *UsageRepository) Store(ctx context.Context, record *usage.UsageRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return r.batchWriter.Add(ctx, record)
}

// flushBatch sends the whole buffer as one native batch INSERT
func (r *UsageRepository) flushBatch(ctx context.Context, batch []*usage.UsageRecord) error {
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	stmt, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO usage_records (
			id, user_id, organization_id, timestamp,
			cost_usd, input_tokens, output_tokens,
			provider, model
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	for _, rec := range batch {
		if err := stmt.AppendStruct(rec); err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
	}

	err = stmt.Send()
	metrics.RecordDBQuery("clickhouse", "insert_usage", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	r.log.Debugw("Usage batch inserted", "records", len(batch), "duration", time.Since(start))
	return nil
}

// subjectFilter scopes a query to the organization or the single user
func subjectFilter(subject usage.Subject) (string, string) {
	if subject.IsOrganization() {
		return "organization_id = ?", subject.OrganizationID
	}
	return "user_id = ?", subject.UserID
}

// Query returns the subject's records with timestamp >= since, oldest first
func (r *UsageRepository) Query(ctx context.Context, subject usage.Subject, since time.Time) ([]*usage.UsageRecord, error) {
	where, arg := subjectFilter(subject)
	query := `
		SELECT id, user_id, organization_id, timestamp,
			cost_usd, input_tokens, output_tokens,
			provider, model
		FROM usage_records
		WHERE ` + where + ` AND timestamp >= ?
		ORDER BY timestamp ASC
	`

	start := time.Now()
	var rows []usage.UsageRecord
	err := r.conn.Select(ctx, &rows, query, arg, since)
	metrics.RecordDBQuery("clickhouse", "query_usage", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage records")
	}

	out := make([]*usage.UsageRecord, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

// ActualCost sums the subject's spend in [from, to)
func (r *UsageRepository) ActualCost(ctx context.Context, subject usage.Subject, from, to time.Time) (float64, error) {
	where, arg := subjectFilter(subject)
	query := `
		SELECT sum(cost_usd)
		FROM usage_records
		WHERE ` + where + ` AND timestamp >= ? AND timestamp < ?
	`

	start := time.Now()
	var total float64
	err := r.conn.QueryRow(ctx, query, arg, from, to).Scan(&total)
	metrics.RecordDBQuery("clickhouse", "actual_cost", time.Since(start), err)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum usage cost")
	}
	return total, nil
}

// Stats returns the batch writer counters
func (r *UsageRepository) Stats() clickhouse.BatchWriterStats {
	return r.batchWriter.GetStats()
}
