package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"costguardian/internal/adapters/clickhouse"
	"costguardian/internal/adapters/config"
	"costguardian/internal/domain/usage"
	"costguardian/migrations"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper creates a ClickHouse client for tests and applies migrations.
func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	ctx := context.Background()
	client, err := clickhouse.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	if err := migrations.ApplyClickHouse(ctx, client.Conn()); err != nil {
		_ = client.Close()
		t.Fatalf("failed to apply clickhouse migrations: %v", err)
	}

	helper := &ClickHouseTestHelper{client: client}
	t.Cleanup(func() { _ = client.Close() })
	return helper
}

// Client exposes the raw ClickHouse client for queries.
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// CreateTempTable creates a temporary table and registers cleanup.
func (h *ClickHouseTestHelper) CreateTempTable(t *testing.T, schema string) string {
	t.Helper()

	table := fmt.Sprintf("tmp_test_%d", time.Now().UnixNano())
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()", table, schema)

	if err := h.client.Conn().Exec(context.Background(), query); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	t.Cleanup(func() {
		_ = h.CleanupTable(context.Background(), table)
	})

	return table
}

// CleanupTable drops the provided table immediately.
func (h *ClickHouseTestHelper) CleanupTable(ctx context.Context, table string) error {
	return h.client.Conn().Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
}

// RegisterTableCleanup schedules deletion of matching rows after the test.
// Use it for shared tables that must not be dropped.
func (h *ClickHouseTestHelper) RegisterTableCleanup(t *testing.T, table, condition string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Lightweight DELETE is synchronous, ALTER TABLE DELETE is not
		_ = h.client.Conn().Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, condition))
	})
}

// UsageFixture builds usage records for tests
type UsageFixture struct {
	record usage.UsageRecord
}

// NewUsageFixture creates a default record: one gpt-4o-mini call an hour ago
func NewUsageFixture() *UsageFixture {
	return &UsageFixture{
		record: usage.UsageRecord{
			ID:           uuid.New().String(),
			UserID:       UniqueName("user"),
			Timestamp:    time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond),
			Cost:         0.0125,
			InputTokens:  1200,
			OutputTokens: 300,
			Provider:     "openai",
			Model:        "gpt-4o-mini",
		},
	}
}

// WithUser sets the user id
func (f *UsageFixture) WithUser(userID string) *UsageFixture {
	f.record.UserID = userID
	return f
}

// WithOrganization sets the organization id
func (f *UsageFixture) WithOrganization(orgID string) *UsageFixture {
	f.record.OrganizationID = orgID
	return f
}

// WithCost sets the cost in USD
func (f *UsageFixture) WithCost(cost float64) *UsageFixture {
	f.record.Cost = cost
	return f
}

// WithModel sets the provider and model
func (f *UsageFixture) WithModel(provider, model string) *UsageFixture {
	f.record.Provider = provider
	f.record.Model = model
	return f
}

// At sets the timestamp
func (f *UsageFixture) At(ts time.Time) *UsageFixture {
	f.record.Timestamp = ts.UTC().Truncate(time.Millisecond)
	return f
}

// Build returns a copy of the record
func (f *UsageFixture) Build() *usage.UsageRecord {
	rec := f.record
	return &rec
}

// BuildDaily returns n records, one per day, ending at the fixture timestamp
func (f *UsageFixture) BuildDaily(n int) []*usage.UsageRecord {
	out := make([]*usage.UsageRecord, n)
	for i := 0; i < n; i++ {
		rec := f.record
		rec.ID = uuid.New().String()
		rec.Timestamp = f.record.Timestamp.AddDate(0, 0, i-n+1)
		out[i] = &rec
	}
	return out
}
