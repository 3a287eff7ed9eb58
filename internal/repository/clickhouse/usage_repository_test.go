package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costguardian/internal/domain/usage"
	"costguardian/internal/testsupport"
	"costguardian/pkg/errors"
)

func TestUsageRepository_StoreQueryActualCost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)

	repo := NewUsageRepository(helper.Client().Conn(), UsageRepositoryConfig{BatchSize: 100, FlushInterval: time.Minute})
	ctx := context.Background()

	userID := testsupport.UniqueName("user")
	org := testsupport.UniqueOrganization()
	helper.RegisterTableCleanup(t, "usage_records", "user_id = '"+userID+"'")

	end := time.Now().UTC().Add(-time.Hour)
	personal := testsupport.NewUsageFixture().WithUser(userID).WithCost(1).At(end).BuildDaily(5)
	orgRec := testsupport.NewUsageFixture().WithUser(userID).WithOrganization(org).
		WithModel("claude", "claude-3-haiku").WithCost(2.5).At(end).Build()

	for _, r := range append(personal, orgRec) {
		require.NoError(t, repo.Store(ctx, r))
	}
	assert.Equal(t, 6, repo.Stats().BufferSize)

	require.NoError(t, repo.Flush(ctx))
	assert.Equal(t, 0, repo.Stats().BufferSize)

	t.Run("user_query_sorted", func(t *testing.T) {
		got, err := repo.Query(ctx, usage.Subject{UserID: userID}, end.AddDate(0, 0, -10))
		require.NoError(t, err)
		require.Len(t, got, 6, "user scope includes the user's organization calls")
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
		}
	})

	t.Run("org_query", func(t *testing.T) {
		got, err := repo.Query(ctx, usage.Subject{UserID: userID, OrganizationID: org}, end.AddDate(0, 0, -10))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "claude-3-haiku", got[0].Model)
	})

	t.Run("since_is_inclusive", func(t *testing.T) {
		got, err := repo.Query(ctx, usage.Subject{UserID: userID}, end.AddDate(0, 0, -1))
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("actual_cost_half_open", func(t *testing.T) {
		total, err := repo.ActualCost(ctx, usage.Subject{UserID: userID}, end.AddDate(0, 0, -2), end)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, total, 1e-9, "window end is exclusive")
	})
}

func TestUsageRepository_StoreRejectsInvalid(t *testing.T) {
	repo := NewUsageRepository(nil, UsageRepositoryConfig{BatchSize: 10, FlushInterval: time.Second})

	err := repo.Store(context.Background(), &usage.UsageRecord{Model: "gpt-4o", Timestamp: time.Now()})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, 0, repo.Stats().BufferSize)
}
