package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/events"
)

func collect(t *testing.T, p Profile, end time.Time) []*events.UsageRecordedEvent {
	t.Helper()
	var out []*events.UsageRecordedEvent
	n, err := NewGenerator(catalog.MustDefault(), p).Generate(end, func(e *events.UsageRecordedEvent) error {
		out = append(out, e)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, n, len(out))
	return out
}

func TestGenerator_ProducesValidPricedRecords(t *testing.T) {
	end := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cat := catalog.MustDefault()

	got := collect(t, profiles["test"], end)
	require.NotEmpty(t, got)

	start := end.Truncate(24*time.Hour).AddDate(0, 0, -profiles["test"].Days)
	for _, e := range got {
		rec := e.ToRecord(end)
		require.NoError(t, rec.Validate())

		caps, ok := cat.Model(e.Model)
		require.True(t, ok, e.Model)
		assert.Equal(t, caps.Provider, e.Provider)
		assert.Greater(t, e.Cost, 0.0)
		assert.False(t, e.Timestamp.Before(start))
		assert.True(t, e.Timestamp.Before(end.Truncate(24*time.Hour)))
	}
}

func TestGenerator_DeterministicPerSeed(t *testing.T) {
	end := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	a := collect(t, profiles["test"], end)
	b := collect(t, profiles["test"], end)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Model, b[i].Model)
		assert.Equal(t, a[i].Cost, b[i].Cost)
		assert.Equal(t, a[i].Timestamp, b[i].Timestamp)
	}
}

func TestGenerator_OrganizationsAssigned(t *testing.T) {
	got := collect(t, Profile{Users: 4, Organizations: 2, Days: 2, RequestsPerDay: 3, Seed: 3}, time.Now().UTC())

	orgs := map[string]bool{}
	personal := 0
	for _, e := range got {
		if e.OrganizationID == "" {
			personal++
			continue
		}
		orgs[e.OrganizationID] = true
	}
	assert.Positive(t, personal)
	assert.Len(t, orgs, 2)
}
