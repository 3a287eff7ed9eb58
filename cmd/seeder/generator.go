package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/events"
)

// Profile controls the shape of generated usage history
type Profile struct {
	Users          int
	Organizations  int
	Days           int
	RequestsPerDay int
	// DailyGrowth compounds request volume day over day
	DailyGrowth float64
	Seed        int64
}

// profiles maps a seeding environment to its history shape
var profiles = map[string]Profile{
	"dev":  {Users: 20, Organizations: 3, Days: 45, RequestsPerDay: 40, DailyGrowth: 0.01, Seed: 42},
	"test": {Users: 3, Organizations: 1, Days: 14, RequestsPerDay: 5, DailyGrowth: 0, Seed: 1},
	"load": {Users: 500, Organizations: 25, Days: 90, RequestsPerDay: 200, DailyGrowth: 0.005, Seed: 7},
}

// Generator produces synthetic usage events priced from the model catalog
type Generator struct {
	catalog *catalog.Catalog
	profile Profile
	rng     *rand.Rand
}

// NewGenerator creates a deterministic generator for the profile
func NewGenerator(cat *catalog.Catalog, profile Profile) *Generator {
	return &Generator{
		catalog: cat,
		profile: profile,
		rng:     rand.New(rand.NewSource(profile.Seed)),
	}
}

// Generate emits events for every user and day ending at end, oldest first per user
func (g *Generator) Generate(end time.Time, emit func(*events.UsageRecordedEvent) error) (int, error) {
	models := g.catalog.ModelIDs()
	start := end.Truncate(24*time.Hour).AddDate(0, 0, -g.profile.Days)
	total := 0

	for u := 0; u < g.profile.Users; u++ {
		userID := fmt.Sprintf("seed-user-%03d", u)
		orgID := ""
		if g.profile.Organizations > 0 && u%2 == 0 {
			orgID = fmt.Sprintf("seed-org-%02d", (u/2)%g.profile.Organizations)
		}

		// Each user leans on a couple of favourite models
		favourites := []string{models[g.rng.Intn(len(models))], models[g.rng.Intn(len(models))]}

		for d := 0; d < g.profile.Days; d++ {
			day := start.AddDate(0, 0, d)
			volume := float64(g.profile.RequestsPerDay) * math.Pow(1+g.profile.DailyGrowth, float64(d))
			if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
				volume *= 0.6
			}

			n := int(volume*(0.8+0.4*g.rng.Float64()) + 0.5)
			for i := 0; i < n; i++ {
				model := favourites[g.rng.Intn(len(favourites))]
				if g.rng.Float64() < 0.2 {
					model = models[g.rng.Intn(len(models))]
				}

				if err := emit(g.event(userID, orgID, model, g.timestamp(day))); err != nil {
					return total, err
				}
				total++
			}
		}
	}
	return total, nil
}

// timestamp clusters requests around business hours
func (g *Generator) timestamp(day time.Time) time.Time {
	hour := int(math.Round(g.rng.NormFloat64()*3 + 14))
	hour = min(max(hour, 0), 23)
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(g.rng.Intn(3600))*time.Second)
}

func (g *Generator) event(userID, orgID, model string, ts time.Time) *events.UsageRecordedEvent {
	caps, _ := g.catalog.Model(model)
	input := uint32(200 + g.rng.Intn(4000))
	output := uint32(50 + g.rng.Intn(1500))
	cost := (float64(input)*caps.CostPerMillionTokens.Input + float64(output)*caps.CostPerMillionTokens.Output) / 1_000_000

	return &events.UsageRecordedEvent{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
		Timestamp:      ts,
		Cost:           cost,
		InputTokens:    input,
		OutputTokens:   output,
		Provider:       caps.Provider,
		Model:          model,
	}
}
