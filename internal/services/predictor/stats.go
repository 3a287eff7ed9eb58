package predictor

import (
	"math"
	"sort"
	"time"

	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
)

// breakdownEpsilon guards share computation against a zero total
const breakdownEpsilon = 1e-9

type dailyBucket struct {
	day      time.Time
	cost     float64
	requests int
}

// usageStats is the aggregate view of a usage window
type usageStats struct {
	days          []dailyBucket // chronological
	hourly        [24]int
	modelRequests map[string]int
	modelCost     map[string]float64
	providerCost  map[string]float64
	totalCost     float64
	totalRequests int

	avgDailyCost     float64
	avgDailyRequests float64
	growthRate       float64 // OLS slope as % of mean daily cost
}

// aggregate buckets records by UTC day, hour, model and provider
func aggregate(records []*usage.UsageRecord) *usageStats {
	st := &usageStats{
		modelRequests: make(map[string]int),
		modelCost:     make(map[string]float64),
		providerCost:  make(map[string]float64),
	}

	byDay := make(map[time.Time]*dailyBucket)
	for _, r := range records {
		ts := r.Timestamp.UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)

		b, ok := byDay[day]
		if !ok {
			b = &dailyBucket{day: day}
			byDay[day] = b
		}
		b.cost += r.Cost
		b.requests++

		st.hourly[ts.Hour()]++
		st.modelRequests[r.Model]++
		st.modelCost[r.Model] += r.Cost
		st.providerCost[r.Provider] += r.Cost
		st.totalCost += r.Cost
		st.totalRequests++
	}

	st.days = make([]dailyBucket, 0, len(byDay))
	for _, b := range byDay {
		st.days = append(st.days, *b)
	}
	sort.Slice(st.days, func(i, j int) bool { return st.days[i].day.Before(st.days[j].day) })

	if n := len(st.days); n > 0 {
		st.avgDailyCost = st.totalCost / float64(n)
		st.avgDailyRequests = float64(st.totalRequests) / float64(n)
	}

	costs := make([]float64, len(st.days))
	for i, d := range st.days {
		costs[i] = d.cost
	}
	st.growthRate = growthRate(costs, st.avgDailyCost)

	return st
}

// growthRate fits cost against a 0-based day index and returns the slope
// as a percentage of the mean
func growthRate(costs []float64, mean float64) float64 {
	n := len(costs)
	if n < 2 || mean == 0 {
		return 0
	}

	xMean := float64(n-1) / 2
	var num, den float64
	for i, y := range costs {
		dx := float64(i) - xMean
		num += dx * (y - mean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return (num / den) / mean * 100
}

// peakHour returns the busiest UTC hour and its share of requests
func (st *usageStats) peakHour() (int, float64) {
	peak := 0
	for h := 1; h < len(st.hourly); h++ {
		if st.hourly[h] > st.hourly[peak] {
			peak = h
		}
	}
	if st.totalRequests == 0 {
		return peak, 0
	}
	return peak, float64(st.hourly[peak]) / float64(st.totalRequests)
}

// confidence scores how much the forecast can be trusted, capped at 0.95
func (st *usageStats) confidence() float64 {
	c := 0.5

	switch {
	case st.avgDailyRequests > 100:
		c += 0.2
	case st.avgDailyRequests > 50:
		c += 0.15
	case st.avgDailyRequests > 10:
		c += 0.1
	}

	g := math.Abs(st.growthRate)
	switch {
	case g < 10:
		c += 0.15
	case g < 20:
		c += 0.1
	case g < 50:
		c += 0.05
	}

	switch models := len(st.modelRequests); {
	case models <= 3:
		c += 0.15
	case models <= 5:
		c += 0.1
	}

	return math.Min(0.95, c)
}

// breakdown scales historical cost shares onto the predicted total
func (st *usageStats) breakdown(predicted float64) prediction.Breakdown {
	total := math.Max(st.totalCost, breakdownEpsilon)

	b := prediction.Breakdown{
		ByProvider: make(map[string]float64, len(st.providerCost)),
		ByModel:    make(map[string]float64, len(st.modelCost)),
	}
	for p, c := range st.providerCost {
		b.ByProvider[p] = c / total * predicted
	}
	for m, c := range st.modelCost {
		b.ByModel[m] = c / total * predicted
	}
	return b
}

func (st *usageStats) features(lookbackDays int) prediction.Features {
	peak, _ := st.peakHour()
	return prediction.Features{
		RecordCount:      st.totalRequests,
		DaysWithData:     len(st.days),
		LookbackDays:     lookbackDays,
		AvgDailyCost:     st.avgDailyCost,
		AvgDailyRequests: st.avgDailyRequests,
		GrowthRate:       st.growthRate,
		DistinctModels:   len(st.modelRequests),
		PeakHour:         peak,
	}
}

func classifyTrend(growth float64) prediction.Trend {
	switch {
	case growth > 5:
		return prediction.TrendIncreasing
	case growth < -5:
		return prediction.TrendDecreasing
	default:
		return prediction.TrendStable
	}
}

// project applies growth and the weekend discount over the period
func project(avgDailyCost, growth float64, period prediction.Period) float64 {
	d := float64(period.Days())
	predicted := avgDailyCost * d * (1 + growth*d/100) * period.WeekendDiscount()
	return math.Max(0, predicted)
}
