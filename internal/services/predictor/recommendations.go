package predictor

import (
	"fmt"
	"math"
	"slices"

	"github.com/dustin/go-humanize"

	"costguardian/internal/domain/prediction"
)

const (
	maxRecommendations    = 5
	defaultRecommendation = "Usage patterns look healthy. Maintain current strategy."
)

// recommend evaluates the advice rules in a fixed order
func (s *Service) recommend(st *usageStats, trend prediction.Trend, change, predicted float64, period prediction.Period) []string {
	var out []string

	switch {
	case trend == prediction.TrendIncreasing && change > 20:
		out = append(out, fmt.Sprintf("Costs are rising quickly (+%.1f%% over the %s period). Review recent usage spikes and set budget alerts.", change, period))
	case trend == prediction.TrendIncreasing:
		out = append(out, fmt.Sprintf("Costs are trending up (+%.1f%% over the %s period). Keep an eye on new workloads.", change, period))
	case trend == prediction.TrendDecreasing:
		out = append(out, fmt.Sprintf("Costs are trending down (%.1f%% over the %s period). Recent optimizations are paying off.", change, period))
	}

	if share := s.expensiveShare(st); share > s.cfg.ExpensiveShareThreshold {
		out = append(out, fmt.Sprintf("Premium models account for %.0f%% of spend. Route routine tasks to cheaper models such as gpt-4o-mini or claude-3-haiku.", share*100))
	}

	if hour, share := st.peakHour(); share > s.cfg.PeakHourShareThreshold {
		out = append(out, fmt.Sprintf("%.0f%% of requests arrive around %02d:00 UTC. Batch non-urgent work outside the peak hour.", share*100, hour))
	}

	if monthly := st.avgDailyCost * 30; monthly > s.cfg.HighMonthlySpend {
		out = append(out, fmt.Sprintf("Spend runs at about %s per month (%s projected for this %s period). Consider response caching and prompt compression.",
			dollars(monthly), dollars(predicted), period))
	}

	if st.avgDailyRequests > s.cfg.HighDailyRequests {
		out = append(out, fmt.Sprintf("High request volume (%s requests/day). Batching and caching can cut per-call overhead.",
			humanize.Comma(int64(math.Round(st.avgDailyRequests)))))
	}

	if len(out) == 0 {
		return []string{defaultRecommendation}
	}
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}

func (s *Service) expensiveShare(st *usageStats) float64 {
	if st.totalCost <= 0 {
		return 0
	}
	var spent float64
	for model, cost := range st.modelCost {
		if slices.Contains(s.cfg.ExpensiveModels, model) {
			spent += cost
		}
	}
	return spent / st.totalCost
}

func dollars(v float64) string {
	return "$" + humanize.CommafWithDigits(math.Round(v*100)/100, 2)
}
