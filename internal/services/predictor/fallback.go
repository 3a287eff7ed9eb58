package predictor

import (
	"math/rand"
	"sync"
	"time"

	"costguardian/internal/domain/prediction"
)

const (
	fallbackConfidence       = 0.65
	fallbackPercentageChange = 12.5
)

var (
	fallbackProviderShares = map[string]float64{
		"openai": 0.5,
		"claude": 0.3,
		"gemini": 0.2,
	}
	fallbackModelShares = map[string]float64{
		"gpt-4o":            0.25,
		"gpt-4o-mini":       0.25,
		"claude-3-5-sonnet": 0.2,
		"claude-3-haiku":    0.1,
		"gemini-1.5-flash":  0.2,
	}
	fallbackRecommendations = []string{
		"Estimate based on typical usage: not enough history yet for a personalized forecast.",
		"Track a few more days of requests to unlock trend analysis.",
		"Start with cost-efficient models such as gpt-4o-mini or claude-3-haiku for routine tasks.",
	}
)

// fallbackEstimator produces the placeholder forecast shown when history is too thin
type fallbackEstimator struct {
	base   float64
	jitter float64

	mu  sync.Mutex
	rng *rand.Rand
}

func newFallbackEstimator(base, jitter float64, seed int64) *fallbackEstimator {
	return &fallbackEstimator{
		base:   base,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (f *fallbackEstimator) monthly() float64 {
	if f.jitter == 0 {
		return f.base
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.base + f.jitter*f.rng.Float64()
}

func (f *fallbackEstimator) result(period prediction.Period, now time.Time) *prediction.Result {
	predicted := f.monthly() * float64(period.Days()) / 30

	b := prediction.Breakdown{
		ByProvider: make(map[string]float64, len(fallbackProviderShares)),
		ByModel:    make(map[string]float64, len(fallbackModelShares)),
	}
	for p, share := range fallbackProviderShares {
		b.ByProvider[p] = share * predicted
	}
	for m, share := range fallbackModelShares {
		b.ByModel[m] = share * predicted
	}

	return &prediction.Result{
		Period:           period,
		PredictedCost:    predicted,
		Confidence:       fallbackConfidence,
		Trend:            prediction.TrendIncreasing,
		PercentageChange: fallbackPercentageChange,
		Recommendations:  append([]string(nil), fallbackRecommendations...),
		Breakdown:        b,
		IsDefault:        true,
		GeneratedAt:      now,
	}
}
