package optimizer

import (
	"fmt"
	"math"

	"costguardian/internal/domain/catalog"
)

const (
	inputTokenShare  = 0.7
	outputTokenShare = 0.3

	latencyPerTokenMs = 0.5
)

var baseLatencyMs = map[catalog.Speed]float64{
	catalog.SpeedFast:   500,
	catalog.SpeedMedium: 1500,
	catalog.SpeedSlow:   3000,
}

var speedScores = map[catalog.Speed]float64{
	catalog.SpeedFast:   1,
	catalog.SpeedMedium: 0.7,
	catalog.SpeedSlow:   0.5,
}

// EstimateCost prices tokens with a fixed 70/30 input/output split
func EstimateCost(caps catalog.Capabilities, tokens int) float64 {
	t := float64(tokens)
	return (inputTokenShare*t*caps.CostPerMillionTokens.Input +
		outputTokenShare*t*caps.CostPerMillionTokens.Output) / 1_000_000
}

// LatencyEstimator predicts the latency of a call in milliseconds
type LatencyEstimator interface {
	EstimateLatency(modelID string, caps catalog.Capabilities, tokens int) float64
}

// StaticLatencyEstimator derives latency from the speed bucket plus a per-token term
type StaticLatencyEstimator struct{}

// EstimateLatency implements LatencyEstimator
func (StaticLatencyEstimator) EstimateLatency(_ string, caps catalog.Capabilities, tokens int) float64 {
	base, ok := baseLatencyMs[caps.ResponseSpeed]
	if !ok {
		base = baseLatencyMs[catalog.SpeedMedium]
	}
	return base + latencyPerTokenMs*float64(tokens)
}

// Telemetry corrections are bounded so a skewed sample set can move an
// estimate by at most this factor either way
const (
	minLatencyFactor = 0.5
	maxLatencyFactor = 2.0
)

// TelemetryLatencyEstimator scales another estimator by how measured calls
// of a model compared with that estimator at their own token counts. The
// correction applies once enough samples exist.
type TelemetryLatencyEstimator struct {
	cache      *PerformanceCache
	fallback   LatencyEstimator
	minSamples int
}

// NewTelemetryLatencyEstimator creates an estimator backed by the performance cache
func NewTelemetryLatencyEstimator(cache *PerformanceCache, fallback LatencyEstimator, minSamples int) *TelemetryLatencyEstimator {
	if fallback == nil {
		fallback = StaticLatencyEstimator{}
	}
	return &TelemetryLatencyEstimator{
		cache:      cache,
		fallback:   fallback,
		minSamples: minSamples,
	}
}

// EstimateLatency implements LatencyEstimator
func (e *TelemetryLatencyEstimator) EstimateLatency(modelID string, caps catalog.Capabilities, tokens int) float64 {
	estimate := e.fallback.EstimateLatency(modelID, caps, tokens)
	if factor, ok := e.factor(modelID, caps); ok {
		return estimate * factor
	}
	return estimate
}

// factor is the mean ratio of measured to estimated latency, clamped
func (e *TelemetryLatencyEstimator) factor(modelID string, caps catalog.Capabilities) (float64, bool) {
	samples := e.cache.LatencySamples(modelID)
	if len(samples) < e.minSamples || len(samples) == 0 {
		return 0, false
	}

	var sum float64
	for _, s := range samples {
		expected := e.fallback.EstimateLatency(modelID, caps, s.Tokens)
		if expected <= 0 {
			return 0, false
		}
		sum += s.LatencyMs / expected
	}
	f := sum / float64(len(samples))
	return math.Min(maxLatencyFactor, math.Max(minLatencyFactor, f)), true
}

// MeetsRequirements reports whether a model can serve the task at all
func MeetsRequirements(modelID string, caps catalog.Capabilities, req catalog.TaskRequirements, latency LatencyEstimator) bool {
	if req.RequiresVision && !caps.SupportsVision {
		return false
	}
	if req.RequiresFunctionCalling && !caps.SupportsFunctionCalling {
		return false
	}
	if req.RequiresStreaming && !caps.SupportsStreaming {
		return false
	}
	if caps.ContextWindowTokens < req.EstimatedTokens {
		return false
	}
	if req.MaxLatencyMs != nil && latency.EstimateLatency(modelID, caps, req.EstimatedTokens) > *req.MaxLatencyMs {
		return false
	}
	if req.MaxCostUSD != nil && EstimateCost(caps, req.EstimatedTokens) > *req.MaxCostUSD {
		return false
	}
	return true
}

// scoreInput carries everything the multiplicative score depends on
type scoreInput struct {
	quality         float64
	costUSD         float64
	speed           catalog.Speed
	preferenceRatio float64
	preferred       bool
	task            catalog.TaskType
}

// score starts at 100 and applies each factor, recording why
func score(in scoreInput) (float64, []string) {
	s := 100.0
	reasons := make([]string, 0, 5)

	s *= in.quality
	reasons = append(reasons, fmt.Sprintf("%s quality %.2f", in.task, in.quality))

	costScore := math.Max(0, 1-in.costUSD/10)
	s *= 0.7 + 0.3*costScore
	reasons = append(reasons, fmt.Sprintf("estimated cost $%.6f (cost score %.2f)", in.costUSD, costScore))

	speedScore, ok := speedScores[in.speed]
	if !ok {
		speedScore = speedScores[catalog.SpeedMedium]
	}
	s *= 0.8 + 0.2*speedScore
	reasons = append(reasons, fmt.Sprintf("%s response speed (speed score %.1f)", in.speed, speedScore))

	if in.preferenceRatio > 0 {
		s *= 1 + 0.2*in.preferenceRatio
		reasons = append(reasons, fmt.Sprintf("used in %.0f%% of recent calls", in.preferenceRatio*100))
	}

	if in.preferred {
		s *= 1.1
		reasons = append(reasons, fmt.Sprintf("preferred model for %s", in.task))
	}

	return s, reasons
}
