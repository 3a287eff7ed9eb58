package optimizer

import "time"

// Config tunes the model optimizer
type Config struct {
	// DiversityEnabled reorders the top three when they share a provider
	DiversityEnabled bool

	HistoryCapacity int // distinct (user, model) keys kept in memory
	HistorySize     int // records kept per key

	PreferenceWindow         int // recent records used for the familiarity bonus
	RecommendationWindowDays int
	RecommendationLimit      int
	RecommendationTTL        time.Duration

	// TelemetryLatency corrects the static latency estimate with measured
	// calls reported through ingestion
	TelemetryLatency bool
	// TelemetryMinSamples before measured latency corrects the estimate
	TelemetryMinSamples int
}

// DefaultConfig returns the stock optimizer settings
func DefaultConfig() Config {
	return Config{
		DiversityEnabled:         true,
		HistoryCapacity:          10000,
		HistorySize:              100,
		PreferenceWindow:         50,
		RecommendationWindowDays: 30,
		RecommendationLimit:      100,
		RecommendationTTL:        10 * time.Minute,
		TelemetryMinSamples:      20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = d.HistoryCapacity
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.PreferenceWindow <= 0 {
		c.PreferenceWindow = d.PreferenceWindow
	}
	if c.RecommendationWindowDays <= 0 {
		c.RecommendationWindowDays = d.RecommendationWindowDays
	}
	if c.RecommendationLimit <= 0 {
		c.RecommendationLimit = d.RecommendationLimit
	}
	if c.RecommendationTTL <= 0 {
		c.RecommendationTTL = d.RecommendationTTL
	}
	if c.TelemetryMinSamples <= 0 {
		c.TelemetryMinSamples = d.TelemetryMinSamples
	}
	return c
}
