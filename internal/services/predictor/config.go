package predictor

// Config tunes the cost predictor heuristics
type Config struct {
	// DefaultLookbackDays is used when a caller passes a non-positive lookback
	DefaultLookbackDays int
	// MaxLookbackDays bounds how much history one prediction may scan
	MaxLookbackDays int

	// MinRecords below which the fallback estimate is returned
	MinRecords int

	// FallbackBaseMonthly is the monthly cost of the placeholder estimate
	FallbackBaseMonthly float64
	// FallbackJitter adds up to this much (monthly) on top of the base; 0 keeps it fixed
	FallbackJitter float64
	// FallbackSeed seeds the jitter source
	FallbackSeed int64

	ExpensiveModels         []string
	ExpensiveShareThreshold float64 // share of spend on expensive models that triggers advice
	PeakHourShareThreshold  float64 // share of requests in one hour that triggers batching advice
	HighMonthlySpend        float64 // monthly-equivalent spend in USD
	HighDailyRequests       float64
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		DefaultLookbackDays:     30,
		MaxLookbackDays:         365,
		MinRecords:              3,
		FallbackBaseMonthly:     25.50,
		FallbackJitter:          0,
		FallbackSeed:            1,
		ExpensiveModels:         []string{"gpt-4", "gpt-4-turbo", "claude-3-opus"},
		ExpensiveShareThreshold: 0.3,
		PeakHourShareThreshold:  0.2,
		HighMonthlySpend:        100,
		HighDailyRequests:       1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultLookbackDays <= 0 {
		c.DefaultLookbackDays = d.DefaultLookbackDays
	}
	if c.MaxLookbackDays <= 0 {
		c.MaxLookbackDays = d.MaxLookbackDays
	}
	c.DefaultLookbackDays = min(c.DefaultLookbackDays, c.MaxLookbackDays)
	if c.MinRecords <= 0 {
		c.MinRecords = d.MinRecords
	}
	if c.FallbackBaseMonthly <= 0 {
		c.FallbackBaseMonthly = d.FallbackBaseMonthly
	}
	if c.FallbackJitter < 0 {
		c.FallbackJitter = 0
	}
	if c.ExpensiveModels == nil {
		c.ExpensiveModels = d.ExpensiveModels
	}
	if c.ExpensiveShareThreshold <= 0 {
		c.ExpensiveShareThreshold = d.ExpensiveShareThreshold
	}
	if c.PeakHourShareThreshold <= 0 {
		c.PeakHourShareThreshold = d.PeakHourShareThreshold
	}
	if c.HighMonthlySpend <= 0 {
		c.HighMonthlySpend = d.HighMonthlySpend
	}
	if c.HighDailyRequests <= 0 {
		c.HighDailyRequests = d.HighDailyRequests
	}
	return c
}
