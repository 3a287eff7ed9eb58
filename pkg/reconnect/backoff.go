// Package reconnect provides exponential backoff for retrying a broken
// connection to Kafka, Redis or a database.
package reconnect

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Config configures a Backoff
type Config struct {
	MinBackoff        time.Duration // first delay (default 1s)
	MaxBackoff        time.Duration // delay cap (default 1m)
	BackoffMultiplier float64       // growth per consecutive failure (default 2)
	JitterPercent     float64       // +/- share of the delay randomized, up to 1 (default 0.1, negative disables)
}

// Backoff tracks consecutive failures and yields growing delays.
// It is safe for concurrent use.
type Backoff struct {
	cfg Config

	mu       sync.Mutex
	failures int
	rng      *rand.Rand
}

// NewBackoff creates a backoff with defaults applied
func NewBackoff(cfg Config) *Backoff {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2
	}
	switch {
	case cfg.JitterPercent < 0:
		cfg.JitterPercent = 0
	case cfg.JitterPercent == 0:
		cfg.JitterPercent = 0.1
	case cfg.JitterPercent > 1:
		cfg.JitterPercent = 1
	}

	return &Backoff{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next records a failure and returns how long to wait before retrying
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := float64(b.cfg.MinBackoff) * math.Pow(b.cfg.BackoffMultiplier, float64(b.failures))
	d = math.Min(d, float64(b.cfg.MaxBackoff))
	b.failures++

	if b.cfg.JitterPercent > 0 {
		d += d * b.cfg.JitterPercent * (2*b.rng.Float64() - 1)
	}
	return time.Duration(d)
}

// Wait records a failure and sleeps for the next delay.
// It returns ctx.Err() if the context ends first.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset clears the failure streak after a success
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Failures returns the current consecutive failure count
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
