package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Defaults(t *testing.T) {
	b := NewBackoff(Config{})

	assert.Equal(t, time.Second, b.cfg.MinBackoff)
	assert.Equal(t, time.Minute, b.cfg.MaxBackoff)
	assert.Equal(t, 2.0, b.cfg.BackoffMultiplier)
	assert.Equal(t, 0.1, b.cfg.JitterPercent)
}

func TestBackoff_ZeroJitterGetsDefaultSpread(t *testing.T) {
	b := NewBackoff(Config{MinBackoff: time.Second, MaxBackoff: time.Second})

	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "delays should not all be identical")
}

func TestBackoff_NegativeJitterDisables(t *testing.T) {
	b := NewBackoff(Config{MinBackoff: time.Second, MaxBackoff: time.Second, JitterPercent: -1})

	for i := 0; i < 5; i++ {
		assert.Equal(t, time.Second, b.Next())
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(Config{
		MinBackoff:        100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2,
		JitterPercent:     -1,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "attempt %d", i+1)
	}
	assert.Equal(t, len(want), b.Failures())

	b.Reset()
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, 100*time.Millisecond, b.Next())
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	b := NewBackoff(Config{MinBackoff: time.Second, MaxBackoff: time.Second, JitterPercent: 0.2})

	for i := 0; i < 50; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestBackoff_WaitHonoursContext(t *testing.T) {
	b := NewBackoff(Config{MinBackoff: time.Hour, MaxBackoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
}
