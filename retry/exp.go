package retry

import (
	"time"
)

// ExpConfig configures exponential backoff
type ExpConfig struct {
	Min   time.Duration
	Max   time.Duration
	Scale float64

	// If false, the first delay of the sequence is 0 and backoff starts
	// from the second attempt
	Instant bool
}

// DefaultExpBackoffConfig is a suggested configuration
var DefaultExpBackoffConfig = ExpConfig{
	Min:   10 * time.Millisecond,
	Max:   1 * time.Minute,
	Scale: 2.0,
}

// Delays implements interface Config
func (ec ExpConfig) Delays() DelayFn {
	b, zero := NewExpBackoff(ec), !ec.Instant
	return func() (time.Duration, bool) {
		if zero {
			zero = false
			return 0, true
		}
		return b.Backoff(), true
	}
}

// Exponential contains the current state of the backoff logic
type Exponential struct {
	config  ExpConfig
	current time.Duration
}

// NewExpBackoff creates a new Exponential
func NewExpBackoff(config ExpConfig) *Exponential {
	return &Exponential{
		config:  config,
		current: config.Min,
	}
}

// Backoff returns the duration to wait and advances the inner state
func (b *Exponential) Backoff() time.Duration {
	beforeScale := b.current
	b.current = time.Duration(float64(b.current) * b.config.Scale)
	if b.current > b.config.Max {
		b.current = b.config.Max
	}
	return beforeScale
}

// Reset resets the backoff state
func (b *Exponential) Reset() {
	b.current = b.config.Min
}
