package stream

import (
	"math/rand"
	"time"
)

// Policy describes the reconnection schedule for a consumer. The zero value
// is not useful; start from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the retry budget. Once spent, failures are terminal
	// until the caller resets.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier grows the delay per attempt.
	Multiplier float64

	// Jitter randomizes the delay by ±Jitter (0..1). Zero keeps the
	// schedule fully deterministic, which is the default.
	Jitter float64
}

// DefaultPolicy returns the standard schedule: four attempts at 1s, 2s, 4s
// and 8s, no jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay returns the wait before retry number attempt (0-based). The schedule
// is monotonically non-decreasing and, with zero Jitter, deterministic.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxDelay {
			d = float64(p.MaxDelay)
			break
		}
	}
	if time.Duration(d) > p.MaxDelay {
		d = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
		if d < 0 {
			d = 0
		}
	}

	return time.Duration(d)
}
