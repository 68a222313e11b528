package session

import (
	"math"
	"time"

	"github.com/vidsift/vidsift/internal/transport"
)

// RetryPolicy controls reconnect pacing after a session drop.
type RetryPolicy struct {
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// Delay returns the wait before the given retry attempt, counted from zero.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(base) * math.Pow(mult, float64(attempt)))
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return d
}

// Exhausted reports whether attempt retries have used up the budget.
// A zero MaxAttempts means retry forever.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// Policies holds the retry policies per disconnect cause. Service
// unavailability gets its own, slower policy so the upstream is not hammered
// while it recovers.
type Policies struct {
	Standard    RetryPolicy
	Unavailable RetryPolicy
}

func (p Policies) forCause(cause transport.Cause) RetryPolicy {
	if cause == transport.CauseServiceUnavailable {
		return p.Unavailable
	}
	return p.Standard
}
