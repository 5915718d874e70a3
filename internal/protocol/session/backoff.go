package session

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns the wait before reconnect attempt n (1-based): InitialDelay
// grown by Multiplier per attempt, capped at MaxDelay. With Jitter set and a
// non-nil rng the delay is scaled by a factor in [0.5, 1.5), still capped.
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	growth := b.Multiplier
	if growth < 1 {
		growth = 1
	}
	delay := float64(b.InitialDelay) * math.Pow(growth, float64(attempt-1))
	if b.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	return time.Duration(delay)
}

// ReconnectDelay is the configured backoff for attempt, jittered from the
// session's own source when the config asks for it.
func (s *Session) ReconnectDelay(attempt int) time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.cfg.Backoff.Delay(attempt, s.rng)
}
