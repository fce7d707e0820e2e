package engine

import (
	"sync"
	"time"
)

// RateLimitState holds the time of the last commanded watering for one zone.
// The zero value means "never watered".
type RateLimitState struct {
	mu            sync.Mutex
	lastWaterTime time.Time
}

// LastWaterTime returns the last watering time, or the zero time
func (s *RateLimitState) LastWaterTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWaterTime
}

// Remaining reports how much of the cooldown window is left at now.
func (s *RateLimitState) Remaining(now time.Time, cooldown time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remaining(s.lastWaterTime, now, cooldown)
}

// TryMark records a watering at now unless another watering landed inside the
// cooldown window since the caller last checked. A cooldown of zero always marks.
func (s *RateLimitState) TryMark(now time.Time, cooldown time.Duration) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if left := remaining(s.lastWaterTime, now, cooldown); left > 0 {
		return left, false
	}
	s.lastWaterTime = now
	return 0, true
}

// Reset forgets the last watering
func (s *RateLimitState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWaterTime = time.Time{}
}

func remaining(last, now time.Time, cooldown time.Duration) time.Duration {
	if cooldown <= 0 || last.IsZero() {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}
