package security

import (
	"math/rand/v2"
	"sync"

	audit "anonid/pkg/platform/audit"
)

// Sampler thins out high-volume informational events. Warning and critical
// events are never sampled away.
type Sampler struct {
	mu          sync.RWMutex
	defaultRate float64
	rateByType  map[audit.EventType]float64
}

// NewSampler creates a sampler with the given default rate in [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate: clampRate(defaultRate),
		rateByType:  make(map[audit.EventType]float64),
	}
}

// Keep reports whether the event should be dispatched.
func (s *Sampler) Keep(e audit.SecurityEvent) bool {
	if e.Severity != audit.SeverityInfo {
		return true
	}
	rate := s.rateFor(e.Type)
	if rate >= 1 {
		return true
	}
	return rand.Float64() < rate //nolint:gosec // sampling doesn't need crypto rand
}

// SetRate overrides the rate for one event type.
func (s *Sampler) SetRate(t audit.EventType, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByType[t] = clampRate(rate)
}

func (s *Sampler) rateFor(t audit.EventType) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, ok := s.rateByType[t]; ok {
		return rate
	}
	return s.defaultRate
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
