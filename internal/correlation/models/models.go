// Package models holds the correlation record and the decay arithmetic shared
// by every store.
package models

import (
	"math"
	"time"

	id "anonid/pkg/domain"
)

// Key identifies one tracked (tenant, segment) pair.
type Key struct {
	TenantID id.TenantID
	Segment  id.SegmentKey
}

// Record is the decayed query density of one (tenant, segment) pair as of
// LastUpdated.
type Record struct {
	TenantID    id.TenantID   `json:"tenant_id"`
	Segment     id.SegmentKey `json:"segment"`
	Density     float64       `json:"density"`
	LastUpdated time.Time     `json:"last_updated"`
}

// DensityAt returns the record's density decayed to now.
func (r Record) DensityAt(now time.Time, halfLife time.Duration) float64 {
	return Decay(r.Density, now.Sub(r.LastUpdated), halfLife)
}

// Decay halves density once per elapsed half-life. Negative elapsed time
// (clock skew between replicas) leaves density unchanged.
func Decay(density float64, elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 || halfLife <= 0 {
		return density
	}
	return density * math.Exp2(-float64(elapsed)/float64(halfLife))
}

// Risk maps a density to a 0..100 score that rises monotonically and
// approaches 100 as density grows past saturation.
func Risk(density, saturation float64) int {
	if density <= 0 || saturation <= 0 {
		return 0
	}
	score := int(math.Floor(100 * (1 - math.Exp(-density/saturation))))
	return min(max(score, 0), 100)
}

// IdleAfter is how long a record may go untouched before it is dropped. After
// ten half-lives a density has fallen below a thousandth of its peak.
func IdleAfter(halfLife time.Duration) time.Duration {
	return 10 * halfLife
}
