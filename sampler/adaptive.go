// Package sampler implements the retention samplers consulted by the
// transaction core: the adaptive distributed-trace sampler, the
// performance-trace sampler, and the slow-query sampler. All samplers are
// shared across execution contexts and synchronize themselves.
package sampler

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Adaptive targets a fixed number of sampled transactions per period. Early
// decisions in the first period are accepted outright; once traffic is
// known, acceptance follows the target-to-seen ratio with an exponential
// back-off after the target is reached within a period.
type Adaptive struct {
	mu sync.Mutex

	target int
	period time.Duration
	now    func() time.Time

	periodStart time.Time
	seen        int
	seenLast    int
	sampledSeen int
}

// NewAdaptive creates an Adaptive sampler aiming for target sampled
// transactions per period.
func NewAdaptive(target int, period time.Duration) *Adaptive {
	return &Adaptive{
		target: target,
		period: period,
		now:    time.Now,
	}
}

// WithClock replaces the wall clock, mainly for deterministic tests.
func (a *Adaptive) WithClock(now func() time.Time) *Adaptive {
	a.now = now
	return a
}

// Sampled makes one sampling decision.
func (a *Adaptive) Sampled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollPeriod()
	a.seen++

	sampled := a.decide()
	if sampled {
		a.sampledSeen++
	}

	return sampled
}

func (a *Adaptive) decide() bool {
	if a.sampledSeen < a.target {
		if a.seenLast <= a.target {
			return true
		}

		return rand.Float64()*float64(a.seenLast) < float64(a.target)
	}

	// Past the target, back off exponentially so a burst cannot flood the
	// backend.
	threshold := math.Pow(float64(a.target),
		float64(a.target)/float64(a.sampledSeen)) -
		math.Sqrt(float64(a.target))
	if threshold <= 0 {
		return false
	}

	return rand.Float64()*float64(a.seen) < threshold
}

func (a *Adaptive) rollPeriod() {
	now := a.now()

	if a.periodStart.IsZero() {
		a.periodStart = now
		return
	}

	if now.Sub(a.periodStart) < a.period {
		return
	}

	a.periodStart = now
	a.seenLast = a.seen
	a.seen = 0
	a.sampledSeen = 0
}
