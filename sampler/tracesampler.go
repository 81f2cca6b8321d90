package sampler

import (
	"sync"
	"time"

	"github.com/sarchlab/txcore/txn"
)

// TraceSampler retains the slowest finished transaction whose duration
// exceeds the retention threshold. One trace survives per harvest cycle;
// harvesting resets the sampler.
type TraceSampler struct {
	mu sync.Mutex

	threshold time.Duration
	retained  *txn.Payload
}

// NewTraceSampler creates a TraceSampler with the given retention
// threshold.
func NewTraceSampler(threshold time.Duration) *TraceSampler {
	return &TraceSampler{threshold: threshold}
}

// OnStart observes a transaction starting. The trace sampler has no
// per-start state to keep.
func (s *TraceSampler) OnStart(start time.Time, path string) {}

// OnFinish offers a finished transaction and reports whether it displaced
// the retained trace.
func (s *TraceSampler) OnFinish(p *txn.Payload) bool {
	if p.Duration < s.threshold {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retained != nil && s.retained.Duration >= p.Duration {
		return false
	}

	s.retained = p

	return true
}

// Harvest returns the retained trace, if any, and resets the sampler.
func (s *TraceSampler) Harvest() *txn.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.retained
	s.retained = nil

	return p
}
