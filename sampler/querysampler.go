package sampler

import (
	"sort"
	"sync"
	"time"

	"github.com/sarchlab/txcore/txn"
)

// A RetainedQuery is one slow query kept by the QuerySampler, attributed to
// the transaction that noticed it.
type RetainedQuery struct {
	Query           string
	Duration        time.Duration
	TransactionName string
}

// QuerySampler retains the slowest queries noticed during finished
// transactions, up to a fixed capacity per harvest cycle.
type QuerySampler struct {
	mu sync.Mutex

	threshold time.Duration
	capacity  int
	retained  []RetainedQuery
}

// NewQuerySampler creates a QuerySampler keeping at most capacity queries
// slower than threshold.
func NewQuerySampler(threshold time.Duration, capacity int) *QuerySampler {
	return &QuerySampler{threshold: threshold, capacity: capacity}
}

// OnFinish pulls the slow queries out of a finished transaction.
func (s *QuerySampler) OnFinish(p *txn.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range p.SlowQueries {
		if q.Duration < s.threshold {
			continue
		}

		s.retained = append(s.retained, RetainedQuery{
			Query:           q.Query,
			Duration:        q.Duration,
			TransactionName: p.Name,
		})
	}

	if len(s.retained) <= s.capacity {
		return
	}

	sort.Slice(s.retained, func(i, j int) bool {
		return s.retained[i].Duration > s.retained[j].Duration
	})
	s.retained = s.retained[:s.capacity]
}

// Harvest returns the retained queries and resets the sampler.
func (s *QuerySampler) Harvest() []RetainedQuery {
	s.mu.Lock()
	defer s.mu.Unlock()

	queries := s.retained
	s.retained = nil

	return queries
}
