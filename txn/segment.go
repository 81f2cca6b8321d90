package txn

import "time"

// A Segment is one nested, named, timed sub-operation within a transaction.
// Its name stays mutable until the owning transaction's name is frozen.
type Segment struct {
	name          string
	scoped        bool
	startTime     time.Time
	childDuration time.Duration
}

// Name returns the segment's metric name.
func (s *Segment) Name() string {
	return s.name
}

// Scoped reports whether the segment contributes a scoped metric.
func (s *Segment) Scoped() bool {
	return s.scoped
}

// StartTime returns when the segment started.
func (s *Segment) StartTime() time.Time {
	return s.startTime
}

// end records the segment's elapsed and exclusive time into the
// transaction's metric collector and returns both durations. Exclusive time
// excludes the time already attributed to finished child segments.
func (s *Segment) end(t *Transaction, now time.Time) (total, exclusive time.Duration) {
	total = now.Sub(s.startTime)
	if total < 0 {
		total = 0
	}

	exclusive = total - s.childDuration
	if exclusive < 0 {
		exclusive = 0
	}

	if s.scoped {
		t.metrics.RecordScopedAndUnscoped([]string{s.name}, total, exclusive)
	} else {
		t.metrics.RecordUnscoped([]string{s.name}, total, exclusive)
	}

	return total, exclusive
}
