// Package metrics implements the metric bookkeeping used by the transaction
// core: a per-transaction collector that accumulates timing data while a
// transaction runs, apdex classification, and a process-wide stats engine
// that finished transactions merge into.
package metrics

import (
	"time"
)

// A Stat accumulates the timing of one named operation.
//
// When a Stat holds apdex data the fields are reinterpreted: CallCount
// counts satisfying requests, Total counts tolerating requests in its
// integer nanosecond field, Exclusive counts failing requests, and Min/Max
// carry the apdex threshold in effect.
type Stat struct {
	CallCount  int64
	Total      time.Duration
	Exclusive  time.Duration
	Min        time.Duration
	Max        time.Duration
	SumSquares float64
}

// Record adds one data point.
func (s *Stat) Record(total, exclusive time.Duration) {
	if s.CallCount == 0 || total < s.Min {
		s.Min = total
	}

	if total > s.Max {
		s.Max = total
	}

	s.CallCount++
	s.Total += total
	s.Exclusive += exclusive
	s.SumSquares += total.Seconds() * total.Seconds()
}

// Merge folds another Stat into this one.
func (s *Stat) Merge(o *Stat) {
	if o.CallCount == 0 {
		return
	}

	if s.CallCount == 0 || o.Min < s.Min {
		s.Min = o.Min
	}

	if o.Max > s.Max {
		s.Max = o.Max
	}

	s.CallCount += o.CallCount
	s.Total += o.Total
	s.Exclusive += o.Exclusive
	s.SumSquares += o.SumSquares
}

func (s *Stat) recordApdex(zone ApdexZone, threshold time.Duration) {
	switch zone {
	case ApdexSatisfying:
		s.CallCount++
	case ApdexTolerating:
		s.Total += 1
	case ApdexFailing:
		s.Exclusive += 1
	}

	s.Min = threshold
	s.Max = threshold
}
