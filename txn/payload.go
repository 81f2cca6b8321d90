package txn

import (
	"time"

	"github.com/sarchlab/txcore/attributes"
	"github.com/sarchlab/txcore/metrics"
)

// A SegmentSummary is the finished form of one segment, kept for trace
// retention.
type SegmentSummary struct {
	Name      string
	StartTime time.Time
	Duration  time.Duration
	Exclusive time.Duration
	Scoped    bool
}

// A Payload is the outbound record of one finished transaction, handed to
// the samplers, the event recorder, and the transaction-finished listeners.
// Sinks never mutate it after commit.
type Payload struct {
	GUID      string
	Name      string
	IsWeb     bool
	StartTime time.Time
	Duration  time.Duration
	Priority  float64
	Sampled   bool

	Metrics    *metrics.Collector
	Attributes *attributes.Collector
	Segments   []SegmentSummary

	// Error reports whether the error collector actually recorded at least
	// one of the transaction's errors.
	Error bool

	// Apdex fields are absent (zero) when apdex was not classified.
	ApdexZone metrics.ApdexZone
	ApdexT    time.Duration

	QueueDuration time.Duration
	SlowQueries   []SlowQuery

	// Synthetics fields are empty unless the transaction carried a
	// recognized synthetics marker.
	SyntheticsResourceID string
	SyntheticsJobID      string
	SyntheticsMonitorID  string

	// Tracing fields are filled by whichever tracing capability is active.
	TracingIntrinsics map[string]interface{}
}
