package recording

import (
	"time"

	"github.com/sarchlab/txcore/hooking"
	"github.com/sarchlab/txcore/metrics"
	"github.com/sarchlab/txcore/txn"
)

// TransactionRow is the persisted form of one finished transaction.
type TransactionRow struct {
	GUID        string
	Name        string
	IsWeb       bool
	StartTime   float64
	DurationMs  float64
	Priority    float64
	Sampled     bool
	Failed      bool
	ApdexZone   string
	QueueTimeMs float64
}

// SegmentRow is the persisted form of one segment of a transaction.
type SegmentRow struct {
	TransactionID string
	Name          string
	StartTime     float64
	DurationMs    float64
	ExclusiveMs   float64
	Scoped        bool
}

// MetricRow is the persisted form of one per-transaction metric.
type MetricRow struct {
	TransactionID string
	Name          string
	Scoped        bool
	CallCount     int64
	Total         float64
	Exclusive     float64
	Min           float64
	Max           float64
	SumSquares    float64
}

// A TraceRecorder is a hook that persists finished transactions, their
// segments, and their metrics through a DataRecorder. Attach it to an agent
// with AcceptHook.
type TraceRecorder struct {
	recorder DataRecorder
}

// NewTraceRecorder creates a TraceRecorder and creates the tables it writes
// to on the given recorder.
func NewTraceRecorder(recorder DataRecorder) *TraceRecorder {
	r := &TraceRecorder{recorder: recorder}

	recorder.CreateTable("transactions", TransactionRow{})
	recorder.CreateTable("segments", SegmentRow{})
	recorder.CreateTable("txn_metrics", MetricRow{})

	return r
}

// Func records the finished transaction carried by the hook context.
func (r *TraceRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != hooking.HookPosTxnFinished {
		return
	}

	p, ok := ctx.Item.(*txn.Payload)
	if !ok {
		return
	}

	r.recordTransaction(p)
	r.recordSegments(p)
	r.recordMetrics(p)
}

// Flush forces the buffered rows out to the database.
func (r *TraceRecorder) Flush() {
	r.recorder.Flush()
}

func (r *TraceRecorder) recordTransaction(p *txn.Payload) {
	row := TransactionRow{
		GUID:        p.GUID,
		Name:        p.Name,
		IsWeb:       p.IsWeb,
		StartTime:   timeInSec(p.StartTime),
		DurationMs:  ms(p.Duration),
		Priority:    p.Priority,
		Sampled:     p.Sampled,
		Failed:      p.Error,
		ApdexZone:   p.ApdexZone.String(),
		QueueTimeMs: ms(p.QueueDuration),
	}

	r.recorder.InsertData("transactions", row)
}

func (r *TraceRecorder) recordSegments(p *txn.Payload) {
	for _, seg := range p.Segments {
		row := SegmentRow{
			TransactionID: p.GUID,
			Name:          seg.Name,
			StartTime:     timeInSec(seg.StartTime),
			DurationMs:    ms(seg.Duration),
			ExclusiveMs:   ms(seg.Exclusive),
			Scoped:        seg.Scoped,
		}

		r.recorder.InsertData("segments", row)
	}
}

func (r *TraceRecorder) recordMetrics(p *txn.Payload) {
	if p.Metrics == nil {
		return
	}

	for _, name := range p.Metrics.UnscopedNames() {
		r.insertMetric(p.GUID, name, false, p.Metrics.Unscoped(name))
	}

	for _, name := range p.Metrics.ScopedNames() {
		r.insertMetric(p.GUID, name, true, p.Metrics.Scoped(name))
	}
}

func (r *TraceRecorder) insertMetric(
	guid, name string,
	scoped bool,
	s *metrics.Stat,
) {
	row := MetricRow{
		TransactionID: guid,
		Name:          name,
		Scoped:        scoped,
		CallCount:     s.CallCount,
		Total:         s.Total.Seconds(),
		Exclusive:     s.Exclusive.Seconds(),
		Min:           s.Min.Seconds(),
		Max:           s.Max.Seconds(),
		SumSquares:    s.SumSquares,
	}

	r.recorder.InsertData("txn_metrics", row)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func timeInSec(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
