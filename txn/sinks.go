package txn

import "time"

//go:generate mockgen -destination "mock_sinks_test.go" -package $GOPACKAGE -write_package_comment=false -source sinks.go

// AdaptiveSampler decides whether a transaction joins the distributed-trace
// sample. Shared across execution contexts; implementations synchronize
// themselves.
type AdaptiveSampler interface {
	Sampled() bool
}

// TraceSampler retains performance traces of interesting transactions.
type TraceSampler interface {
	// OnStart observes a transaction starting.
	OnStart(start time.Time, path string)

	// OnFinish offers a finished transaction for retention and reports
	// whether it was kept.
	OnFinish(p *Payload) bool
}

// QuerySampler retains slow queries noticed during transactions.
type QuerySampler interface {
	OnFinish(p *Payload)
}

// ErrorSink records application errors, applying its own ignore and
// expected filtering.
type ErrorSink interface {
	// NoticeError records an error and reports whether it was kept.
	NoticeError(err error, opts map[string]interface{}) bool

	// ErrorIsIgnored reports whether an error is configured to be ignored.
	ErrorIsIgnored(err error) bool
}

// EventRecorder receives one event per finished transaction.
type EventRecorder interface {
	RecordTransactionEvent(p *Payload)
}
