// Package txn implements the transaction-lifecycle core of the agent: it
// tracks the nesting of instrumented sub-operations within one execution
// context, resolves the final transaction name, derives the summary
// measurements (apdex, rollup metrics, queue time, CPU burn, sampling
// priority), and runs the commit pipeline that hands finished transactions
// to the downstream sinks.
package txn

import (
	"math/rand"
	"runtime"
	"time"

	"github.com/sarchlab/txcore/attributes"
	"github.com/sarchlab/txcore/metrics"
	"github.com/sarchlab/txcore/naming"
)

// RequestInfo is the snapshot of the inbound request a web transaction
// serves.
type RequestInfo struct {
	Path   string
	Port   int
	Params map[string]interface{}
}

// SyntheticsInfo identifies a transaction driven by a synthetic monitor.
type SyntheticsInfo struct {
	ResourceID string
	JobID      string
	MonitorID  string
}

// A NoticedError is one application error attached to a transaction,
// together with the metadata supplied at the call site.
type NoticedError struct {
	Err      error
	Options  map[string]interface{}
	Expected bool
}

// A SlowQuery is one slow database query noticed during a transaction.
type SlowQuery struct {
	Query    string
	Duration time.Duration
}

// A Transaction is one logical unit of work tracked end to end. It is
// mutated only by the execution context that owns it, so it carries no
// locking.
type Transaction struct {
	agent *Agent

	guid       string
	startTime  time.Time
	endTime    time.Time
	apdexStart time.Time
	queueStart time.Time

	category    naming.Category
	categorySet bool

	defaultName    string
	overriddenName string
	frozenName     string
	frozen         bool
	ignored        bool

	frameStack      []*Segment
	nestingMaxDepth int
	segmentLog      []SegmentSummary
	totalExclusive  time.Duration

	priority         float64
	priorityComputed bool
	sampled          bool
	sampledComputed  bool

	cpuStart   time.Duration
	cpuStartOK bool
	gcStart    time.Duration

	metrics *metrics.Collector
	attrs   *attributes.Collector

	request    *RequestInfo
	response   *responseInfo
	synthetics *SyntheticsInfo
	tracing    interface{}

	errorSeen     map[error]bool
	noticedErrors []*NoticedError
	slowQueries   []SlowQuery

	ignoreApdex   bool
	ignoreEnduser bool
	abortTrace    bool
}

type responseInfo struct {
	statusCode    int
	contentLength int64
	contentType   string
}

// GUID returns the transaction's identity.
func (t *Transaction) GUID() string {
	return t.guid
}

// StartTime returns when the transaction started.
func (t *Transaction) StartTime() time.Time {
	return t.startTime
}

// Duration returns the transaction's elapsed time, or zero before it stops.
func (t *Transaction) Duration() time.Duration {
	if t.endTime.IsZero() {
		return 0
	}

	return t.endTime.Sub(t.startTime)
}

// Category returns the transaction's current category.
func (t *Transaction) Category() naming.Category {
	return t.category
}

// IsWeb reports whether the transaction counts as web traffic.
func (t *Transaction) IsWeb() bool {
	return t.category.IsWeb()
}

// NestingMaxDepth returns the maximum concurrent nesting depth ever
// reached.
func (t *Transaction) NestingMaxDepth() int {
	return t.nestingMaxDepth
}

// Attributes returns the transaction's attribute collector.
func (t *Transaction) Attributes() *attributes.Collector {
	return t.attrs
}

// Metrics returns the transaction's metric collector.
func (t *Transaction) Metrics() *metrics.Collector {
	return t.metrics
}

// Ignore suppresses all derived reporting for this transaction. Idempotent.
func (t *Transaction) Ignore() {
	t.ignored = true
}

// Ignored reports whether the transaction is suppressed.
func (t *Transaction) Ignored() bool {
	return t.ignored
}

// IgnoreApdex suppresses apdex recording for this transaction.
func (t *Transaction) IgnoreApdex() {
	t.ignoreApdex = true
}

// IgnoreEnduser suppresses end-user instrumentation for this transaction.
func (t *Transaction) IgnoreEnduser() {
	t.ignoreEnduser = true
}

// AbortTrace suppresses trace retention while keeping metric reporting.
func (t *Transaction) AbortTrace() {
	t.abortTrace = true
}

// SetResponse attaches response-derived data for the commit pipeline.
func (t *Transaction) SetResponse(
	statusCode int,
	contentLength int64,
	contentType string,
) {
	t.response = &responseInfo{
		statusCode:    statusCode,
		contentLength: contentLength,
		contentType:   contentType,
	}
}

// SetSynthetics marks the transaction as driven by a synthetic monitor.
func (t *Transaction) SetSynthetics(info *SyntheticsInfo) {
	t.synthetics = info
}

// SetTracingState attaches the distributed-trace or cross-app capability
// state consulted by the commit pipeline.
func (t *Transaction) SetTracingState(state interface{}) {
	t.tracing = state
}

// NoticeError attaches an application error to the transaction. Errors are
// deduplicated by identity; re-noticing an error merges its options.
func (t *Transaction) NoticeError(err error, opts map[string]interface{}) {
	if err == nil {
		return
	}

	if t.errorSeen[err] {
		for _, ne := range t.noticedErrors {
			if ne.Err == err {
				mergeOptions(ne, opts)
				return
			}
		}
	}

	ne := &NoticedError{Err: err, Options: map[string]interface{}{}}
	mergeOptions(ne, opts)

	t.errorSeen[err] = true
	t.noticedErrors = append(t.noticedErrors, ne)
}

func mergeOptions(ne *NoticedError, opts map[string]interface{}) {
	for k, v := range opts {
		ne.Options[k] = v
	}

	if expected, ok := opts["expected"].(bool); ok {
		ne.Expected = expected
	}
}

// NoticeSlowQuery attaches a slow database query to the transaction.
func (t *Transaction) NoticeSlowQuery(query string, d time.Duration) {
	t.slowQueries = append(t.slowQueries, SlowQuery{Query: query, Duration: d})
}

// failed reports whether any recorded, non-ignored, non-expected error is
// attached.
func (t *Transaction) failed() bool {
	for _, ne := range t.noticedErrors {
		if ne.Expected {
			continue
		}

		if t.agent.errs != nil && t.agent.errs.ErrorIsIgnored(ne.Err) {
			continue
		}

		return true
	}

	return false
}

// Priority returns the transaction's sampling priority. The value is
// computed on first call and stable afterwards. Sampled transactions always
// compare greater than unsampled ones.
func (t *Transaction) Priority() float64 {
	if !t.priorityComputed {
		t.priority = float64(int(rand.Float64()*1e6)) / 1e6
		if t.Sampled() {
			t.priority += 1
		}

		t.priorityComputed = true
	}

	return t.priority
}

// Sampled reports the distributed-trace sampling decision, consulting the
// adaptive sampler at most once. With distributed tracing disabled the
// transaction is never sampled.
func (t *Transaction) Sampled() bool {
	if !t.sampledComputed {
		t.sampledComputed = true

		if t.agent.cfg.DistributedTracingEnabled && t.agent.adaptive != nil {
			t.sampled = t.agent.adaptive.Sampled()
		}
	}

	return t.sampled
}

// QueueDuration returns the delay between the upstream queue-entry
// timestamp and the transaction start, never negative.
func (t *Transaction) QueueDuration() time.Duration {
	if t.queueStart.IsZero() {
		return 0
	}

	d := t.startTime.Sub(t.queueStart)
	if d < 0 {
		return 0
	}

	return d
}

// cpuBurn returns the CPU consumed during the transaction's lifetime. The
// second return value is false when no baseline could be captured.
func (t *Transaction) cpuBurn() (time.Duration, bool) {
	if !t.cpuStartOK || t.agent.cpu == nil {
		return 0, false
	}

	end, err := t.agent.cpu.Reading()
	if err != nil {
		return 0, false
	}

	burn := end - t.cpuStart
	if burn < 0 {
		return 0, false
	}

	return burn, true
}

// gcDelta returns the GC pause time accumulated during the transaction.
func (t *Transaction) gcDelta() time.Duration {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	delta := time.Duration(ms.PauseTotalNs) - t.gcStart
	if delta < 0 {
		return 0
	}

	return delta
}
