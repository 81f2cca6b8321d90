package txn

import (
	"log"
	"strings"

	"github.com/sarchlab/txcore/attributes"
	"github.com/sarchlab/txcore/hooking"
	"github.com/sarchlab/txcore/metrics"
	"github.com/sarchlab/txcore/naming"
)

// commit runs the ordered commit pipeline on a finished transaction. Each
// step is failure-isolated: a panicking step is logged and the remaining
// steps still run. Nothing in here may propagate into the instrumented
// application.
func (a *Agent) commit(t *Transaction) {
	t.freezeName()
	if t.ignored {
		return
	}

	p := a.buildPayload(t)

	a.step("assign agent attributes", func() { a.assignAgentAttributes(t) })
	a.step("assign intrinsics", func() { a.assignIntrinsics(t, p) })
	a.step("finalize segments", func() {
		p.Segments = append([]SegmentSummary(nil), t.segmentLog...)
	})
	a.step("harvest samplers", func() { a.harvestSamplers(t, p) })
	a.step("record summary metrics", func() { a.recordSummaryMetrics(t) })
	a.step("record total time", func() { a.recordTotalTime(t) })
	a.step("record apdex", func() { a.recordApdex(t, p) })
	a.step("record queue time", func() { a.recordQueueTime(t) })
	a.step("record tracing metrics", func() { a.recordTracingMetrics(t) })
	a.step("attach errors", func() { a.attachErrors(t, p) })
	a.step("record event", func() {
		if a.events != nil {
			a.events.RecordTransactionEvent(p)
		}
	})
	a.step("merge stats", func() { a.stats.Merge(t.metrics, t.frozenName) })
	a.step("notify finished", func() {
		a.InvokeHook(hooking.HookCtx{
			Domain: a,
			Pos:    hooking.HookPosTxnFinished,
			Item:   p,
		})
	})
}

func (a *Agent) step(name string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("txcore: commit step %q failed: %v", name, r)
		}
	}()

	f()
}

// buildPayload assembles the outbound record. Each optional append omits
// its fields rather than failing the payload when its preconditions are
// not met.
func (a *Agent) buildPayload(t *Transaction) *Payload {
	p := &Payload{
		GUID:          t.guid,
		Name:          t.frozenName,
		IsWeb:         t.IsWeb(),
		StartTime:     t.startTime,
		Duration:      t.Duration(),
		Priority:      t.Priority(),
		Sampled:       t.Sampled(),
		Metrics:       t.metrics,
		Attributes:    t.attrs,
		QueueDuration: t.QueueDuration(),
		SlowQueries:   append([]SlowQuery(nil), t.slowQueries...),
	}

	a.step("append tracing fields", func() {
		if dt, ok := t.tracing.(DistributedTraceParticipant); ok {
			dt.AppendDistributedTraceFields(p)
		}

		if cat, ok := t.tracing.(CrossAppParticipant); ok {
			cat.AppendCrossAppFields(p)
		}
	})

	a.step("append apdex fields", func() {
		if t.ignoreApdex {
			return
		}

		p.ApdexT = a.cfg.ApdexTFor(t.frozenName)
		p.ApdexZone = metrics.ClassifyApdex(p.Duration, t.failed(), p.ApdexT)
	})

	a.step("append synthetics fields", func() {
		if t.synthetics == nil {
			return
		}

		p.SyntheticsResourceID = t.synthetics.ResourceID
		p.SyntheticsJobID = t.synthetics.JobID
		p.SyntheticsMonitorID = t.synthetics.MonitorID
	})

	return p
}

// assignAgentAttributes stores the response- and environment-derived
// attributes, each only when present.
func (a *Agent) assignAgentAttributes(t *Transaction) {
	if t.request != nil {
		t.attrs.AddAgentAttribute("request.uri", t.request.Path,
			attributes.DestinationTracer|attributes.DestinationErrorCollector|
				attributes.DestinationEvents)

		if len(t.request.Params) > 0 {
			t.attrs.MergeCustom(t.request.Params)
		}
	}

	if t.response != nil {
		if t.response.statusCode != 0 {
			t.attrs.AddAgentAttribute("httpResponseCode",
				t.response.statusCode, attributes.DestinationAll)
		}

		if t.response.contentLength > 0 {
			t.attrs.AddAgentAttribute("response.headers.contentLength",
				t.response.contentLength, attributes.DestinationAll)
		}

		if t.response.contentType != "" {
			t.attrs.AddAgentAttribute("response.headers.contentType",
				t.response.contentType, attributes.DestinationAll)
		}
	}

	if a.cfg.DisplayHost != "" {
		t.attrs.AddAgentAttribute("host.displayName", a.cfg.DisplayHost,
			attributes.DestinationTracer|attributes.DestinationEvents)
	}
}

// assignIntrinsics stores the computed intrinsic attributes, each omitted
// when not measurable.
func (a *Agent) assignIntrinsics(t *Transaction, p *Payload) {
	t.attrs.AddIntrinsic("priority", t.Priority())
	t.attrs.AddIntrinsic("sampled", t.Sampled())

	if gc := t.gcDelta(); gc > 0 {
		t.attrs.AddIntrinsic("gc_time", gc)
	}

	if burn, ok := t.cpuBurn(); ok {
		t.attrs.AddIntrinsic("cpu_time", burn)
	}

	if p.QueueDuration > 0 {
		t.attrs.AddIntrinsic("queueDuration", p.QueueDuration.Seconds())
	}

	if t.synthetics != nil {
		t.attrs.AddIntrinsic("synthetics_resource_id", t.synthetics.ResourceID)
		t.attrs.AddIntrinsic("synthetics_job_id", t.synthetics.JobID)
		t.attrs.AddIntrinsic("synthetics_monitor_id", t.synthetics.MonitorID)
	}

	if dt, ok := t.tracing.(DistributedTraceParticipant); ok {
		dt.AssignDistributedTraceIntrinsics(t.attrs)
	}

	if cat, ok := t.tracing.(CrossAppParticipant); ok {
		cat.AssignCrossAppIntrinsics(t.attrs)
	}
}

func (a *Agent) harvestSamplers(t *Transaction, p *Payload) {
	if a.traces != nil && !t.abortTrace {
		a.traces.OnFinish(p)
	}

	if a.queries != nil {
		a.queries.OnFinish(p)
	}
}

// recordSummaryMetrics records the rollup metrics: the fixed web-dispatcher
// rollup for web transactions, the derived per-family and global rollups
// for non-web ones, and the frozen name itself unless the outermost segment
// already recorded it.
func (a *Agent) recordSummaryMetrics(t *Transaction) {
	duration := t.Duration()
	exclusive := t.totalExclusive

	if t.IsWeb() {
		t.metrics.RecordUnscoped([]string{"HttpDispatcher"},
			duration, exclusive)
	} else {
		parts := strings.Split(t.frozenName, "/")
		if len(parts) >= 3 {
			t.metrics.RecordUnscoped([]string{
				parts[0] + "/" + parts[1] + "/all",
				naming.OtherTransactionPrefix + "all",
			}, duration, exclusive)
		}
	}

	outermost := ""
	if len(t.segmentLog) > 0 {
		outermost = t.segmentLog[len(t.segmentLog)-1].Name
	}

	if t.frozenName != outermost {
		t.metrics.RecordUnscoped([]string{t.frozenName}, duration, exclusive)
	}
}

func (a *Agent) recordTotalTime(t *Transaction) {
	rollup := "OtherTransactionTotalTime"
	if t.IsWeb() {
		rollup = "WebTransactionTotalTime"
	}

	t.metrics.RecordUnscoped(
		[]string{rollup, rollup + "/" + t.frozenName},
		t.totalExclusive, t.totalExclusive)
}

// recordApdex records the rollup bucket, the combined rollup, and the
// per-name bucket derived by substituting the category prefix. A frozen
// name without the expected prefix skips the per-name bucket.
func (a *Agent) recordApdex(t *Transaction, p *Payload) {
	if t.ignoreApdex || p.ApdexZone == metrics.ApdexNone {
		return
	}

	rollup := "ApdexOther"
	if t.IsWeb() {
		rollup = "Apdex"
	}

	t.metrics.RecordApdex(rollup, p.ApdexZone, p.ApdexT)
	t.metrics.RecordApdex("ApdexAll", p.ApdexZone, p.ApdexT)

	if name, ok := apdexMetricName(t.frozenName, t.IsWeb()); ok {
		t.metrics.RecordApdex(name, p.ApdexZone, p.ApdexT)
	}
}

func apdexMetricName(frozen string, isWeb bool) (string, bool) {
	if isWeb {
		if !strings.HasPrefix(frozen, naming.ControllerPrefix) {
			return "", false
		}

		return "Apdex/" + strings.TrimPrefix(frozen, naming.ControllerPrefix),
			true
	}

	if !strings.HasPrefix(frozen, naming.OtherTransactionPrefix) {
		return "", false
	}

	return "ApdexOther/Transaction/" +
		strings.TrimPrefix(frozen, naming.OtherTransactionPrefix), true
}

func (a *Agent) recordQueueTime(t *Transaction) {
	qd := t.QueueDuration()
	if qd <= 0 {
		return
	}

	t.metrics.RecordUnscoped([]string{"WebFrontend/QueueTime"}, qd, qd)
}

func (a *Agent) recordTracingMetrics(t *Transaction) {
	if dt, ok := t.tracing.(DistributedTraceParticipant); ok {
		dt.RecordDistributedTraceMetrics(t.metrics)
	}

	if cat, ok := t.tracing.(CrossAppParticipant); ok {
		cat.RecordCrossAppMetrics(t.metrics)
	}
}

// attachErrors forwards the transaction's noticed errors to the error
// collector, enriched with request metadata, and marks the payload when at
// least one was actually recorded.
func (a *Agent) attachErrors(t *Transaction, p *Payload) {
	if a.errs == nil || len(t.noticedErrors) == 0 {
		return
	}

	for _, ne := range t.noticedErrors {
		opts := make(map[string]interface{}, len(ne.Options)+4)
		for k, v := range ne.Options {
			opts[k] = v
		}

		if t.request != nil {
			opts["request.path"] = t.request.Path
			opts["request.port"] = t.request.Port
		}

		opts["transaction_name"] = t.frozenName
		opts["agent_attributes"] =
			t.attrs.ForDestination(attributes.DestinationErrorCollector)

		if a.errs.NoticeError(ne.Err, opts) {
			p.Error = true
		}
	}
}
