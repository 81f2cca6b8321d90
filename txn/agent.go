package txn

import (
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/sarchlab/txcore/attributes"
	"github.com/sarchlab/txcore/config"
	"github.com/sarchlab/txcore/cputime"
	"github.com/sarchlab/txcore/hooking"
	"github.com/sarchlab/txcore/metrics"
	"github.com/sarchlab/txcore/naming"
)

// An Agent owns the transaction lifecycle: it creates transactions on the
// first start in an execution context, nests re-entrant starts, and runs
// the commit pipeline on the outermost stop. It is the hookable domain that
// transaction lifecycle listeners attach to.
//
// Every fault inside Start/Stop is absorbed at the boundary; the
// instrumented application never observes a raised error from the agent.
type Agent struct {
	hooking.HookableBase

	cfg   *config.Config
	stats *metrics.StatsEngine

	adaptive AdaptiveSampler
	traces   TraceSampler
	queries  QuerySampler
	errs     ErrorSink
	events   EventRecorder
	cpu      cputime.Source
	ids      IDGenerator
	now      func() time.Time
}

// NewAgent creates an Agent with the given configuration and an empty
// stats engine. Collaborators are attached with the With methods; a nil
// collaborator is skipped wherever it would be consulted.
func NewAgent(cfg *config.Config) *Agent {
	return &Agent{
		cfg:   cfg,
		stats: metrics.NewStatsEngine(),
		ids:   &hexIDGenerator{},
		now:   time.Now,
	}
}

// WithAdaptiveSampler attaches the distributed-trace sampling decision.
func (a *Agent) WithAdaptiveSampler(s AdaptiveSampler) *Agent {
	a.adaptive = s
	return a
}

// WithTraceSampler attaches the performance-trace sampler.
func (a *Agent) WithTraceSampler(s TraceSampler) *Agent {
	a.traces = s
	return a
}

// WithQuerySampler attaches the slow-query sampler.
func (a *Agent) WithQuerySampler(s QuerySampler) *Agent {
	a.queries = s
	return a
}

// WithErrorSink attaches the error collector.
func (a *Agent) WithErrorSink(s ErrorSink) *Agent {
	a.errs = s
	return a
}

// WithEventRecorder attaches the finished-transaction event recorder.
func (a *Agent) WithEventRecorder(r EventRecorder) *Agent {
	a.events = r
	return a
}

// WithCPUSource attaches the CPU clock used for CPU-burn measurement.
func (a *Agent) WithCPUSource(s cputime.Source) *Agent {
	a.cpu = s
	return a
}

// WithIDGenerator replaces the guid generator, mainly for deterministic
// tests.
func (a *Agent) WithIDGenerator(g IDGenerator) *Agent {
	a.ids = g
	return a
}

// WithClock replaces the wall clock, mainly for deterministic tests.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	a.now = now
	return a
}

// Config returns the agent's configuration.
func (a *Agent) Config() *config.Config {
	return a.cfg
}

// Stats returns the process-wide stats engine.
func (a *Agent) Stats() *metrics.StatsEngine {
	return a.stats
}

// StartOptions carries one instrumentation call site's contribution to a
// transaction.
type StartOptions struct {
	// Category defaults to CategoryController.
	Category naming.Category

	// Name is the call site's transaction-name contribution, with or
	// without a metric prefix.
	Name string

	// Request is the inbound request snapshot; the first call that
	// supplies one wins.
	Request *RequestInfo

	// QueueStart is the upstream queue-entry timestamp, when known.
	QueueStart time.Time

	// IgnoreApdex and IgnoreEnduser override the transaction's flags when
	// explicitly supplied; the latest explicit value wins.
	IgnoreApdex   *bool
	IgnoreEnduser *bool

	// Synthetics marks the transaction as driven by a synthetic monitor.
	Synthetics *SyntheticsInfo
}

// StartTransaction begins a unit of work in the given execution context,
// or nests a frame into the one already active. It returns the active
// transaction, or nil when the agent could not create one.
func (a *Agent) StartTransaction(
	ec *ExecutionContext,
	opts StartOptions,
) (txn *Transaction) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("txcore: start failed: %v", r)
			txn = nil
		}
	}()

	if ec == nil {
		log.Printf("txcore: start called without an execution context")
		return nil
	}

	if current := ec.Current(); current != nil {
		a.startNested(current, opts)
		return current
	}

	// The binding is installed only after start succeeds, so a failed start
	// never leaves a half-built transaction stuck in the context.
	txn = a.newTransaction(opts)
	txn.start(opts)
	ec.SetCurrent(txn)

	return txn
}

func (a *Agent) newTransaction(opts StartOptions) *Transaction {
	now := a.now()

	t := &Transaction{
		agent:      a,
		guid:       a.ids.Generate(),
		startTime:  now,
		apdexStart: now,
		category:   opts.Category,
		metrics:    metrics.NewCollector(a.cfg.MaxRecordableDuration),
		attrs:      attributes.NewCollector(),
		errorSeen:  make(map[error]bool),
		request:    opts.Request,
		synthetics: opts.Synthetics,
	}

	if !opts.QueueStart.IsZero() && opts.QueueStart.Before(now) {
		t.queueStart = opts.QueueStart
		t.apdexStart = opts.QueueStart
	} else if !opts.QueueStart.IsZero() {
		t.queueStart = opts.QueueStart
	}

	if opts.IgnoreApdex != nil {
		t.ignoreApdex = *opts.IgnoreApdex
	}

	if opts.IgnoreEnduser != nil {
		t.ignoreEnduser = *opts.IgnoreEnduser
	}

	if a.cpu != nil {
		if reading, err := a.cpu.Reading(); err == nil {
			t.cpuStart = reading
			t.cpuStartOK = true
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	t.gcStart = time.Duration(ms.PauseTotalNs)

	if opts.Name != "" {
		t.setDefaultName(fullName(opts.Name, opts.Category), opts.Category)
	}

	return t
}

// start runs the new transaction's own startup: notify listeners, begin
// queue-time aggregation, evaluate the URL-ignore rules, and push the
// initial segment. The initial segment never records a scoped metric, so a
// transaction without nested children does not double-count against the
// rollup.
func (t *Transaction) start(opts StartOptions) {
	a := t.agent

	a.InvokeHook(hooking.HookCtx{
		Domain: a,
		Pos:    hooking.HookPosTxnStart,
		Item:   t,
	})

	path := ""
	if t.request != nil {
		path = t.request.Path
	}

	if a.traces != nil {
		a.traces.OnStart(t.startTime, path)
	}

	if path != "" && a.cfg.IgnoreURL(path) {
		t.Ignore()
	}

	t.pushSegment(&Segment{
		name:      t.bestName(),
		scoped:    false,
		startTime: t.startTime,
	})
}

// startNested handles a re-entrant start while a transaction is active.
func (a *Agent) startNested(t *Transaction, opts StartOptions) {
	if opts.Request != nil && t.request == nil {
		t.request = opts.Request
	}

	if opts.IgnoreApdex != nil {
		t.ignoreApdex = *opts.IgnoreApdex
	}

	if opts.IgnoreEnduser != nil {
		t.ignoreEnduser = *opts.IgnoreEnduser
	}

	if opts.Synthetics != nil && t.synthetics == nil {
		t.synthetics = opts.Synthetics
	}

	// The outer call turned out to have nested children: demote its
	// initial segment to a nested, scoped metric.
	if t.nestingMaxDepth == 1 {
		initial := t.frameStack[0]
		initial.name = naming.NestedPrefix + initial.name
		initial.scoped = true
	}

	name := fullName(opts.Name, opts.Category)
	if name == "" {
		name = t.bestName()
	}

	t.pushSegment(&Segment{
		name:      nestedName(name),
		scoped:    true,
		startTime: a.now(),
	})

	if opts.Name != "" {
		t.setDefaultName(name, opts.Category)
	}
}

func (t *Transaction) pushSegment(s *Segment) {
	t.frameStack = append(t.frameStack, s)

	if len(t.frameStack) > t.nestingMaxDepth {
		t.nestingMaxDepth = len(t.frameStack)
	}
}

// StopTransaction ends the innermost frame of the active transaction. The
// outermost stop runs the commit pipeline and clears the execution
// context's binding, even when committing fails. A fault inside stop also
// clears the binding so the execution context cannot get stuck.
func (a *Agent) StopTransaction(ec *ExecutionContext) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("txcore: stop failed: %v", r)

			if ec != nil {
				ec.Clear()
			}
		}
	}()

	if ec == nil || ec.Current() == nil {
		a.recordStopWithoutTransaction()
		return
	}

	t := ec.Current()
	now := a.now()

	if len(t.frameStack) == 0 {
		log.Printf("txcore: stop called on a transaction with no open frames")
		ec.Clear()

		return
	}

	seg := t.frameStack[len(t.frameStack)-1]

	// The outermost frame records under the final name, so a transaction
	// renamed mid-flight does not leave a metric under its stale start-time
	// name. Demoted initial segments keep their nested name.
	if len(t.frameStack) == 1 {
		t.freezeName()

		if !strings.HasPrefix(seg.name, naming.NestedPrefix) {
			seg.name = t.frozenName
		}
	}

	t.frameStack = t.frameStack[:len(t.frameStack)-1]

	total, exclusive := seg.end(t, now)
	t.totalExclusive += exclusive
	t.segmentLog = append(t.segmentLog, SegmentSummary{
		Name:      seg.name,
		StartTime: seg.startTime,
		Duration:  total,
		Exclusive: exclusive,
		Scoped:    seg.scoped,
	})

	if len(t.frameStack) > 0 {
		parent := t.frameStack[len(t.frameStack)-1]
		parent.childDuration += total

		return
	}

	defer ec.Clear()

	t.endTime = now
	a.commit(t)
}

func (a *Agent) recordStopWithoutTransaction() {
	log.Printf("txcore: stop called with no active transaction")
	a.stats.IncrementCount("Supportability/Transaction/StopWithoutTransaction")
}
