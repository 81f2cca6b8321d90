package txn

import (
	"context"
	"errors"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/txcore/config"
	"github.com/sarchlab/txcore/hooking"
	"github.com/sarchlab/txcore/metrics"
	"github.com/sarchlab/txcore/naming"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	return c.now
}

func (c *stubClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type payloadCapture struct {
	payloads []*Payload
}

func (h *payloadCapture) Func(ctx hooking.HookCtx) {
	if ctx.Pos == hooking.HookPosTxnFinished {
		h.payloads = append(h.payloads, ctx.Item.(*Payload))
	}
}

var _ = Describe("Agent lifecycle", func() {
	var (
		mockCtrl *gomock.Controller
		cfg      *config.Config
		agent    *Agent
		ec       *ExecutionContext
		clock    *stubClock
		capture  *payloadCapture
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		cfg = config.DefaultConfig()
		clock = &stubClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		capture = &payloadCapture{}

		agent = NewAgent(cfg).
			WithClock(clock.Now).
			WithIDGenerator(&SequentialIDGenerator{})
		agent.AcceptHook(capture)

		ec = NewExecutionContext()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should commit a simple web transaction", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})
		Expect(t).NotTo(BeNil())
		Expect(t.GUID()).To(HaveLen(16))

		clock.advance(50 * time.Millisecond)
		agent.StopTransaction(ec)

		Expect(ec.Current()).To(BeNil())
		Expect(capture.payloads).To(HaveLen(1))

		p := capture.payloads[0]
		Expect(p.Name).To(Equal("Controller/Foo#bar"))
		Expect(p.IsWeb).To(BeTrue())
		Expect(p.Duration).To(Equal(50 * time.Millisecond))
		Expect(p.ApdexZone).To(Equal(metrics.ApdexSatisfying))

		dispatcher, ok := agent.Stats().Unscoped("HttpDispatcher")
		Expect(ok).To(BeTrue())
		Expect(dispatcher.CallCount).To(Equal(int64(1)))

		apdex, ok := agent.Stats().Unscoped("Apdex")
		Expect(ok).To(BeTrue())
		Expect(apdex.CallCount).To(Equal(int64(1)))

		perName, ok := agent.Stats().Unscoped("Apdex/Foo#bar")
		Expect(ok).To(BeTrue())
		Expect(perName.CallCount).To(Equal(int64(1)))

		named, ok := agent.Stats().Unscoped("Controller/Foo#bar")
		Expect(ok).To(BeTrue())
		Expect(named.CallCount).To(Equal(int64(1)))
	})

	It("should force a failing apdex on a non-web transaction with an error",
		func() {
			errSink := NewMockErrorSink(mockCtrl)
			errSink.EXPECT().ErrorIsIgnored(gomock.Any()).
				Return(false).AnyTimes()
			errSink.EXPECT().NoticeError(gomock.Any(), gomock.Any()).
				Return(true)
			agent.WithErrorSink(errSink)

			t := agent.StartTransaction(ec, StartOptions{
				Category: naming.CategoryTask,
				Name:     "OtherTransaction/Background/Job#run",
			})
			t.NoticeError(errors.New("job exploded"), nil)

			clock.advance(time.Millisecond)
			agent.StopTransaction(ec)

			p := capture.payloads[0]
			Expect(p.IsWeb).To(BeFalse())
			Expect(p.ApdexZone).To(Equal(metrics.ApdexFailing))
			Expect(p.Error).To(BeTrue())

			_, ok := agent.Stats().Unscoped("OtherTransaction/Background/all")
			Expect(ok).To(BeTrue())

			_, ok = agent.Stats().Unscoped("OtherTransaction/all")
			Expect(ok).To(BeTrue())

			_, ok = agent.Stats().Unscoped("ApdexOther")
			Expect(ok).To(BeTrue())
		})

	It("should demote the initial segment when a frame nests inside it",
		func() {
			t := agent.StartTransaction(ec, StartOptions{Name: "A#x"})

			clock.advance(10 * time.Millisecond)
			agent.StartTransaction(ec, StartOptions{Name: "B#y"})

			Expect(t.NestingMaxDepth()).To(Equal(2))

			clock.advance(40 * time.Millisecond)
			agent.StopTransaction(ec)
			clock.advance(50 * time.Millisecond)
			agent.StopTransaction(ec)

			p := capture.payloads[0]
			Expect(p.Name).To(Equal("Controller/B#y"))

			outer, ok := agent.Stats().Scoped(
				"Controller/B#y", "Nested/Controller/A#x")
			Expect(ok).To(BeTrue())
			Expect(outer.Total).To(Equal(100 * time.Millisecond))
			Expect(outer.Exclusive).To(Equal(60 * time.Millisecond))

			inner, ok := agent.Stats().Scoped(
				"Controller/B#y", "Nested/Controller/B#y")
			Expect(ok).To(BeTrue())
			Expect(inner.Total).To(Equal(40 * time.Millisecond))

			totalTime, ok := agent.Stats().Unscoped("WebTransactionTotalTime")
			Expect(ok).To(BeTrue())
			Expect(totalTime.Total).To(Equal(100 * time.Millisecond))
		})

	It("should report a non-fatal condition on stop without a transaction",
		func() {
			Expect(func() { agent.StopTransaction(ec) }).NotTo(Panic())

			Expect(capture.payloads).To(BeEmpty())

			counter, ok := agent.Stats().Unscoped(
				"Supportability/Transaction/StopWithoutTransaction")
			Expect(ok).To(BeTrue())
			Expect(counter.CallCount).To(Equal(int64(1)))
		})

	It("should promote a middleware name to a controller name at commit",
		func() {
			t := agent.StartTransaction(ec, StartOptions{
				Category: naming.CategoryMiddleware,
				Name:     "Middleware/Rack/Foo",
			})
			Expect(t).NotTo(BeNil())

			clock.advance(time.Millisecond)
			agent.StopTransaction(ec)

			Expect(capture.payloads[0].Name).
				To(Equal("Controller/Middleware/Rack/Foo"))
		})

	It("should apply rename rules after the middleware promotion", func() {
		cfg.NamingRules = naming.NewRuleSet(naming.Rule{
			Match:       regexp.MustCompile(`^Controller/Middleware/Rack/`),
			Replacement: "Controller/Rack/",
		})

		agent.StartTransaction(ec, StartOptions{
			Category: naming.CategoryMiddleware,
			Name:     "Middleware/Rack/Foo",
		})
		agent.StopTransaction(ec)

		Expect(capture.payloads[0].Name).To(Equal("Controller/Rack/Foo"))
	})

	It("should drop a transaction whose name matches an ignore rule", func() {
		cfg.NamingRules = naming.NewRuleSet(naming.Rule{
			Match:  regexp.MustCompile(`^Controller/health`),
			Ignore: true,
		})

		agent.StartTransaction(ec, StartOptions{Name: "health#check"})
		agent.StopTransaction(ec)

		Expect(capture.payloads).To(BeEmpty())
		Expect(agent.Stats().Snapshot()).To(BeEmpty())
	})

	It("should drop a transaction whose path matches an ignore pattern",
		func() {
			cfg.IgnoreURLRegexes = []*regexp.Regexp{
				regexp.MustCompile(`^/ping`),
			}

			agent.StartTransaction(ec, StartOptions{
				Name:    "Status#ping",
				Request: &RequestInfo{Path: "/ping"},
			})
			agent.StopTransaction(ec)

			Expect(capture.payloads).To(BeEmpty())
		})

	It("should record queue time from an upstream queue-entry timestamp",
		func() {
			queued := clock.now.Add(-200 * time.Millisecond)

			agent.StartTransaction(ec, StartOptions{
				Name:       "Foo#bar",
				QueueStart: queued,
			})
			clock.advance(time.Millisecond)
			agent.StopTransaction(ec)

			Expect(capture.payloads[0].QueueDuration).
				To(Equal(200 * time.Millisecond))

			stat, ok := agent.Stats().Unscoped("WebFrontend/QueueTime")
			Expect(ok).To(BeTrue())
			Expect(stat.Total).To(Equal(200 * time.Millisecond))
		})

	It("should clip a queue-entry timestamp later than start to zero", func() {
		agent.StartTransaction(ec, StartOptions{
			Name:       "Foo#bar",
			QueueStart: clock.now.Add(time.Second),
		})
		clock.advance(time.Millisecond)
		agent.StopTransaction(ec)

		Expect(capture.payloads[0].QueueDuration).To(BeZero())

		_, ok := agent.Stats().Unscoped("WebFrontend/QueueTime")
		Expect(ok).To(BeFalse())
	})

	It("should never record queue time above the plausibility cap", func() {
		agent.StartTransaction(ec, StartOptions{
			Name:       "Foo#bar",
			QueueStart: clock.now.Add(-11 * time.Minute),
		})
		clock.advance(time.Millisecond)
		agent.StopTransaction(ec)

		_, ok := agent.Stats().Unscoped("WebFrontend/QueueTime")
		Expect(ok).To(BeFalse())
	})

	It("should skip apdex recording when apdex is ignored", func() {
		ignore := true

		agent.StartTransaction(ec, StartOptions{
			Name:        "Foo#bar",
			IgnoreApdex: &ignore,
		})
		agent.StopTransaction(ec)

		_, ok := agent.Stats().Unscoped("Apdex")
		Expect(ok).To(BeFalse())
	})

	It("should let the latest nested call win the ignore-apdex flag", func() {
		ignore := true
		keep := false

		agent.StartTransaction(ec, StartOptions{
			Name:        "Foo#bar",
			IgnoreApdex: &ignore,
		})
		agent.StartTransaction(ec, StartOptions{
			Name:        "Foo#baz",
			IgnoreApdex: &keep,
		})
		agent.StopTransaction(ec)
		agent.StopTransaction(ec)

		_, ok := agent.Stats().Unscoped("Apdex")
		Expect(ok).To(BeTrue())
	})

	It("should hand the finished transaction to the samplers", func() {
		traces := NewMockTraceSampler(mockCtrl)
		traces.EXPECT().OnStart(gomock.Any(), "")
		traces.EXPECT().OnFinish(gomock.Any()).Return(true)

		queries := NewMockQuerySampler(mockCtrl)
		queries.EXPECT().OnFinish(gomock.Any())

		agent.WithTraceSampler(traces).WithQuerySampler(queries)

		agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})
		agent.StopTransaction(ec)
	})

	It("should withhold the trace sampler on an aborted trace", func() {
		traces := NewMockTraceSampler(mockCtrl)
		traces.EXPECT().OnStart(gomock.Any(), "")
		agent.WithTraceSampler(traces)

		t := agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})
		t.AbortTrace()
		agent.StopTransaction(ec)

		Expect(capture.payloads).To(HaveLen(1))
	})

	It("should record the finished-transaction event", func() {
		events := NewMockEventRecorder(mockCtrl)
		events.EXPECT().RecordTransactionEvent(gomock.Any())
		agent.WithEventRecorder(events)

		agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})
		agent.StopTransaction(ec)
	})

	It("should survive a panicking finished listener", func() {
		agent.AcceptHook(&panickingHook{})

		agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})

		Expect(func() { agent.StopTransaction(ec) }).NotTo(Panic())
		Expect(ec.Current()).To(BeNil())
	})

	It("should leave the context unbound when start fails", func() {
		agent.WithTraceSampler(&panickingTraceSampler{})

		t := agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})

		Expect(t).To(BeNil())
		Expect(ec.Current()).To(BeNil())

		agent.StopTransaction(ec)

		counter, ok := agent.Stats().Unscoped(
			"Supportability/Transaction/StopWithoutTransaction")
		Expect(ok).To(BeTrue())
		Expect(counter.CallCount).To(Equal(int64(1)))
	})

	It("should clear the binding when stop faults", func() {
		broken := &Transaction{agent: agent}
		broken.frameStack = []*Segment{
			{name: "Controller/Broken", startTime: clock.now},
		}
		ec.SetCurrent(broken)

		Expect(func() { agent.StopTransaction(ec) }).NotTo(Panic())
		Expect(ec.Current()).To(BeNil())
	})

	It("should unbind a transaction with no open frames instead of "+
		"panicking", func() {
		ec.SetCurrent(&Transaction{agent: agent})

		Expect(func() { agent.StopTransaction(ec) }).NotTo(Panic())
		Expect(ec.Current()).To(BeNil())
	})

	It("should record the outermost segment under the frozen name after a "+
		"rename", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})
		t.SetOverriddenName(
			"Controller/Renamed#action", naming.CategoryController)

		clock.advance(time.Millisecond)
		agent.StopTransaction(ec)

		_, stale := agent.Stats().Unscoped("Controller/Foo#bar")
		Expect(stale).To(BeFalse())

		renamed, ok := agent.Stats().Unscoped("Controller/Renamed#action")
		Expect(ok).To(BeTrue())
		Expect(renamed.CallCount).To(Equal(int64(1)))
	})
})

type panickingHook struct{}

func (h *panickingHook) Func(ctx hooking.HookCtx) {
	panic("listener failure")
}

type panickingTraceSampler struct{}

func (s *panickingTraceSampler) OnStart(start time.Time, path string) {
	panic("sampler failure")
}

func (s *panickingTraceSampler) OnFinish(p *Payload) bool {
	return false
}

var _ = Describe("Context bridge", func() {
	It("should carry the execution context through a context.Context", func() {
		ec := NewExecutionContext()

		ctx := NewContext(context.Background(), ec)

		Expect(FromContext(ctx)).To(BeIdenticalTo(ec))
	})
})
