package metrics

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Collector", func() {
	var c *Collector

	BeforeEach(func() {
		c = NewCollector(0)
	})

	It("should record unscoped metrics under every name", func() {
		c.RecordUnscoped(
			[]string{"Controller/Foo#bar", "HttpDispatcher"},
			100*time.Millisecond, 80*time.Millisecond)

		Expect(c.Unscoped("Controller/Foo#bar").CallCount).To(Equal(int64(1)))
		Expect(c.Unscoped("HttpDispatcher").Total).
			To(Equal(100 * time.Millisecond))
		Expect(c.Scoped("Controller/Foo#bar")).To(BeNil())
	})

	It("should record the first name as the scoped candidate", func() {
		c.RecordScopedAndUnscoped(
			[]string{"Nested/Controller/Foo#bar", "HttpDispatcher"},
			50*time.Millisecond, 50*time.Millisecond)

		Expect(c.Scoped("Nested/Controller/Foo#bar")).NotTo(BeNil())
		Expect(c.Scoped("HttpDispatcher")).To(BeNil())
		Expect(c.Unscoped("Nested/Controller/Foo#bar")).NotTo(BeNil())
	})

	It("should accumulate min, max, and sum of squares", func() {
		c.RecordUnscoped([]string{"m"}, 1*time.Second, 1*time.Second)
		c.RecordUnscoped([]string{"m"}, 3*time.Second, 2*time.Second)

		stat := c.Unscoped("m")
		Expect(stat.CallCount).To(Equal(int64(2)))
		Expect(stat.Min).To(Equal(1 * time.Second))
		Expect(stat.Max).To(Equal(3 * time.Second))
		Expect(stat.Exclusive).To(Equal(3 * time.Second))
		Expect(stat.SumSquares).To(BeNumerically("~", 10.0, 1e-9))
	})

	It("should drop durations above the plausibility cap", func() {
		c = NewCollector(10 * time.Minute)

		c.RecordUnscoped([]string{"WebFrontend/QueueTime"}, 11*time.Minute, 0)

		Expect(c.Unscoped("WebFrontend/QueueTime")).To(BeNil())
	})

	It("should keep durations at the plausibility cap", func() {
		c = NewCollector(10 * time.Minute)

		c.RecordUnscoped([]string{"WebFrontend/QueueTime"}, 10*time.Minute, 0)

		Expect(c.Unscoped("WebFrontend/QueueTime").CallCount).
			To(Equal(int64(1)))
	})

	It("should record apdex buckets", func() {
		c.RecordApdex("Apdex", ApdexSatisfying, 500*time.Millisecond)
		c.RecordApdex("Apdex", ApdexTolerating, 500*time.Millisecond)
		c.RecordApdex("Apdex", ApdexFailing, 500*time.Millisecond)

		stat := c.Unscoped("Apdex")
		Expect(stat.CallCount).To(Equal(int64(1)))
		Expect(stat.Total).To(Equal(time.Duration(1)))
		Expect(stat.Exclusive).To(Equal(time.Duration(1)))
		Expect(stat.Min).To(Equal(500 * time.Millisecond))
	})
})

var _ = Describe("StatsEngine", func() {
	var engine *StatsEngine

	BeforeEach(func() {
		engine = NewStatsEngine()
	})

	It("should merge collectors from multiple transactions", func() {
		c1 := NewCollector(0)
		c1.RecordUnscoped([]string{"HttpDispatcher"}, time.Second, time.Second)

		c2 := NewCollector(0)
		c2.RecordUnscoped([]string{"HttpDispatcher"}, time.Second, time.Second)

		engine.Merge(c1, "Controller/Foo#bar")
		engine.Merge(c2, "Controller/Foo#bar")

		stat, ok := engine.Unscoped("HttpDispatcher")
		Expect(ok).To(BeTrue())
		Expect(stat.CallCount).To(Equal(int64(2)))
		Expect(stat.Total).To(Equal(2 * time.Second))
	})

	It("should key scoped stats by the transaction name", func() {
		c := NewCollector(0)
		c.RecordScopedAndUnscoped(
			[]string{"Nested/Controller/B#y"}, time.Second, time.Second)

		engine.Merge(c, "Controller/A#x")

		_, ok := engine.Scoped("Controller/A#x", "Nested/Controller/B#y")
		Expect(ok).To(BeTrue())

		_, ok = engine.Scoped("Controller/B#y", "Nested/Controller/B#y")
		Expect(ok).To(BeFalse())
	})

	It("should snapshot stats sorted by name", func() {
		c := NewCollector(0)
		c.RecordUnscoped([]string{"b"}, time.Second, 0)
		c.RecordUnscoped([]string{"a"}, time.Second, 0)

		engine.Merge(c, "")

		snapshot := engine.Snapshot()
		Expect(snapshot).To(HaveLen(2))
		Expect(snapshot[0].Name).To(Equal("a"))
		Expect(snapshot[1].Name).To(Equal("b"))
	})
})
