package config

import (
	"os"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var c *Config

	BeforeEach(func() {
		c = DefaultConfig()
	})

	It("should default the tracer threshold to four times apdex_t", func() {
		c.ApdexT = 500 * time.Millisecond

		Expect(c.EffectiveTracerThreshold()).To(Equal(2 * time.Second))
	})

	It("should prefer an explicitly configured tracer threshold", func() {
		c.TracerThreshold = 100 * time.Millisecond
		c.TracerThresholdConfigured = true

		Expect(c.EffectiveTracerThreshold()).
			To(Equal(100 * time.Millisecond))
	})

	It("should resolve per-name apdex thresholds", func() {
		c.ApdexT = 500 * time.Millisecond
		c.KeyTransactions["Controller/checkout#create"] = 100 * time.Millisecond

		Expect(c.ApdexTFor("Controller/checkout#create")).
			To(Equal(100 * time.Millisecond))
		Expect(c.ApdexTFor("Controller/Foo#bar")).
			To(Equal(500 * time.Millisecond))
	})

	It("should match ignore-URL patterns", func() {
		c.IgnoreURLRegexes = []*regexp.Regexp{
			regexp.MustCompile(`^/health`),
		}

		Expect(c.IgnoreURL("/health/live")).To(BeTrue())
		Expect(c.IgnoreURL("/cart")).To(BeFalse())
	})

	Describe("LoadEnv", func() {
		AfterEach(func() {
			os.Unsetenv("TXCORE_APDEX_T")
			os.Unsetenv("TXCORE_TRACER_THRESHOLD")
			os.Unsetenv("TXCORE_DISTRIBUTED_TRACING")
		})

		It("should overlay values from the environment", func() {
			os.Setenv("TXCORE_APDEX_T", "250ms")
			os.Setenv("TXCORE_DISTRIBUTED_TRACING", "true")

			c.LoadEnv("")

			Expect(c.ApdexT).To(Equal(250 * time.Millisecond))
			Expect(c.DistributedTracingEnabled).To(BeTrue())
		})

		It("should mark an explicit tracer threshold as configured", func() {
			os.Setenv("TXCORE_TRACER_THRESHOLD", "50ms")

			c.LoadEnv("")

			Expect(c.TracerThresholdConfigured).To(BeTrue())
			Expect(c.EffectiveTracerThreshold()).
				To(Equal(50 * time.Millisecond))
		})

		It("should keep defaults on malformed values", func() {
			os.Setenv("TXCORE_APDEX_T", "not-a-duration")

			c.LoadEnv("")

			Expect(c.ApdexT).To(Equal(500 * time.Millisecond))
		})
	})
})
