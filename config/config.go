// Package config holds the agent configuration consumed by the transaction
// core and its collaborators.
package config

import (
	"log"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sarchlab/txcore/naming"
)

// Config is the keyed configuration source of the agent. A zero threshold
// means "use the derived default" where one exists.
type Config struct {
	// ApdexT is the default apdex satisfaction threshold.
	ApdexT time.Duration

	// KeyTransactions overrides the apdex threshold per resolved
	// transaction name.
	KeyTransactions map[string]time.Duration

	// TracerThreshold is the duration above which a transaction trace is
	// retained. TracerThresholdConfigured distinguishes an explicit value
	// from the default of four times ApdexT.
	TracerThreshold           time.Duration
	TracerThresholdConfigured bool

	// IgnoreURLRegexes drops transactions whose request path matches.
	IgnoreURLRegexes []*regexp.Regexp

	// NamingRules rewrite transaction names at freeze time.
	NamingRules *naming.RuleSet

	DistributedTracingEnabled bool
	CrossAppTracingEnabled    bool

	// MaxRecordableDuration caps a single recorded metric value.
	MaxRecordableDuration time.Duration

	// SamplerTarget and SamplerPeriod shape the adaptive sampler.
	SamplerTarget int
	SamplerPeriod time.Duration

	MonitorPort   int
	RecordingPath string
	DisplayHost   string
}

// DefaultConfig returns the configuration the agent starts with.
func DefaultConfig() *Config {
	return &Config{
		ApdexT:                500 * time.Millisecond,
		KeyTransactions:       make(map[string]time.Duration),
		MaxRecordableDuration: 10 * time.Minute,
		SamplerTarget:         10,
		SamplerPeriod:         time.Minute,
		MonitorPort:           0,
	}
}

// ApdexTFor resolves the apdex threshold for one transaction name.
func (c *Config) ApdexTFor(name string) time.Duration {
	if t, ok := c.KeyTransactions[name]; ok {
		return t
	}

	return c.ApdexT
}

// EffectiveTracerThreshold returns the explicitly configured trace-retention
// threshold, or four times the apdex threshold when unset.
func (c *Config) EffectiveTracerThreshold() time.Duration {
	if c.TracerThresholdConfigured {
		return c.TracerThreshold
	}

	return 4 * c.ApdexT
}

// IgnoreURL reports whether a request path matches a configured ignore
// pattern.
func (c *Config) IgnoreURL(path string) bool {
	for _, re := range c.IgnoreURLRegexes {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}

// LoadEnv overlays the configuration with TXCORE_* environment variables,
// reading an env file first when envFile is not empty. A missing env file
// is not an error; malformed values keep the current setting with a logged
// diagnostic.
func (c *Config) LoadEnv(envFile string) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Printf("txcore: cannot load env file %s: %v", envFile, err)
		}
	}

	c.overlayDuration("TXCORE_APDEX_T", &c.ApdexT)
	c.overlayBool("TXCORE_DISTRIBUTED_TRACING", &c.DistributedTracingEnabled)
	c.overlayBool("TXCORE_CROSS_APP_TRACING", &c.CrossAppTracingEnabled)
	c.overlayDuration("TXCORE_MAX_RECORDABLE", &c.MaxRecordableDuration)
	c.overlayInt("TXCORE_SAMPLER_TARGET", &c.SamplerTarget)
	c.overlayDuration("TXCORE_SAMPLER_PERIOD", &c.SamplerPeriod)
	c.overlayInt("TXCORE_MONITOR_PORT", &c.MonitorPort)
	c.overlayString("TXCORE_RECORDING_PATH", &c.RecordingPath)
	c.overlayString("TXCORE_DISPLAY_HOST", &c.DisplayHost)

	if raw, ok := os.LookupEnv("TXCORE_TRACER_THRESHOLD"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Printf("txcore: bad TXCORE_TRACER_THRESHOLD %q: %v", raw, err)
			return
		}

		c.TracerThreshold = d
		c.TracerThresholdConfigured = true
	}
}

func (c *Config) overlayDuration(key string, dst *time.Duration) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("txcore: bad %s %q: %v", key, raw, err)
		return
	}

	*dst = d
}

func (c *Config) overlayBool(key string, dst *bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("txcore: bad %s %q: %v", key, raw, err)
		return
	}

	*dst = b
}

func (c *Config) overlayInt(key string, dst *int) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	i, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("txcore: bad %s %q: %v", key, raw, err)
		return
	}

	*dst = i
}

func (c *Config) overlayString(key string, dst *string) {
	if raw, ok := os.LookupEnv(key); ok {
		*dst = raw
	}
}
