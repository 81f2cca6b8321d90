package metrics

import (
	"log"
	"sort"
	"time"
)

// A Collector accumulates the metrics of one transaction while it runs.
// It is owned by a single execution context and needs no locking.
type Collector struct {
	unscoped map[string]*Stat
	scoped   map[string]*Stat

	maxRecordable time.Duration
	warn          *warnLimiter
}

// NewCollector creates a Collector. maxRecordable caps the plausible
// duration of a single recorded value; zero means no cap.
func NewCollector(maxRecordable time.Duration) *Collector {
	return &Collector{
		unscoped:      make(map[string]*Stat),
		scoped:        make(map[string]*Stat),
		maxRecordable: maxRecordable,
		warn:          newWarnLimiter(time.Minute),
	}
}

// RecordUnscoped records one data point under every given name. The order
// of names is preserved by convention: callers that also want a scoped
// metric put its name first and use RecordScopedAndUnscoped instead.
func (c *Collector) RecordUnscoped(
	names []string,
	total, exclusive time.Duration,
) {
	if !c.plausible(names, total) {
		return
	}

	for _, name := range names {
		c.statFor(c.unscoped, name).Record(total, exclusive)
	}
}

// RecordScopedAndUnscoped records one data point under every given name,
// and additionally records the first name as a scoped metric attributed to
// the transaction that owns this collector.
func (c *Collector) RecordScopedAndUnscoped(
	names []string,
	total, exclusive time.Duration,
) {
	if !c.plausible(names, total) {
		return
	}

	c.statFor(c.scoped, names[0]).Record(total, exclusive)

	for _, name := range names {
		c.statFor(c.unscoped, name).Record(total, exclusive)
	}
}

// RecordCount records an occurrence with no timing attached.
func (c *Collector) RecordCount(name string) {
	c.statFor(c.unscoped, name).CallCount++
}

// RecordApdex records an apdex bucket under the given name.
func (c *Collector) RecordApdex(
	name string,
	zone ApdexZone,
	threshold time.Duration,
) {
	c.statFor(c.unscoped, name).recordApdex(zone, threshold)
}

// Unscoped returns the accumulated unscoped stat for a name, or nil.
func (c *Collector) Unscoped(name string) *Stat {
	return c.unscoped[name]
}

// Scoped returns the accumulated scoped stat for a name, or nil.
func (c *Collector) Scoped(name string) *Stat {
	return c.scoped[name]
}

// UnscopedNames returns the names of all unscoped stats in sorted order.
func (c *Collector) UnscopedNames() []string {
	return sortedKeys(c.unscoped)
}

// ScopedNames returns the names of all scoped stats in sorted order.
func (c *Collector) ScopedNames() []string {
	return sortedKeys(c.scoped)
}

func sortedKeys(m map[string]*Stat) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (c *Collector) statFor(m map[string]*Stat, name string) *Stat {
	s, ok := m[name]
	if !ok {
		s = &Stat{}
		m[name] = s
	}

	return s
}

func (c *Collector) plausible(names []string, total time.Duration) bool {
	if c.maxRecordable <= 0 || total <= c.maxRecordable {
		return true
	}

	if c.warn.allow() {
		log.Printf(
			"txcore: dropping implausible duration %s for metric %s (cap %s)",
			total, names[0], c.maxRecordable)
	}

	return false
}

// warnLimiter allows at most one warning per interval.
type warnLimiter struct {
	interval time.Duration
	last     time.Time
}

func newWarnLimiter(interval time.Duration) *warnLimiter {
	return &warnLimiter{interval: interval}
}

func (w *warnLimiter) allow() bool {
	now := time.Now()
	if now.Sub(w.last) < w.interval {
		return false
	}

	w.last = now

	return true
}
