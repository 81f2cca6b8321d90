// Package errcollector implements the error collector that finished
// transactions forward their attached errors to. The collector applies the
// configured ignore and expected filters, deduplicates errors within a
// harvest cycle, and keeps a bounded buffer of recorded errors.
package errcollector

import (
	"sync"
	"time"
)

// A RecordedError is one error kept by the collector together with the
// metadata supplied by the transaction core.
type RecordedError struct {
	Message         string
	Options         map[string]interface{}
	TransactionName string
	NoticedAt       time.Time
}

// A Matcher decides whether an error belongs to a configured class.
type Matcher func(err error) bool

// Collector records application errors. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	ignore   []Matcher
	expected []Matcher
	capacity int

	seen     map[string]bool
	recorded []RecordedError

	now func() time.Time
}

// New creates a Collector keeping at most capacity errors per harvest
// cycle.
func New(capacity int) *Collector {
	return &Collector{
		capacity: capacity,
		seen:     make(map[string]bool),
		now:      time.Now,
	}
}

// IgnoreClass configures errors matched by m to be dropped entirely.
func (c *Collector) IgnoreClass(m Matcher) *Collector {
	c.ignore = append(c.ignore, m)
	return c
}

// ExpectClass configures errors matched by m as expected: recorded, but
// not counted against apdex or error rates.
func (c *Collector) ExpectClass(m Matcher) *Collector {
	c.expected = append(c.expected, m)
	return c
}

// ErrorIsIgnored reports whether an error is configured to be ignored.
func (c *Collector) ErrorIsIgnored(err error) bool {
	if err == nil {
		return true
	}

	for _, m := range c.ignore {
		if m(err) {
			return true
		}
	}

	return false
}

// ErrorIsExpected reports whether an error belongs to an expected class.
func (c *Collector) ErrorIsExpected(err error) bool {
	for _, m := range c.expected {
		if m(err) {
			return true
		}
	}

	return false
}

// NoticeError records an error and reports whether it was kept. Ignored
// errors, duplicates within the harvest cycle, and errors beyond the
// buffer capacity are dropped.
func (c *Collector) NoticeError(
	err error,
	opts map[string]interface{},
) bool {
	if c.ErrorIsIgnored(err) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	name, _ := opts["transaction_name"].(string)
	key := name + "|" + err.Error()
	if c.seen[key] {
		return false
	}

	if len(c.recorded) >= c.capacity {
		return false
	}

	c.seen[key] = true
	c.recorded = append(c.recorded, RecordedError{
		Message:         err.Error(),
		Options:         opts,
		TransactionName: name,
		NoticedAt:       c.now(),
	})

	return true
}

// Harvest returns the recorded errors and resets the collector's cycle.
func (c *Collector) Harvest() []RecordedError {
	c.mu.Lock()
	defer c.mu.Unlock()

	recorded := c.recorded
	c.recorded = nil
	c.seen = make(map[string]bool)

	return recorded
}
