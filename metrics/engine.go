package metrics

import (
	"sort"
	"sync"
)

// StatsEngine is the process-wide metric store that finished transactions
// merge into. It is shared across execution contexts and guards itself.
type StatsEngine struct {
	mu       sync.Mutex
	unscoped map[string]*Stat
	scoped   map[string]map[string]*Stat
}

// NewStatsEngine creates an empty StatsEngine.
func NewStatsEngine() *StatsEngine {
	return &StatsEngine{
		unscoped: make(map[string]*Stat),
		scoped:   make(map[string]map[string]*Stat),
	}
}

// Merge folds a finished transaction's collector in. Scoped stats are keyed
// under the transaction's resolved name.
func (e *StatsEngine) Merge(c *Collector, scope string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, stat := range c.unscoped {
		e.mergeOne(e.unscoped, name, stat)
	}

	if len(c.scoped) == 0 {
		return
	}

	scopeMap, ok := e.scoped[scope]
	if !ok {
		scopeMap = make(map[string]*Stat)
		e.scoped[scope] = scopeMap
	}

	for name, stat := range c.scoped {
		e.mergeOne(scopeMap, name, stat)
	}
}

func (e *StatsEngine) mergeOne(m map[string]*Stat, name string, stat *Stat) {
	existing, ok := m[name]
	if !ok {
		existing = &Stat{}
		m[name] = existing
	}

	existing.Merge(stat)
}

// Unscoped returns a copy of the accumulated unscoped stat for a name. The
// second return value reports whether the name has been recorded.
func (e *StatsEngine) Unscoped(name string) (Stat, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.unscoped[name]
	if !ok {
		return Stat{}, false
	}

	return *s, true
}

// Scoped returns a copy of the stat recorded for name within a scope.
func (e *StatsEngine) Scoped(scope, name string) (Stat, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	scopeMap, ok := e.scoped[scope]
	if !ok {
		return Stat{}, false
	}

	s, ok := scopeMap[name]
	if !ok {
		return Stat{}, false
	}

	return *s, true
}

// IncrementCount bumps the call count of a metric outside any
// transaction's collector.
func (e *StatsEngine) IncrementCount(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.mergeOne(e.unscoped, name, &Stat{CallCount: 1})
}

// NamedStat pairs a metric name with its accumulated stat.
type NamedStat struct {
	Name string `json:"name"`
	Stat Stat   `json:"stat"`
}

// Snapshot returns all unscoped stats sorted by name.
func (e *StatsEngine) Snapshot() []NamedStat {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make([]NamedStat, 0, len(e.unscoped))
	for name, stat := range e.unscoped {
		snapshot = append(snapshot, NamedStat{Name: name, Stat: *stat})
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Name < snapshot[j].Name
	})

	return snapshot
}
