package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Counter is a monotonically increasing value with optional labels.
type Counter struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Labels     map[string]string `json:"labels,omitempty"`
	LastUpdate time.Time         `json:"last_update"`
}

// Timer aggregates duration samples for one labeled series.
type Timer struct {
	Name    string            `json:"name"`
	Count   int64             `json:"count"`
	SumMs   float64           `json:"sum_ms"`
	MinMs   float64           `json:"min_ms"`
	MaxMs   float64           `json:"max_ms"`
	AvgMs   float64           `json:"avg_ms"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// Snapshot is a point-in-time copy of the registry, suitable for the
// metrics endpoint.
type Snapshot struct {
	UptimeSeconds float64   `json:"uptime_seconds"`
	Counters      []Counter `json:"counters"`
	Timers        []Timer   `json:"timers"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Registry keeps counters and timers in memory. The bridge runs as a
// single process, so there is no external metrics backend to push to.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Counter
	timers    map[string]*Timer
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Counter),
		timers:    make(map[string]*Timer),
		startTime: time.Now(),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Increment adds one to a counter series.
func (r *Registry) Increment(name string, labels map[string]string) {
	r.Add(name, 1, labels)
}

// Add adds a value to a counter series, creating it on first use.
func (r *Registry) Add(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seriesKey(name, labels)
	if c, ok := r.counters[key]; ok {
		c.Value += value
		c.LastUpdate = time.Now()
		return
	}
	r.counters[key] = &Counter{
		Name:       name,
		Value:      value,
		Labels:     copyLabels(labels),
		LastUpdate: time.Now(),
	}
}

// Observe records one duration sample on a timer series.
func (r *Registry) Observe(name string, d time.Duration, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms := float64(d.Nanoseconds()) / 1e6
	key := seriesKey(name, labels)
	t, ok := r.timers[key]
	if !ok {
		t = &Timer{Name: name, MinMs: ms, Labels: copyLabels(labels)}
		r.timers[key] = t
	}

	t.Count++
	t.SumMs += ms
	if ms < t.MinMs {
		t.MinMs = ms
	}
	if ms > t.MaxMs {
		t.MaxMs = ms
	}
	t.AvgMs = t.SumMs / float64(t.Count)
}

// Snapshot copies the current state. Series are sorted by key so the
// endpoint output is stable.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &Snapshot{
		UptimeSeconds: time.Since(r.startTime).Seconds(),
		GeneratedAt:   time.Now(),
	}

	counterKeys := make([]string, 0, len(r.counters))
	for key := range r.counters {
		counterKeys = append(counterKeys, key)
	}
	sort.Strings(counterKeys)
	for _, key := range counterKeys {
		snap.Counters = append(snap.Counters, *r.counters[key])
	}

	timerKeys := make([]string, 0, len(r.timers))
	for key := range r.timers {
		timerKeys = append(timerKeys, key)
	}
	sort.Strings(timerKeys)
	for _, key := range timerKeys {
		snap.Timers = append(snap.Timers, *r.timers[key])
	}

	return snap
}

// Reset clears all series. Test helper.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = make(map[string]*Counter)
	r.timers = make(map[string]*Timer)
	r.startTime = time.Now()
}

func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
