package metrics

import (
	"sync"
	"time"
)

// Registry accumulates operation counters and latencies in process
// memory, exposed through the admin metrics endpoint.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
	timings  map[string]*timing
}

type timing struct {
	count int64
	total time.Duration
	max   time.Duration
}

// Snapshot is a point-in-time copy of the registry contents
type Snapshot struct {
	Counters  map[string]int64          `json:"counters"`
	Latencies map[string]LatencySummary `json:"latencies"`
}

// LatencySummary aggregates observed durations for one operation
type LatencySummary struct {
	Count     int64   `json:"count"`
	AvgMillis float64 `json:"avg_ms"`
	MaxMillis float64 `json:"max_ms"`
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]int64),
		timings:  make(map[string]*timing),
	}
}

// Incr bumps the named counter by one
func (r *Registry) Incr(name string) {
	r.Add(name, 1)
}

// Add bumps the named counter by delta
func (r *Registry) Add(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

// Observe records one duration for the named operation
func (r *Registry) Observe(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timings[name]
	if !ok {
		t = &timing{}
		r.timings[name] = t
	}
	t.count++
	t.total += d
	if d > t.max {
		t.max = d
	}
}

// Time runs fn and records its duration under name
func (r *Registry) Time(name string, fn func()) {
	start := time.Now()
	fn()
	r.Observe(name, time.Since(start))
}

// Snapshot returns a copy of all accumulated metrics
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Counters:  make(map[string]int64, len(r.counters)),
		Latencies: make(map[string]LatencySummary, len(r.timings)),
	}
	for name, v := range r.counters {
		snap.Counters[name] = v
	}
	for name, t := range r.timings {
		avg := float64(t.total.Milliseconds()) / float64(t.count)
		snap.Latencies[name] = LatencySummary{
			Count:     t.count,
			AvgMillis: avg,
			MaxMillis: float64(t.max.Milliseconds()),
		}
	}
	return snap
}
