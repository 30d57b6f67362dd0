// Package metrics implements the passive observability facade (component
// G): per-aircraft assembly latency, an incomplete-assembly counter, TCP
// resource counters, and CPU/RSS sampling, with periodic CSV export and a
// JSON snapshot on shutdown.
//
// Components never import this package's concrete type directly in their
// hot paths — they're handed a Recorder interface so tests can substitute
// a recording double, per the spec's facade guidance (§9).
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder is the facade every pipeline component depends on instead of a
// concrete *Collector, so unit tests can substitute a no-op or recording
// double without wiring up gopsutil or /proc.
type Recorder interface {
	RecordAssemblyLatency(d time.Duration)
	IncrementIncompleteAssembly()
	IncrementCounter(name string)
	SetGauge(name string, value float64)
}

// Collector is the concrete Recorder implementation owned by each process.
// All exported methods are safe for concurrent use — components across
// several tasks report into the same Collector.
type Collector struct {
	component string

	mu        sync.Mutex
	latencies []time.Duration
	counters  map[string]*int64
	gauges    map[string]float64
	timeout   time.Duration
}

// New creates a Collector for the named component (used as a prefix for
// exported artifact filenames).
func New(component string, assemblyTimeout time.Duration) *Collector {
	return &Collector{
		component: component,
		counters:  make(map[string]*int64),
		gauges:    make(map[string]float64),
		timeout:   assemblyTimeout,
	}
}

// RecordAssemblyLatency appends one completed assembly's elapsed time
// (first-seen to all-fields-populated) to the latency histogram.
func (c *Collector) RecordAssemblyLatency(d time.Duration) {
	c.mu.Lock()
	c.latencies = append(c.latencies, d)
	c.mu.Unlock()
}

// IncrementIncompleteAssembly counts one aircraft whose track never
// completed within the configured assembly timeout.
func (c *Collector) IncrementIncompleteAssembly() {
	c.IncrementCounter("incomplete_assembly")
}

// IncrementCounter bumps a named counter by one, creating it at zero on
// first use.
func (c *Collector) IncrementCounter(name string) {
	c.mu.Lock()
	counter, ok := c.counters[name]
	if !ok {
		var zero int64
		counter = &zero
		c.counters[name] = counter
	}
	c.mu.Unlock()
	atomic.AddInt64(counter, 1)
}

// SetGauge records the current value of a named gauge (e.g. queue depth,
// active aircraft count).
func (c *Collector) SetGauge(name string, value float64) {
	c.mu.Lock()
	c.gauges[name] = value
	c.mu.Unlock()
}

// LatencyStats is the min/max/mean/median summary computed on demand (the
// spec calls for this "on close", i.e. whenever a snapshot is exported).
type LatencyStats struct {
	Count  int           `json:"count"`
	Min    time.Duration `json:"min_ns"`
	Max    time.Duration `json:"max_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Median time.Duration `json:"median_ns"`
}

func (c *Collector) latencyStats() LatencyStats {
	c.mu.Lock()
	samples := append([]time.Duration(nil), c.latencies...)
	c.mu.Unlock()

	if len(samples) == 0 {
		return LatencyStats{}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum time.Duration
	for _, s := range samples {
		sum += s
	}

	return LatencyStats{
		Count:  len(samples),
		Min:    samples[0],
		Max:    samples[len(samples)-1],
		Mean:   sum / time.Duration(len(samples)),
		Median: samples[len(samples)/2],
	}
}

// Snapshot is a point-in-time copy of every counter and gauge, suitable for
// CSV row emission or a JSON export.
type Snapshot struct {
	Component string             `json:"component"`
	Timestamp time.Time          `json:"timestamp"`
	Latency   LatencyStats       `json:"assembly_latency"`
	Counters  map[string]int64   `json:"counters"`
	Gauges    map[string]float64 `json:"gauges"`
	Timeout   time.Duration      `json:"assembly_timeout_ns"`
}

// Snapshot returns the current state of every tracked metric.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	counters := make(map[string]int64, len(c.counters))
	for name, v := range c.counters {
		counters[name] = atomic.LoadInt64(v)
	}
	gauges := make(map[string]float64, len(c.gauges))
	for name, v := range c.gauges {
		gauges[name] = v
	}
	c.mu.Unlock()

	return Snapshot{
		Component: c.component,
		Timestamp: time.Now().UTC(),
		Latency:   c.latencyStats(),
		Counters:  counters,
		Gauges:    gauges,
		Timeout:   c.timeout,
	}
}

// StartResourceSampling samples CPU% and RSS every 5s via gopsutil, and TCP
// retransmit/out-of-order/drop counters from /proc/net/netstat where
// available, storing both as gauges on this Collector. It blocks until ctx
// is cancelled.
func (c *Collector) StartResourceSampling(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleProcess()
			c.sampleTCP()
		}
	}
}
