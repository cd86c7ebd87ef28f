// Package metrics provides in-memory request statistics for a compression job.
package metrics

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"time"
)

// EndpointMetrics holds aggregated metrics for one endpoint.
type EndpointMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Sizes in bytes of the compressed output of successful calls
	TotalOutputBytes int64
}

// EndpointSnapshot provides computed stats for one endpoint.
type EndpointSnapshot struct {
	Endpoint       string
	Count          int64
	Failures       int64
	TotalTimeMs    int64
	AvgTimeMs      float64
	MinTimeMs      int64
	MaxTimeMs      int64
	AvgOutputBytes float64
}

// Snapshot represents job statistics at a point in time.
type Snapshot struct {
	ElapsedSeconds float64
	Requests       int64
	Failures       int64
	Endpoints      []EndpointSnapshot // Sorted by endpoint
}

// Collector aggregates request statistics. All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	endpoints map[string]*EndpointMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		endpoints: make(map[string]*EndpointMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an endpoint.
// Caller must hold write lock.
func (c *Collector) getOrCreate(endpoint string) *EndpointMetrics {
	m, ok := c.endpoints[endpoint]
	if !ok {
		m = &EndpointMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.endpoints[endpoint] = m
	}
	return m
}

// RecordRequest records the outcome of one remote call.
func (c *Collector) RecordRequest(endpoint string, duration time.Duration, outputBytes int, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(endpoint)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	if failed {
		m.Failures++
		return
	}
	m.TotalOutputBytes += int64(outputBytes)
}

func snapshotEndpoint(endpoint string, m *EndpointMetrics) EndpointSnapshot {
	snap := EndpointSnapshot{
		Endpoint:    endpoint,
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
	if m.Count > 0 {
		snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
		snap.MinTimeMs = m.MinTime.Milliseconds()
	}
	if ok := m.Count - m.Failures; ok > 0 {
		snap.AvgOutputBytes = float64(m.TotalOutputBytes) / float64(ok)
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		ElapsedSeconds: time.Since(c.startTime).Seconds(),
		Endpoints:      make([]EndpointSnapshot, 0, len(c.endpoints)),
	}
	for endpoint, m := range c.endpoints {
		snap.Requests += m.Count
		snap.Failures += m.Failures
		snap.Endpoints = append(snap.Endpoints, snapshotEndpoint(endpoint, m))
	}
	slices.SortFunc(snap.Endpoints, func(a, b EndpointSnapshot) int {
		return cmp.Compare(a.Endpoint, b.Endpoint)
	})
	return snap
}
