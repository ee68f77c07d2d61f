// Package telemetry records local search quality metrics: per-query events
// in a bounded ring buffer plus aggregate counters. Nothing leaves the
// process.
package telemetry

import (
	"sync"
	"time"
)

// LatencyBucket is a histogram bucket for query latency.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one recorded search call.
type QueryEvent struct {
	Engine      string // "collection" or "hybrid"
	ResultCount int
	CacheHit    bool
	Degraded    bool
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the query returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// RingBuffer is a fixed-capacity FIFO buffer of recent events.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewRingBuffer creates a buffer holding the most recent capacity items.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *RingBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *RingBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += b.capacity
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(start+i)%b.capacity])
	}
	return out
}

// Len returns the number of buffered items.
func (b *RingBuffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Snapshot is an aggregate view of recorded queries.
type Snapshot struct {
	TotalQueries   int                   `json:"total_queries"`
	ZeroResults    int                   `json:"zero_results"`
	CacheHits      int                   `json:"cache_hits"`
	Degraded       int                   `json:"degraded"`
	ByEngine       map[string]int        `json:"by_engine"`
	LatencyBuckets map[LatencyBucket]int `json:"latency_buckets"`
	AvgLatencyMS   float64               `json:"avg_latency_ms"`
}

// QueryMetrics aggregates search telemetry with a bounded recent-event
// window for inspection.
type QueryMetrics struct {
	mu     sync.Mutex
	recent *RingBuffer[QueryEvent]

	total       int
	zeroResults int
	cacheHits   int
	degraded    int
	byEngine    map[string]int
	buckets     map[LatencyBucket]int
	latencySum  time.Duration
}

// NewQueryMetrics creates a metrics recorder keeping windowSize recent
// events.
func NewQueryMetrics(windowSize int) *QueryMetrics {
	return &QueryMetrics{
		recent:   NewRingBuffer[QueryEvent](windowSize),
		byEngine: make(map[string]int),
		buckets:  make(map[LatencyBucket]int),
	}
}

// Record adds one query event.
func (m *QueryMetrics) Record(e QueryEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent.Add(e)
	m.total++
	if e.IsZeroResult() {
		m.zeroResults++
	}
	if e.CacheHit {
		m.cacheHits++
	}
	if e.Degraded {
		m.degraded++
	}
	m.byEngine[e.Engine]++
	m.buckets[LatencyToBucket(e.Latency)]++
	m.latencySum += e.Latency
}

// Snapshot returns the current aggregates.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		TotalQueries:   m.total,
		ZeroResults:    m.zeroResults,
		CacheHits:      m.cacheHits,
		Degraded:       m.degraded,
		ByEngine:       make(map[string]int, len(m.byEngine)),
		LatencyBuckets: make(map[LatencyBucket]int, len(m.buckets)),
	}
	for k, v := range m.byEngine {
		s.ByEngine[k] = v
	}
	for k, v := range m.buckets {
		s.LatencyBuckets[k] = v
	}
	if m.total > 0 {
		s.AvgLatencyMS = float64(m.latencySum.Milliseconds()) / float64(m.total)
	}
	return s
}

// Recent returns the buffered recent events, oldest first.
func (m *QueryMetrics) Recent() []QueryEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent.Items()
}
