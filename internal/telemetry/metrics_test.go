package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_FIFOOrder(t *testing.T) {
	b := NewRingBuffer[int](3)
	for i := 1; i <= 3; i++ {
		b.Add(i)
	}
	assert.Equal(t, []int{1, 2, 3}, b.Items())
}

func TestRingBuffer_EvictsOldest(t *testing.T) {
	b := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{3, 4, 5}, b.Items())
}

func TestRingBuffer_Empty(t *testing.T) {
	b := NewRingBuffer[string](4)
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Items())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{25 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
	}
}

func TestQueryMetrics_Aggregates(t *testing.T) {
	m := NewQueryMetrics(10)

	m.Record(QueryEvent{Engine: "hybrid", ResultCount: 5, Latency: 8 * time.Millisecond})
	m.Record(QueryEvent{Engine: "hybrid", ResultCount: 0, Latency: 30 * time.Millisecond})
	m.Record(QueryEvent{Engine: "collection", ResultCount: 2, CacheHit: true, Latency: time.Millisecond})
	m.Record(QueryEvent{Engine: "collection", ResultCount: 1, Degraded: true, Latency: 600 * time.Millisecond})

	s := m.Snapshot()
	assert.Equal(t, 4, s.TotalQueries)
	assert.Equal(t, 1, s.ZeroResults)
	assert.Equal(t, 1, s.CacheHits)
	assert.Equal(t, 1, s.Degraded)
	assert.Equal(t, 2, s.ByEngine["hybrid"])
	assert.Equal(t, 2, s.ByEngine["collection"])
	assert.Equal(t, 2, s.LatencyBuckets[BucketP10])
	assert.Equal(t, 1, s.LatencyBuckets[BucketP50])
	assert.Equal(t, 1, s.LatencyBuckets[BucketP1000])
	assert.Greater(t, s.AvgLatencyMS, 0.0)
}

func TestQueryMetrics_RecentWindow(t *testing.T) {
	m := NewQueryMetrics(2)

	m.Record(QueryEvent{Engine: "hybrid", ResultCount: 1})
	m.Record(QueryEvent{Engine: "hybrid", ResultCount: 2})
	m.Record(QueryEvent{Engine: "hybrid", ResultCount: 3})

	recent := m.Recent()
	assert.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].ResultCount)
	assert.Equal(t, 3, recent[1].ResultCount)

	// Aggregates keep counting past the window.
	assert.Equal(t, 3, m.Snapshot().TotalQueries)
}

func TestQueryMetrics_TimestampDefaulted(t *testing.T) {
	m := NewQueryMetrics(5)
	m.Record(QueryEvent{Engine: "hybrid", ResultCount: 1})
	assert.False(t, m.Recent()[0].Timestamp.IsZero())
}
