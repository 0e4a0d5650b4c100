// Package telemetry records query pattern metrics for ranking
// diagnostics. All data stays in memory and local logs; nothing is
// reported externally.
package telemetry

import (
	"sync"
	"time"
)

// LatencyBucket is a latency histogram bucket.
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

// Degradation classifies why a request fell back to a weaker signal.
type Degradation string

const (
	DegradationProviderDown Degradation = "provider_down"
	DegradationTimeout      Degradation = "timeout"
	DegradationThinResults  Degradation = "thin_results"
)

// QueryEvent is one recorded ranking request.
type QueryEvent struct {
	Query       string
	Mode        string
	ResultCount int
	Latency     time.Duration
	Degraded    Degradation // empty when the full pipeline ran
	Timestamp   time.Time
}

// Ring is a fixed-capacity FIFO buffer; when full, the oldest entry is
// evicted.
type Ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends an item, evicting the oldest when full.
func (r *Ring[T]) Add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Items returns the buffered items oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		return []T{}
	}
	out := make([]T, r.size)
	if r.size < r.capacity {
		copy(out, r.items[:r.size])
	} else {
		copy(out, r.items[r.head:])
		copy(out[r.capacity-r.head:], r.items[:r.head])
	}
	return out
}

// Size returns the current item count.
func (r *Ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Snapshot is an immutable view of the collected metrics.
type Snapshot struct {
	TotalQueries    int64                   `json:"total_queries"`
	ModeCounts      map[string]int64        `json:"mode_counts"`
	Latency         map[LatencyBucket]int64 `json:"latency_distribution"`
	Degradations    map[Degradation]int64   `json:"degradations"`
	ZeroResultCount int64                   `json:"zero_result_count"`
	ZeroResultLast  []string                `json:"zero_result_queries"`
	Since           time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Metrics accumulates query events. Safe for concurrent use.
type Metrics struct {
	mu           sync.RWMutex
	total        int64
	modes        map[string]int64
	latency      map[LatencyBucket]int64
	degradations map[Degradation]int64
	zeroCount    int64
	zeroQueries  *Ring[string]
	since        time.Time
}

// NewMetrics creates an empty collector. zeroBuffer bounds how many
// recent zero-result queries are retained.
func NewMetrics(zeroBuffer int) *Metrics {
	return &Metrics{
		modes:        make(map[string]int64),
		latency:      make(map[LatencyBucket]int64),
		degradations: make(map[Degradation]int64),
		zeroQueries:  NewRing[string](zeroBuffer),
		since:        time.Now().UTC(),
	}
}

// Record adds one query event.
func (m *Metrics) Record(e QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.modes[e.Mode]++
	m.latency[LatencyToBucket(e.Latency)]++
	if e.Degraded != "" {
		m.degradations[e.Degraded]++
	}
	if e.ResultCount == 0 {
		m.zeroCount++
		m.zeroQueries.Add(e.Query)
	}
}

// Snapshot returns a copy of the current state.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		TotalQueries:    m.total,
		ModeCounts:      make(map[string]int64, len(m.modes)),
		Latency:         make(map[LatencyBucket]int64, len(m.latency)),
		Degradations:    make(map[Degradation]int64, len(m.degradations)),
		ZeroResultCount: m.zeroCount,
		ZeroResultLast:  m.zeroQueries.Items(),
		Since:           m.since,
	}
	for k, v := range m.modes {
		snap.ModeCounts[k] = v
	}
	for k, v := range m.latency {
		snap.Latency[k] = v
	}
	for k, v := range m.degradations {
		snap.Degradations[k] = v
	}
	return snap
}
