// Package monitor drives the scan pipeline: a scheduler runs the
// scan→parse→resolve→track cycle on a fixed cadence and a slower
// staleness reaper, and per-cycle statistics are kept for the
// analytics endpoints.
package monitor

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// CycleStats captures one scheduler cycle.
type CycleStats struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Devices       int           `json:"devices"`
	RejectedLines int           `json:"rejected_lines"`
	Evicted       int           `json:"evicted"`
	Failed        bool          `json:"failed"`
	Error         string        `json:"error,omitempty"`
}

// Summary aggregates the retained cycle history.
type Summary struct {
	Cycles          int     `json:"cycles"`
	FailedCycles    int     `json:"failed_cycles"`
	MeanCycleMillis float64 `json:"mean_cycle_ms"`
	MeanDevices     float64 `json:"mean_devices"`
	P50Devices      float64 `json:"p50_devices"`
	P95Devices      float64 `json:"p95_devices"`
	TotalRejected   int     `json:"total_rejected_lines"`
	TotalEvicted    int     `json:"total_evicted"`
}

const defaultAnalyticsCapacity = 500

// Analytics retains a bounded ring of recent cycle stats. All methods
// are safe for concurrent use; the scheduler writes while the API
// serves reads.
type Analytics struct {
	mu       sync.RWMutex
	ring     []CycleStats
	next     int
	full     bool
	capacity int
}

// NewAnalytics creates an Analytics ring holding capacity cycles
// (<= 0 selects the default).
func NewAnalytics(capacity int) *Analytics {
	if capacity <= 0 {
		capacity = defaultAnalyticsCapacity
	}
	return &Analytics{
		ring:     make([]CycleStats, capacity),
		capacity: capacity,
	}
}

// Record appends one cycle, evicting the oldest once full.
func (a *Analytics) Record(cs CycleStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring[a.next] = cs
	a.next++
	if a.next == a.capacity {
		a.next = 0
		a.full = true
	}
}

// Recent returns up to n cycles, oldest first. n <= 0 returns all
// retained cycles.
func (a *Analytics) Recent(n int) []CycleStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []CycleStats
	if a.full {
		out = append(out, a.ring[a.next:]...)
		out = append(out, a.ring[:a.next]...)
	} else {
		out = append(out, a.ring[:a.next]...)
	}

	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Summary computes aggregates over the retained history.
func (a *Analytics) Summary() Summary {
	cycles := a.Recent(0)

	s := Summary{Cycles: len(cycles)}
	if len(cycles) == 0 {
		return s
	}

	durations := make([]float64, 0, len(cycles))
	devices := make([]float64, 0, len(cycles))
	for _, c := range cycles {
		if c.Failed {
			s.FailedCycles++
		}
		s.TotalRejected += c.RejectedLines
		s.TotalEvicted += c.Evicted
		durations = append(durations, float64(c.Duration.Milliseconds()))
		devices = append(devices, float64(c.Devices))
	}

	s.MeanCycleMillis = stat.Mean(durations, nil)
	s.MeanDevices = stat.Mean(devices, nil)

	sort.Float64s(devices)
	s.P50Devices = stat.Quantile(0.5, stat.Empirical, devices, nil)
	s.P95Devices = stat.Quantile(0.95, stat.Empirical, devices, nil)
	return s
}
