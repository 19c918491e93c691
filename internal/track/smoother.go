package track

import "gonum.org/v1/gonum/stat"

// Smoother maintains a bounded trailing window of raw RSSI samples and
// reports their arithmetic mean. A short trailing average suppresses
// single-sample noise (multipath fading, micro-movement) without the
// lag of a long exponential filter.
type Smoother struct {
	capacity int
}

// NewSmoother creates a Smoother keeping the most recent capacity
// samples. Capacities below one are raised to one.
func NewSmoother(capacity int) *Smoother {
	if capacity < 1 {
		capacity = 1
	}
	return &Smoother{capacity: capacity}
}

// Capacity returns the window length.
func (s *Smoother) Capacity() int {
	return s.capacity
}

// Update appends a new sample to the history, dropping the oldest when
// the window is full, and returns the new history and its mean. The
// input slice is not modified; the returned slice is freshly allocated.
func (s *Smoother) Update(history []int, rssi int) ([]int, float64) {
	next := make([]int, 0, s.capacity)
	start := 0
	if overflow := len(history) + 1 - s.capacity; overflow > 0 {
		start = overflow
	}
	next = append(next, history[start:]...)
	next = append(next, rssi)

	samples := make([]float64, len(next))
	for i, v := range next {
		samples[i] = float64(v)
	}
	return next, stat.Mean(samples, nil)
}
