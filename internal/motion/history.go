package motion

import "sync"

// DefaultHistoryCapacity covers roughly one second of samples at typical
// mobile sensor rates (50-100 Hz).
const DefaultHistoryCapacity = 64

// MotionHistory is a fixed-capacity ring buffer of recent motion samples.
// It is the single piece of state shared between the sensor-callback context
// and the frame-processing context, so every operation holds the mutex for a
// short, bounded critical section and accessors return copies — callers never
// see interior storage.
type MotionHistory struct {
	mu      sync.Mutex
	samples []MotionSample
	head    int // next write position
	size    int
}

// NewMotionHistory creates a history buffer with the given capacity.
// Non-positive capacities fall back to DefaultHistoryCapacity.
func NewMotionHistory(capacity int) *MotionHistory {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &MotionHistory{
		samples: make([]MotionSample, capacity),
	}
}

// Push appends a sample, evicting the oldest when the buffer is full.
func (h *MotionHistory) Push(s MotionSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples[h.head] = s
	h.head = (h.head + 1) % len(h.samples)
	if h.size < len(h.samples) {
		h.size++
	}
}

// Recent returns up to the last n samples in chronological order (oldest
// first). Fewer samples are returned when the buffer holds fewer; nil when
// empty. The returned slice is a copy.
func (h *MotionHistory) Recent(n int) []MotionSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]MotionSample, n)
	for i := 0; i < n; i++ {
		idx := (h.head - n + i + len(h.samples)) % len(h.samples)
		out[i] = h.samples[idx]
	}
	return out
}

// Len returns the current number of stored samples.
func (h *MotionHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Capacity returns the fixed buffer capacity.
func (h *MotionHistory) Capacity() int {
	return len(h.samples)
}

// Clear discards all stored samples.
func (h *MotionHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.head = 0
	h.size = 0
}
