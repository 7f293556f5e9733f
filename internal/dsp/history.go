package dsp

import "math"

// History is a fixed-capacity ring of recent values that keeps min, max and
// range up to date on every Add.
type History struct {
	buf   []float64
	head  int
	count int

	min, max float64
	rng      float64
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		panic("dsp: history capacity must be positive")
	}
	return &History{buf: make([]float64, capacity)}
}

// Add appends v, evicting the oldest value once the ring is full.
func (h *History) Add(v float64) {
	evicted, full := h.buf[h.head], h.count == len(h.buf)

	h.buf[h.head] = v
	h.head = (h.head + 1) % len(h.buf)
	if !full {
		h.count++
	}

	switch {
	case h.count == 1:
		h.min, h.max = v, v
	case full && (evicted == h.min || evicted == h.max):
		h.rescan()
	default:
		h.min = math.Min(h.min, v)
		h.max = math.Max(h.max, v)
	}
	h.rng = math.Abs(h.max) - math.Abs(h.min)
}

func (h *History) rescan() {
	h.min, h.max = h.buf[0], h.buf[0]
	for _, v := range h.buf[1:h.count] {
		h.min = math.Min(h.min, v)
		h.max = math.Max(h.max, v)
	}
}

// Past returns the value k samples before the most recent one; Past(0) is the
// newest value. It returns NaN when fewer than k+1 values are stored.
func (h *History) Past(k int) float64 {
	if k < 0 || k >= h.count {
		return math.NaN()
	}
	return h.buf[(h.head-1-k+2*len(h.buf))%len(h.buf)]
}

func (h *History) Len() int  { return h.count }
func (h *History) Cap() int  { return len(h.buf) }
func (h *History) Full() bool { return h.count == len(h.buf) }

func (h *History) Min() float64 { return h.min }
func (h *History) Max() float64 { return h.max }

// Range is |max| - |min|.
func (h *History) Range() float64 { return h.rng }

// Threshold is the adaptive floor min + 0.15*range.
func (h *History) Threshold() float64 { return h.min + h.rng*0.15 }
