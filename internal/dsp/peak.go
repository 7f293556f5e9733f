package dsp

// PeakDetector finds a local maximum and confirms it once no larger value has
// arrived for Window samples. Indices count insertions since the last Reset.
type PeakDetector struct {
	window int

	n       int
	prev    float64
	rising  bool
	peak    float64
	peakAt  int
	has     bool
	beaten  bool
	matched bool
}

func NewPeakDetector(window int) *PeakDetector {
	return &PeakDetector{window: window}
}

func (d *PeakDetector) Reset() {
	*d = PeakDetector{window: d.window}
}

// Add feeds v and reports whether a peak was confirmed by this sample.
// It reports true at most once between resets.
func (d *PeakDetector) Add(v float64) bool {
	idx := d.n
	d.n++
	if idx == 0 {
		d.prev = v
		return false
	}
	if d.matched {
		return false
	}

	switch {
	case v > d.prev:
		d.rising = true
	case v < d.prev && d.rising:
		d.rising = false
		if !d.has || d.prev > d.peak {
			d.peak, d.peakAt = d.prev, idx-1
			d.has, d.beaten = true, false
		}
	}
	d.prev = v

	if !d.has {
		return false
	}
	if v > d.peak {
		d.beaten = true
	}
	if !d.beaten && idx-d.peakAt >= d.window {
		d.matched = true
	}
	return d.matched
}

// Found reports whether a peak has been confirmed.
func (d *PeakDetector) Found() bool { return d.matched }

// Value and Index describe the current candidate (or confirmed) peak.
func (d *PeakDetector) Value() float64 { return d.peak }
func (d *PeakDetector) Index() int     { return d.peakAt }

// Count is the number of samples added since Reset.
func (d *PeakDetector) Count() int { return d.n }

// MinDetector tracks the smallest value added since Reset.
type MinDetector struct {
	n    int
	min  float64
	at   int
	last float64
}

func (d *MinDetector) Reset() { *d = MinDetector{} }

func (d *MinDetector) Add(v float64) {
	if d.n == 0 || v < d.min {
		d.min, d.at = v, d.n
	}
	d.last = v
	d.n++
}

// Min returns the minimum and its insertion index; ok is false when nothing
// was added.
func (d *MinDetector) Min() (value float64, index int, ok bool) {
	return d.min, d.at, d.n > 0
}

func (d *MinDetector) Count() int { return d.n }

// RisingEdge stores an integrator trace and measures the rising edge that
// leads to its maximum.
type RisingEdge struct {
	buf []float64
	n   int
}

func NewRisingEdge(capacity int) *RisingEdge {
	return &RisingEdge{buf: make([]float64, capacity)}
}

func (r *RisingEdge) Reset() { r.n = 0 }

// Add appends v; values beyond capacity are dropped.
func (r *RisingEdge) Add(v float64) {
	if r.n < len(r.buf) {
		r.buf[r.n] = v
		r.n++
	}
}

func (r *RisingEdge) Count() int { return r.n }

// Length returns the edge length in samples. It is measured from the last
// sample below 10% of the maximum to the first at or above 90%, then scaled
// to the full edge. ok is false when the trace has no such edge.
func (r *RisingEdge) Length() (samples float64, ok bool) {
	if r.n == 0 {
		return 0, false
	}
	peak, at := r.buf[0], 0
	for i := 1; i < r.n; i++ {
		if r.buf[i] > peak {
			peak, at = r.buf[i], i
		}
	}
	if peak <= 0 {
		return 0, false
	}

	lo, hi := 0.1*peak, 0.9*peak
	start := -1
	for i := at; i >= 0; i-- {
		if r.buf[i] < lo {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	end := at
	for i := start; i <= at; i++ {
		if r.buf[i] >= hi {
			end = i
			break
		}
	}
	return float64(end-start) / 0.8, true
}
