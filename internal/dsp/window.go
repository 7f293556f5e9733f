package dsp

import "math"

// window is a fixed-size circular store with a running sum. The sum is
// rebuilt from the stored values once per revolution so it cannot drift.
type window struct {
	buf   []float64
	pos   int
	count int
	sum   float64
	sumSq float64
}

func newWindow(size int) window {
	if size < 1 {
		panic("dsp: window size must be positive")
	}
	return window{buf: make([]float64, size)}
}

func (w *window) push(v float64) {
	old := w.buf[w.pos]
	w.buf[w.pos] = v
	w.pos = (w.pos + 1) % len(w.buf)

	if w.count < len(w.buf) {
		w.count++
		w.sum += v
		w.sumSq += v * v
	} else {
		w.sum += v - old
		w.sumSq += v*v - old*old
	}

	if w.pos == 0 {
		w.rebuild()
	}
}

func (w *window) rebuild() {
	w.sum, w.sumSq = 0, 0
	for i := 0; i < w.count; i++ {
		w.sum += w.buf[i]
		w.sumSq += w.buf[i] * w.buf[i]
	}
}

func (w *window) reset() {
	clear(w.buf)
	w.pos, w.count = 0, 0
	w.sum, w.sumSq = 0, 0
}

// MovingSum is the windowed integrator: the plain sum of the last Width inputs.
type MovingSum struct{ w window }

func NewMovingSum(width int) *MovingSum { return &MovingSum{w: newWindow(width)} }

func (m *MovingSum) Next(v float64) float64 {
	m.w.push(v)
	return m.w.sum
}

func (m *MovingSum) Width() int { return len(m.w.buf) }

// RunningMean averages the last Size inputs (fewer while filling up).
type RunningMean struct{ w window }

func NewRunningMean(size int) *RunningMean { return &RunningMean{w: newWindow(size)} }

func (m *RunningMean) Next(v float64) float64 {
	m.w.push(v)
	return m.Mean()
}

func (m *RunningMean) Mean() float64 {
	if m.w.count == 0 {
		return 0
	}
	return m.w.sum / float64(m.w.count)
}

func (m *RunningMean) Count() int { return m.w.count }
func (m *RunningMean) Reset()     { m.w.reset() }

// RunningStd tracks the population standard deviation of the last Size inputs.
type RunningStd struct{ w window }

func NewRunningStd(size int) *RunningStd { return &RunningStd{w: newWindow(size)} }

func (s *RunningStd) Next(v float64) float64 {
	s.w.push(v)
	return s.Std()
}

func (s *RunningStd) Mean() float64 {
	if s.w.count == 0 {
		return 0
	}
	return s.w.sum / float64(s.w.count)
}

func (s *RunningStd) Std() float64 {
	if s.w.count < 2 {
		return 0
	}
	n := float64(s.w.count)
	mean := s.w.sum / n
	v := s.w.sumSq/n - mean*mean
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// RMS is the root mean square of the window.
func (s *RunningStd) RMS() float64 {
	if s.w.count == 0 {
		return 0
	}
	return math.Sqrt(s.w.sumSq / float64(s.w.count))
}

func (s *RunningStd) Count() int { return s.w.count }
func (s *RunningStd) Reset()     { s.w.reset() }
