package signal

import "math"

// Wave is one Gaussian component of a heartbeat. Center and Width (the
// standard deviation) are in milliseconds relative to the R peak.
type Wave struct {
	Amp    float64
	Center float64
	Width  float64
}

func (w Wave) at(dt float64) float64 {
	if w.Amp == 0 || w.Width <= 0 {
		return 0
	}
	return w.Amp * gauss(dt, w.Center, w.Width)
}

// Morphology is the P-QRS-T shape of every simulated beat.
type Morphology struct {
	P, Q, R, S, T Wave
}

// DefaultMorphology is a lead-II like beat with a QRS of about 80 ms.
func DefaultMorphology() Morphology {
	return Morphology{
		P: Wave{0.08, -160, 20},
		Q: Wave{-0.12, -25, 10},
		R: Wave{1.00, 0, 10},
		S: Wave{-0.25, 30, 12},
		T: Wave{0.25, 250, 40},
	}
}

func (m Morphology) at(dt float64) float64 {
	return m.P.at(dt) + m.Q.at(dt) + m.R.at(dt) + m.S.at(dt) + m.T.at(dt)
}

// Options shape a scheduled simulation.
type Options struct {
	Offset     float64 // ms before the first R peak
	Beats      int     // beats generated before the trace goes flat; 0 repeats forever
	Morphology Morphology
	Wander     float64 // baseline wander amplitude (respiración, 0.33 Hz)
	Noise      float64 // deterministic noise amplitude
}

// ECGSim genera una forma tipo ECG (no clínica) a fs Hz. R peaks follow an
// R-R schedule that repeats.
type ECGSim struct {
	fs  float64
	rr  []float64
	opt Options

	n    int64
	beat int     // index of the nearest upcoming or current beat
	r    float64 // R time of beat, ms
}

// NewECGSim fs=250, hrBPM típico 60-120, noise ~0.0-0.05
func NewECGSim(fs, hrBPM, noise float64) *ECGSim {
	return NewScheduled(fs, []float64{60000 / hrBPM}, Options{
		Offset: 300,
		Wander: 0.05,
		Noise:  noise,
	})
}

// NewScheduled builds a simulator whose consecutive R-R intervals, in ms,
// cycle through rr.
func NewScheduled(fs float64, rr []float64, opt Options) *ECGSim {
	if len(rr) == 0 {
		panic("signal: empty R-R schedule")
	}
	if opt.Morphology == (Morphology{}) {
		opt.Morphology = DefaultMorphology()
	}
	return &ECGSim{
		fs:  fs,
		rr:  append([]float64(nil), rr...),
		opt: opt,
		r:   opt.Offset,
	}
}

// interval is the R-R interval that ends at beat i.
func (s *ECGSim) interval(i int) float64 { return s.rr[(i-1)%len(s.rr)] }

// Next devuelve el próximo sample y avanza el tiempo.
func (s *ECGSim) Next() float64 {
	t := float64(s.n) * 1000 / s.fs
	s.n++

	// move to the next beat once t is past the midpoint between R peaks
	for t > s.r+s.interval(s.beat+1)/2 {
		s.beat++
		s.r += s.interval(s.beat)
	}

	v := 0.0
	if s.live(s.beat) {
		v += s.opt.Morphology.at(t - s.r)
	}
	if s.beat > 0 && s.live(s.beat-1) {
		v += s.opt.Morphology.at(t - (s.r - s.interval(s.beat)))
	}
	if s.live(s.beat + 1) {
		v += s.opt.Morphology.at(t - (s.r + s.interval(s.beat+1)))
	}

	sec := t / 1000
	v += s.opt.Wander * math.Sin(2*math.Pi*0.33*sec)
	if s.opt.Noise != 0 {
		v += s.opt.Noise * (2*fract(math.Sin(12345.678*sec)*9876.543) - 1)
	}
	return v
}

func (s *ECGSim) live(i int) bool { return s.opt.Beats == 0 || i < s.opt.Beats }

// RTimes returns the R peak times, in ms, of the first n beats.
func (s *ECGSim) RTimes(n int) []float64 {
	out := make([]float64, n)
	r := s.opt.Offset
	for i := range out {
		if i > 0 {
			r += s.interval(i)
		}
		out[i] = r
	}
	return out
}

// Duration is the time, in ms, from the start of the trace to the last
// scheduled R peak. It is only meaningful when Beats is set.
func (s *ECGSim) Duration() float64 {
	if s.opt.Beats == 0 {
		return math.Inf(1)
	}
	return s.RTimes(s.opt.Beats)[s.opt.Beats-1]
}

// Samples returns the next n samples.
func (s *ECGSim) Samples(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Next()
	}
	return out
}

func (s *ECGSim) SamplingRate() float64 { return s.fs }

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }
