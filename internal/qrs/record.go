package qrs

import "math"

// Record is one detected beat. Records live in a Pool and are reused; Wave
// keeps its length for the lifetime of the record and N counts the samples
// written into it.
type Record struct {
	State State

	// Absolute sample indices in the band-passed stream; -1 when unset.
	RIndex int64
	QIndex int64
	SIndex int64

	RAmp float64
	QAmp float64
	SAmp float64

	RTime float64 // ms, filter group delay removed
	Width float64 // ms
	RR    float64 // ms to the previous R, 0 for the first beat

	QRA  float64 // R - Q amplitude
	RSA  float64 // R - S amplitude
	Area float64 // QRS-T area: sum of |wave|
	Mean float64

	CCT1 float64
	CCT2 float64
	ARD1 float64
	ARD2 float64

	Class      Class
	Arrhythmia Arrhythmia
	Virtual    bool

	Wave []float64
	N    int
	RPos int // offset of R inside Wave
}

func NewRecord(capacity int) *Record {
	r := &Record{Wave: make([]float64, capacity)}
	r.Reset()
	return r
}

// Reset clears the record in place, keeping the Wave allocation.
func (r *Record) Reset() {
	wave := r.Wave
	clear(wave)
	*r = Record{
		RIndex: -1,
		QIndex: -1,
		SIndex: -1,
		Wave:   wave,
	}
}

// Copy overwrites r with src by value.
func (r *Record) Copy(src *Record) {
	wave := r.Wave
	if len(wave) != len(src.Wave) {
		wave = make([]float64, len(src.Wave))
	}
	copy(wave, src.Wave)
	*r = *src
	r.Wave = wave
}

// HasR reports whether an R peak was located.
func (r *Record) HasR() bool { return r.RIndex >= 0 }

// Append adds a waveform sample and reports false once the wave is full.
func (r *Record) Append(v float64) bool {
	if r.N >= len(r.Wave) {
		return false
	}
	r.Wave[r.N] = v
	r.N++
	return true
}

// Samples is the filled part of the waveform.
func (r *Record) Samples() []float64 { return r.Wave[:r.N] }

// Measure derives the amplitude, area and interval features. prev may be nil.
func (r *Record) Measure(prev *Record) {
	r.RR = 0
	if prev != nil && prev.HasR() {
		r.RR = r.RTime - prev.RTime
	}
	r.QRA = r.RAmp - r.QAmp
	r.RSA = r.RAmp - r.SAmp

	area, sum := 0.0, 0.0
	for _, v := range r.Samples() {
		area += math.Abs(v)
		sum += v
	}
	r.Area = area
	r.Mean = 0
	if r.N > 0 {
		r.Mean = sum / float64(r.N)
	}
}
