package dsp

import "math"

// TotalDelay is the group delay, in samples, of the low-pass, high-pass and
// derivative cascade. The coefficients are fixed, so it does not depend on
// the sampling rate.
const TotalDelay = 24

// Stage names one output of the filter cascade.
type Stage int

const (
	StageRaw Stage = iota
	StageBaseline
	StageLowPass
	StageBandPass
	StageDerivative
	StageSquared
	StageIntegrated
	numStages
)

// Samples converts a duration in milliseconds to a whole number of samples.
func Samples(ms, samplingRate float64) int {
	return int(math.Round(ms * samplingRate / 1000))
}

// IntegratorWidth is the moving-sum width (150 ms) at the given rate.
func IntegratorWidth(samplingRate float64) int {
	return Samples(150, samplingRate)
}

// Bank runs one sample at a time through baseline removal, band-pass,
// derivative, squaring and the windowed integrator.
type Bank struct {
	baseline *RunningMean
	low      *Filter
	high     *Filter
	deriv    *Filter
	integ    *MovingSum

	y [numStages]float64
}

func NewBank(integratorWidth, baselineWindow int) *Bank {
	return &Bank{
		baseline: NewRunningMean(baselineWindow),
		low:      NewLowPass(),
		high:     NewHighPass(),
		deriv:    NewDerivative(),
		integ:    NewMovingSum(integratorWidth),
	}
}

// Next filters raw and returns the integrator output.
func (b *Bank) Next(raw float64) float64 {
	b.y[StageRaw] = raw
	b.y[StageBaseline] = raw - b.baseline.Next(raw)
	b.y[StageLowPass] = b.low.Next(b.y[StageBaseline])
	b.y[StageBandPass] = b.high.Next(b.y[StageLowPass])
	b.y[StageDerivative] = b.deriv.Next(b.y[StageBandPass])
	b.y[StageSquared] = b.y[StageDerivative] * b.y[StageDerivative]
	b.y[StageIntegrated] = b.integ.Next(b.y[StageSquared])
	return b.y[StageIntegrated]
}

// Output returns the most recent value of stage s.
func (b *Bank) Output(s Stage) float64 { return b.y[s] }

func (b *Bank) BandPassed() float64 { return b.y[StageBandPass] }
func (b *Bank) Integrated() float64 { return b.y[StageIntegrated] }

func (b *Bank) IntegratorWidth() int { return b.integ.Width() }
