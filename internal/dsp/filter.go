package dsp

// Filter is a fixed-coefficient direct-form filter:
//
//	y[n] = (b[0]x[n] + ... + b[M]x[n-M] + a[1]y[n-1] + ... + a[N]y[n-N]) / a[0]
//
// Feedback terms are added, so the Pan-Tompkins low-pass y[n] = 2y[n-1] - y[n-2] + ...
// is written a = {1, 2, -1}.
type Filter struct {
	a, b []float64
	x, y []float64
	pos  int
}

// NewFilter panics if a is empty or a[0] is zero.
func NewFilter(a, b []float64) *Filter {
	if len(a) == 0 || a[0] == 0 {
		panic("dsp: filter needs a non-zero a[0]")
	}
	size := max(len(a), len(b))
	return &Filter{
		a: append([]float64(nil), a...),
		b: append([]float64(nil), b...),
		x: make([]float64, size),
		y: make([]float64, size),
	}
}

// Next feeds one input sample and returns the filter output.
func (f *Filter) Next(v float64) float64 {
	size := len(f.x)
	f.x[f.pos] = v

	acc := 0.0
	for k, bk := range f.b {
		if bk == 0 {
			continue
		}
		acc += bk * f.x[(f.pos-k+size)%size]
	}
	for k := 1; k < len(f.a); k++ {
		acc += f.a[k] * f.y[(f.pos-k+size)%size]
	}
	out := acc / f.a[0]

	f.y[f.pos] = out
	f.pos = (f.pos + 1) % size
	return out
}

// Order is the length of the history the filter keeps.
func (f *Filter) Order() int { return len(f.x) }

// Pan-Tompkins coefficients. These are used verbatim at every sampling rate.
var (
	lowPassA = []float64{1, 2, -1}
	lowPassB = []float64{0.03125, 0, 0, 0, 0, 0, -0.0625, 0, 0, 0, 0, 0, 0.03125}

	highPassA = []float64{1, 1}
	highPassB = func() []float64 {
		b := make([]float64, 33)
		b[0] = -0.03125
		b[16] = 1
		b[17] = -1
		b[32] = 0.03125
		return b
	}()

	derivativeA = []float64{8}
	derivativeB = []float64{2, 1, 0, -1, -2}
)

func NewLowPass() *Filter   { return NewFilter(lowPassA, lowPassB) }
func NewHighPass() *Filter  { return NewFilter(highPassA, highPassB) }
func NewDerivative() *Filter { return NewFilter(derivativeA, derivativeB) }
