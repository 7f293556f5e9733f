package qrs

import "math"

// MaxCorr is the largest normalized cross-correlation between the zero-mean
// waveforms of a and b, with b shifted by up to maxLag samples either way
// around R alignment. It is 0 when either waveform has no variance.
func MaxCorr(a, b *Record, maxLag int) float64 {
	x, y := a.Samples(), b.Samples()
	best, found := math.Inf(-1), false

	for lag := -maxLag; lag <= maxLag; lag++ {
		off := b.RPos - a.RPos + lag
		var sxy, sxx, syy float64
		for i, xv := range x {
			j := i + off
			if j < 0 || j >= len(y) {
				continue
			}
			dx, dy := xv-a.Mean, y[j]-b.Mean
			sxy += dx * dy
			sxx += dx * dx
			syy += dy * dy
		}
		if sxx == 0 || syy == 0 {
			continue
		}
		if r := sxy / math.Sqrt(sxx*syy); r > best {
			best, found = r, true
		}
	}
	if !found {
		return 0
	}
	return math.Max(-1, math.Min(1, best))
}

// ARDiff is the relative QRS-T area difference to a template area.
func ARDiff(area, templateArea float64) float64 {
	if templateArea == 0 {
		return 0
	}
	return math.Abs(area-templateArea) / templateArea
}
