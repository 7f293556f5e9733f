package qrs

import "math"

const (
	// LearnCount is the number of beats collected before templates exist.
	LearnCount = 6

	DefaultMaxLag = 8

	wideQRS   = 130.0 // ms
	narrowQRS = 45.0  // ms
)

// Classifier holds the two morphology templates and classifies finished
// beats against them.
type Classifier struct {
	maxLag int

	t1, t2 *Record

	learning bool
	learned  int
	learn    [LearnCount]*Record
}

func NewClassifier(waveCapacity, maxLag int) *Classifier {
	c := &Classifier{
		maxLag:   maxLag,
		t1:       NewRecord(waveCapacity),
		t2:       NewRecord(waveCapacity),
		learning: true,
	}
	for i := range c.learn {
		c.learn[i] = NewRecord(waveCapacity)
	}
	return c
}

// Ready reports whether both templates hold NORMAL reference beats.
func (c *Classifier) Ready() bool {
	return c.t1.Class == ClassNormal && c.t2.Class == ClassNormal
}

func (c *Classifier) Learning() bool { return c.learning }

// Templates returns the current reference beats. They must not be modified.
func (c *Classifier) Templates() (*Record, *Record) { return c.t1, c.t2 }

// Learn adds a beat to the calibration set and establishes the templates once
// LearnCount beats have been seen. It reports whether this call did so.
func (c *Classifier) Learn(beat *Record) bool {
	if !c.learning || !beat.HasR() {
		return false
	}
	c.learn[c.learned].Copy(beat)
	c.learned++
	if c.learned < LearnCount {
		return false
	}

	a, b := c.pickTemplates()
	c.t1.Copy(c.learn[a])
	c.t2.Copy(c.learn[b])
	c.t1.Class, c.t1.Arrhythmia = ClassNormal, ArrhythmiaNone
	c.t2.Class, c.t2.Arrhythmia = ClassNormal, ArrhythmiaNone
	c.learning = false
	c.learned = 0
	return true
}

// pickTemplates takes the first pair of neighbours, by increasing area among
// the beats below the mean area, that correlate above 0.9. Without such a
// pair it falls back to the two smallest areas.
func (c *Classifier) pickTemplates() (int, int) {
	mean := 0.0
	for _, r := range c.learn {
		mean += r.Area
	}
	mean /= LearnCount

	var below [LearnCount]int
	n := 0
	for i, r := range c.learn {
		if r.Area < mean {
			below[n] = i
			n++
		}
	}
	c.sortByArea(below[:n])
	for k := 0; k+1 < n; k++ {
		if MaxCorr(c.learn[below[k]], c.learn[below[k+1]], c.maxLag) > 0.9 {
			return below[k], below[k+1]
		}
	}

	var all [LearnCount]int
	for i := range all {
		all[i] = i
	}
	c.sortByArea(all[:])
	return all[0], all[1]
}

func (c *Classifier) sortByArea(idx []int) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && c.learn[idx[j]].Area < c.learn[idx[j-1]].Area; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}

// Classify measures beat against prev and the templates and stores the
// morphology class and arrhythmia flag on it. prev may be nil.
func (c *Classifier) Classify(beat, prev *Record) Class {
	if !beat.HasR() {
		beat.Class = ClassInvalid
		return beat.Class
	}
	beat.Measure(prev)
	if !c.Ready() {
		beat.Class = ClassUnknown
		return beat.Class
	}

	beat.CCT1 = MaxCorr(beat, c.t1, c.maxLag)
	beat.CCT2 = MaxCorr(beat, c.t2, c.maxLag)
	beat.ARD1 = ARDiff(beat.Area, c.t1.Area)
	beat.ARD2 = ARDiff(beat.Area, c.t2.Area)

	class := ClassNormal
	switch {
	case beat.Width > wideQRS:
		class = ClassBBBlock
	case beat.Width < narrowQRS:
		class = ClassPVC
	}
	arr := ArrhythmiaNone

	lo, hi := math.Min(beat.CCT1, beat.CCT2), math.Max(beat.CCT1, beat.CCT2)
	ardMin, ardMax := math.Min(beat.ARD1, beat.ARD2), math.Max(beat.ARD1, beat.ARD2)
	switch {
	case lo < 0.2:
		arr = ArrhythmiaArtifact
	case lo < 0.3:
		class = ClassAberrant
	case lo < 0.6:
		class = ClassPVCAberrant
	case hi < 0.9:
		class = ClassPVC
	case hi < 0.98:
		switch {
		case ardMax > 0.7:
			class = ClassAberrant
		case ardMax > 0.5:
			class = ClassPVCAberrant
		case ardMin > 0.2:
			class = ClassPVC
		}
	}

	rr := beat.RR
	var prevRR, prevWidth float64
	if prev != nil {
		prevRR, prevWidth = prev.RR, prev.Width
	}

	if (prevRR > 0 && rr >= 1.5*prevRR && rr > 800) || rr > 1700 {
		arr = ArrhythmiaAVBlock
		if class == ClassNormal {
			class = ClassAPC
		}
	}
	if prevRR > 0 && rr > 1 && rr < 460 {
		if rr > 0.92*prevRR {
			if hi < 0.96 {
				class = ClassAPC
			}
		} else {
			arr = ArrhythmiaFusion
			if rr < 400 {
				if hi < 0.6 {
					class = ClassAPCAberrant
				} else {
					class = ClassAPC
				}
			}
		}
	}
	if prevRR > 800 && rr < 0.6*prevRR {
		arr = ArrhythmiaEscape
	}
	if class == ClassNormal && prevWidth > 0 &&
		beat.Width < 0.6*prevWidth && beat.Width > 10 && ardMin > 0.1 {
		arr = ArrhythmiaPremature
	}

	beat.Class, beat.Arrhythmia = class, arr
	return class
}

// Adapt replaces the template that correlated worse with beat, if beat is a
// located NORMAL beat, whatever its arrhythmia flag.
func (c *Classifier) Adapt(beat *Record) bool {
	if !c.Ready() || beat.Class != ClassNormal || beat.Virtual {
		return false
	}
	if beat.CCT1 < beat.CCT2 {
		c.t1.Copy(beat)
	} else {
		c.t2.Copy(beat)
	}
	return true
}
