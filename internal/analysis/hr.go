package analysis

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ivanzxc/go-realtime-ecg/internal/dsp"
	"github.com/ivanzxc/go-realtime-ecg/internal/qrs"
)

// HRV is one batch of heart-rate-variability statistics. Times are beat
// times in milliseconds. Beat counts and the NN20/NN50 tallies are
// cumulative since template learning ended.
type HRV struct {
	Start float64 `json:"start_ms"`
	End   float64 `json:"end_ms"`

	Intervals int     `json:"intervals"`
	MeanRR    float64 `json:"mean_rr_ms"`
	SDNN      float64 `json:"sdnn_ms"`
	RMSSD     float64 `json:"rmssd_ms"`
	SDSD      float64 `json:"sdsd_ms"`

	NN50  int     `json:"nn50"`
	NN20  int     `json:"nn20"`
	PNN50 float64 `json:"pnn50"`
	PNN20 float64 `json:"pnn20"`

	Counts
}

// Counts tallies classified beats.
type Counts struct {
	Total    int `json:"total"`
	Normal   int `json:"normal"`
	Aberrant int `json:"aberrant"`
	PVC      int `json:"pvc"`
	APC      int `json:"apc"`
	Abnormal int `json:"abnormal"`
	Arrests  int `json:"arrests"`
}

// Stats aggregates classified beats into rolling heart-rate figures and
// periodic HRV batches. Its buffers are sized once from the window length
// and the shortest accepted R-R interval.
type Stats struct {
	log *slog.Logger

	minRR, maxRR float64
	window       float64

	rr3    *dsp.RunningMean
	area   *dsp.RunningMean
	rrMean *dsp.RunningMean
	rrStd  *dsp.RunningStd
	diffs  *dsp.RunningStd

	lastRR    float64
	heartRate float64
	prevRR    float64

	start   float64
	started bool
	rr      []float64
	nrr     int
	succ    []float64
	nsucc   int

	nn50, nn20 int
	counts     Counts

	batch   HRV
	flushed bool
	fresh   bool
}

func newStats(d derived, log *slog.Logger) *Stats {
	capacity := int(math.Ceil(d.hrv/d.minRR)) + 2
	return &Stats{
		log:    log,
		minRR:  d.minRR,
		maxRR:  d.maxRR,
		window: d.hrv,
		rr3:    dsp.NewRunningMean(3),
		area:   dsp.NewRunningMean(3),
		rrMean: dsp.NewRunningMean(16),
		rrStd:  dsp.NewRunningStd(16),
		diffs:  dsp.NewRunningStd(16),
		rr:     make([]float64, capacity),
		succ:   make([]float64, capacity),
	}
}

// Add folds a finished beat into the statistics. Beats that were not
// classified, virtual beats and R-R intervals outside the accepted range
// leave every accumulator untouched; Add reports whether beat was used.
func (s *Stats) Add(beat *qrs.Record) bool {
	if !beat.Class.Classified() || beat.Virtual {
		return false
	}
	rr := beat.RR
	if rr <= s.minRR || rr >= s.maxRR {
		return false
	}

	if s.started && beat.RTime-s.start >= s.window {
		s.flush(beat.RTime)
	}
	if !s.started {
		s.start, s.started = beat.RTime, true
	}

	s.lastRR = rr
	s.heartRate = 60000 / s.rr3.Next(rr)
	s.area.Next(beat.Area)
	s.rrMean.Next(rr)
	s.rrStd.Next(rr)

	if s.nrr < len(s.rr) {
		s.rr[s.nrr] = rr
		s.nrr++
	}
	if s.prevRR > 0 {
		d := math.Abs(rr - s.prevRR)
		s.diffs.Next(d)
		if s.nsucc < len(s.succ) {
			s.succ[s.nsucc] = d
			s.nsucc++
		}
		if d >= 50 {
			s.nn50++
		}
		if d >= 20 {
			s.nn20++
		}
	}
	s.prevRR = rr

	s.count(beat)
	return true
}

func (s *Stats) count(beat *qrs.Record) {
	c := &s.counts
	c.Total++
	switch beat.Class {
	case qrs.ClassNormal:
		if beat.Arrhythmia == qrs.ArrhythmiaNone {
			c.Normal++
		}
	case qrs.ClassAberrant, qrs.ClassPVCAberrant, qrs.ClassAPCAberrant:
		c.Aberrant++
	case qrs.ClassPVC:
		c.PVC++
	case qrs.ClassAPC:
		c.APC++
	}
	c.Abnormal = c.Total - c.Normal
}

// noteArrest records a synthesized cardiac-arrest beat.
func (s *Stats) noteArrest() { s.counts.Arrests++ }

func (s *Stats) flush(now float64) {
	rr := s.rr[:s.nrr]
	d := s.succ[:s.nsucc]

	b := HRV{
		Start:     s.start,
		End:       now,
		Intervals: len(rr),
		NN50:      s.nn50,
		NN20:      s.nn20,
		Counts:    s.counts,
	}
	if len(rr) > 0 {
		b.MeanRR = stat.Mean(rr, nil)
	}
	if len(rr) > 1 {
		b.SDNN = stat.StdDev(rr, nil)
	}
	if len(d) > 0 {
		b.RMSSD = math.Sqrt(floats.Dot(d, d) / float64(len(d)))
	}
	if len(d) > 1 {
		b.SDSD = stat.StdDev(d, nil)
	}
	if s.counts.Total > 0 {
		b.PNN50 = 100 * float64(s.nn50) / float64(s.counts.Total)
		b.PNN20 = 100 * float64(s.nn20) / float64(s.counts.Total)
	}

	s.batch, s.flushed, s.fresh = b, true, true
	s.nrr, s.nsucc = 0, 0
	s.start = now

	s.log.Debug("hrv batch",
		slog.Int("intervals", b.Intervals),
		slog.Float64("sdnn", b.SDNN),
		slog.Float64("rmssd", b.RMSSD),
		slog.Float64("pnn50", b.PNN50),
	)
}

// HeartRate is 60000 over the mean of the last three intervals, in bpm.
func (s *Stats) HeartRate() float64 { return s.heartRate }

// RR is the most recent accepted R-R interval in ms.
func (s *Stats) RR() float64 { return s.lastRR }

// Area is the rolling mean QRS-T area of the last three beats.
func (s *Stats) Area() float64 { return s.area.Mean() }

// MeanRR and StdRR cover the last 16 accepted intervals.
func (s *Stats) MeanRR() float64 { return s.rrMean.Mean() }
func (s *Stats) StdRR() float64  { return s.rrStd.Std() }

// RMSSD is the rolling RMS of the last 16 successive differences.
func (s *Stats) RMSSD() float64 { return s.diffs.RMS() }

func (s *Stats) Counts() Counts { return s.counts }

// Batch returns the most recent HRV batch; ok is false before the first flush.
func (s *Stats) Batch() (HRV, bool) { return s.batch, s.flushed }

// TakeBatch returns a batch once, right after it was flushed.
func (s *Stats) TakeBatch() (HRV, bool) {
	if !s.fresh {
		return HRV{}, false
	}
	s.fresh = false
	return s.batch, true
}

// Pending is the number of intervals waiting for the next flush.
func (s *Stats) Pending() int { return s.nrr }
