package analysis

import (
	"log/slog"
	"math"

	"github.com/ivanzxc/go-realtime-ecg/internal/dsp"
	"github.com/ivanzxc/go-realtime-ecg/internal/qrs"
)

// Pipeline is a Pan-Tompkins QRS detector with template classification.
//
// Process must be called from one goroutine, once per sample. After it
// returns, a beat whose State is StateFinished is ready to be read; the
// caller acknowledges it with MarkProcessed before the next beat can start.
// All buffers are allocated by New.
type Pipeline struct {
	cfg Config
	d   derived
	log *slog.Logger

	bank       *dsp.Bank
	band       *dsp.History
	integ      *dsp.History
	threshMean *dsp.RunningMean

	rPeak *dsp.PeakDetector
	qMin  dsp.MinDetector
	sMin  dsp.MinDetector
	edge  *dsp.RisingEdge

	pool  *qrs.Pool
	cls   *qrs.Classifier
	stats *Stats

	index     int64
	seen      int
	armed     bool // crossings are accepted once the cascade has settled
	threshold float64
	level     float64 // running integrator peak of accepted beats
	crossedAt int64
	seedBase  int64

	lastBeat float64 // R time of the last located beat, ms; <0 before the first
	arrested bool
	inserted *qrs.Record
	rejected uint64
}

// New builds a pipeline. It panics if cfg cannot describe a working detector.
func New(cfg Config) *Pipeline {
	cfg.MustValidate()
	d := cfg.derive()
	log := cfg.logger()

	return &Pipeline{
		cfg:        cfg,
		d:          d,
		log:        log,
		bank:       dsp.NewBank(d.window, d.baseline),
		band:       dsp.NewHistory(d.history),
		integ:      dsp.NewHistory(d.history),
		threshMean: dsp.NewRunningMean(d.history),
		rPeak:      dsp.NewPeakDetector(d.confirm),
		edge:       dsp.NewRisingEdge(d.snippet),
		pool:       qrs.NewPool(cfg.PoolSize, d.snippet),
		cls:        qrs.NewClassifier(d.snippet, cfg.MaxLag),
		stats:      newStats(d, log),
		index:      -1,
		lastBeat:   -1,
	}
}

// Process feeds one raw sample with its logical sample index and returns the
// integrator output. No beat starts during the first warm-up samples, nor
// before the integrator has been under the threshold once after them.
func (p *Pipeline) Process(raw float64, index int64) float64 {
	p.index = index
	p.seen++
	y := p.bank.Next(raw)
	band := p.bank.BandPassed()
	p.band.Add(band)
	p.integ.Add(y)

	p.threshold = max(p.threshMean.Next(y), p.integ.Threshold(), 0.15*p.level)
	if !p.armed {
		p.armed = p.seen > p.d.warmup && y <= p.threshold
		return y
	}

	cur := p.pool.Current()
	if cur.State == qrs.StateProcessed && y <= p.threshold {
		cur = p.pool.Advance()
		p.inserted = nil
	}
	if cur.State == qrs.StateInvalid && p.checkArrest(cur) {
		return y
	}

	switch cur.State {
	case qrs.StateInvalid:
		if y > p.threshold {
			p.cross(cur)
		}
	case qrs.StateThresholdCrossed:
		p.searchR(cur, band, y)
	case qrs.StateRFound:
		p.collect(cur, band, y)
	}
	return y
}

// cross starts a beat and replays the recent band-pass history into the R
// detector, since the integrator lags the band-passed signal.
func (p *Pipeline) cross(cur *qrs.Record) {
	cur.State = qrs.StateThresholdCrossed
	p.crossedAt = p.index
	p.rPeak.Reset()

	seed := min(p.d.seed, p.band.Len())
	p.seedBase = p.index - int64(seed-1)
	for k := seed - 1; k >= 0; k-- {
		if p.rPeak.Add(p.band.Past(k)) {
			p.locateR(cur)
			return
		}
	}
}

func (p *Pipeline) searchR(cur *qrs.Record, band, y float64) {
	if p.rPeak.Add(band) {
		if y > p.threshold {
			p.locateR(cur)
			return
		}
		p.rPeak.Reset()
		p.seedBase = p.index + 1
	}

	waited := int(p.index - p.crossedAt)
	switch {
	case waited > p.d.pre+p.d.confirm && p.cls.Ready():
		p.abort(cur)
	case waited > p.d.pre+p.d.post:
		cur.Reset()
	}
}

// abort closes a crossing that never produced an R peak as an artifact.
func (p *Pipeline) abort(cur *qrs.Record) {
	cur.Class = qrs.ClassAberrant
	cur.Arrhythmia = qrs.ArrhythmiaArtifact
	cur.RTime = p.now()
	cur.State = qrs.StateFinished
	p.log.Debug("run-on segment closed as artifact", slog.Int64("index", p.index))
}

// locateR copies the waveform around the confirmed R peak out of the
// history, finds Q and validates the amplitude against the recent range.
func (p *Pipeline) locateR(cur *qrs.Record) {
	rAbs := p.seedBase + int64(p.rPeak.Index())
	back := int(p.index - rAbs)
	if back+p.d.pre >= p.band.Len() {
		cur.Reset()
		return
	}

	cur.N = 0
	for k := back + p.d.pre; k >= 0; k-- {
		cur.Append(p.band.Past(k))
	}
	cur.RPos = p.d.pre

	p.qMin.Reset()
	for _, v := range cur.Wave[:p.d.pre] {
		p.qMin.Add(v)
	}
	qAmp, qAt, ok := p.qMin.Min()
	if !ok {
		qAmp, qAt = cur.Wave[0], 0
	}

	rAmp := cur.Wave[p.d.pre]
	if rAmp-qAmp < 0.1*p.band.Range() {
		p.rejected++
		p.log.Debug("R rejected", slog.Int64("index", rAbs), slog.Float64("qr", rAmp-qAmp))
		cur.Reset()
		return
	}

	cur.RIndex = rAbs
	cur.RAmp = rAmp
	cur.RTime = float64(rAbs-dsp.TotalDelay) * p.d.ts
	cur.QIndex = rAbs - int64(p.d.pre) + int64(qAt)
	cur.QAmp = qAmp

	p.sMin.Reset()
	for _, v := range cur.Wave[p.d.pre+1 : cur.N] {
		p.sMin.Add(v)
	}
	p.edge.Reset()
	for k := back + p.d.pre; k >= 0; k-- {
		p.edge.Add(p.integ.Past(k))
	}

	cur.State = qrs.StateRFound
	if cur.N >= p.d.snippet {
		p.finish(cur)
	}
}

func (p *Pipeline) collect(cur *qrs.Record, band, y float64) {
	cur.Append(band)
	p.sMin.Add(band)
	p.edge.Add(y)
	if cur.N >= p.d.snippet {
		p.finish(cur)
	}
}

func (p *Pipeline) finish(cur *qrs.Record) {
	sAmp, sAt, ok := p.sMin.Min()
	if !ok {
		sAmp, sAt = cur.Wave[cur.N-1], cur.N-2-p.d.pre
	}
	cur.SAmp = sAmp
	cur.SIndex = cur.RIndex + 1 + int64(sAt)

	if n, ok := p.edge.Length(); ok && n > 0 {
		cur.Width = n * p.d.ts
	} else {
		cur.Width = float64(cur.SIndex-cur.QIndex) * p.d.ts * 0.85
	}

	prev := p.pool.Previous()
	cur.State = qrs.StateFinished
	p.lastBeat, p.arrested = cur.RTime, false
	p.trackLevel()

	if p.cls.Learning() {
		p.cls.Classify(cur, prev)
		if p.cls.Learn(cur) {
			t1, t2 := p.cls.Templates()
			p.log.Debug("templates learned",
				slog.Float64("area1", t1.Area), slog.Float64("area2", t2.Area))
		}
	} else {
		p.cls.Classify(cur, prev)
		if cur.Arrhythmia == qrs.ArrhythmiaEscape && prev != nil {
			cur = p.insertEscape(cur, prev)
		}
		p.cls.Adapt(cur)
	}
	p.stats.Add(cur)

	p.log.Debug("beat",
		slog.Int64("r", cur.RIndex),
		slog.Float64("rr", cur.RR),
		slog.Float64("width", cur.Width),
		slog.String("class", cur.Class.String()),
		slog.String("arrhythmia", cur.Arrhythmia.String()),
	)
}

// trackLevel follows the integrator peak of accepted beats. It keeps the
// crossing threshold above floating-point residue during long pauses,
// when the history no longer holds a beat.
func (p *Pipeline) trackLevel() {
	peak := 0.0
	for k := 0; k < p.d.snippet && k < p.integ.Len(); k++ {
		peak = math.Max(peak, p.integ.Past(k))
	}
	if p.level == 0 {
		p.level = peak
		return
	}
	p.level = 0.875*p.level + 0.125*peak
}

// insertEscape places a virtual beat at the midpoint between prev and cur,
// cur.RTime - RR/2, and returns cur's new slot.
func (p *Pipeline) insertEscape(cur, prev *qrs.Record) *qrs.Record {
	half := cur.RR / 2
	shift := int64(math.Round(half / p.d.ts))

	v := p.pool.InsertBefore()
	cur = p.pool.Current()

	v.Virtual = true
	v.RTime = cur.RTime - half
	v.RIndex = cur.RIndex - shift
	v.QIndex = cur.QIndex - shift
	v.SIndex = cur.SIndex - shift
	v.Arrhythmia = qrs.ArrhythmiaNone
	p.cls.Classify(v, prev)
	if v.Class == qrs.ClassNormal {
		v.Arrhythmia = qrs.ArrhythmiaEscape
	}
	v.State = qrs.StateProcessed
	p.inserted = v
	return cur
}

// checkArrest synthesizes one CARDIAC_ARREST beat when no beat has been
// located for longer than the arrest timeout. It fires once per pause.
func (p *Pipeline) checkArrest(cur *qrs.Record) bool {
	if p.lastBeat < 0 || p.arrested {
		return false
	}
	now := p.now()
	if now-p.lastBeat <= p.d.arrest {
		return false
	}

	cur.Reset()
	cur.State = qrs.StateFinished
	cur.Class = qrs.ClassUnknown
	cur.Arrhythmia = qrs.ArrhythmiaCardiacArrest
	cur.Virtual = true
	cur.RTime = now
	cur.RR = now - p.lastBeat

	p.arrested = true
	p.level *= 0.5
	p.stats.noteArrest()
	p.log.Debug("cardiac arrest", slog.Float64("silence_ms", cur.RR))
	return true
}

func (p *Pipeline) now() float64 { return float64(p.index-dsp.TotalDelay) * p.d.ts }

// MarkProcessed acknowledges the finished beat. The slot is recycled once
// the integrator falls back under the threshold.
func (p *Pipeline) MarkProcessed() {
	if cur := p.pool.Current(); cur.State == qrs.StateFinished {
		cur.State = qrs.StateProcessed
	}
}

// Current is the beat being segmented, or the finished beat awaiting
// acknowledgement.
func (p *Pipeline) Current() *qrs.Record { return p.pool.Current() }

// Previous is the last located beat before Current, or nil.
func (p *Pipeline) Previous() *qrs.Record { return p.pool.Previous() }

func (p *Pipeline) State() qrs.State { return p.pool.Current().State }

func (p *Pipeline) Finished() bool { return p.State() == qrs.StateFinished }

// Inserted is the virtual escape beat placed before Current, if any.
func (p *Pipeline) Inserted() *qrs.Record { return p.inserted }

func (p *Pipeline) Stats() *Stats { return p.stats }

// Templates returns the classifier's reference beats.
func (p *Pipeline) Templates() (*qrs.Record, *qrs.Record) { return p.cls.Templates() }

func (p *Pipeline) Learning() bool { return p.cls.Learning() }

func (p *Pipeline) Threshold() float64 { return p.threshold }

// Output returns the latest value of a filter stage.
func (p *Pipeline) Output(s dsp.Stage) float64 { return p.bank.Output(s) }

// Rejected counts R candidates that failed amplitude validation.
func (p *Pipeline) Rejected() uint64 { return p.rejected }

func (p *Pipeline) SamplingRate() float64 { return p.cfg.SamplingRate }
