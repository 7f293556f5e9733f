package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ivanzxc/go-realtime-ecg/internal/dsp"
	"github.com/ivanzxc/go-realtime-ecg/internal/qrs"
	"github.com/ivanzxc/go-realtime-ecg/internal/signal"
)

const fs = 250.0

type beatLog struct {
	beats []Beat
	err   error
}

func (l *beatLog) WriteBeat(b Beat) error {
	l.beats = append(l.beats, b)
	return l.err
}

func (l *beatLog) real() []Beat {
	var out []Beat
	for _, b := range l.beats {
		if !b.Virtual {
			out = append(out, b)
		}
	}
	return out
}

type batchLog struct{ batches []HRV }

func (l *batchLog) WriteHRV(h HRV) error {
	l.batches = append(l.batches, h)
	return nil
}

// clean beats without a P wave, after a second of flat signal
func newSim(rr []float64, beats int) *signal.ECGSim {
	m := signal.DefaultMorphology()
	m.P = signal.Wave{}
	return signal.NewScheduled(fs, rr, signal.Options{Offset: 1000, Beats: beats, Morphology: m})
}

type harness struct {
	sim     *signal.ECGSim
	mon     *Monitor
	beats   *beatLog
	batches *batchLog
}

func newHarness(rr []float64, beats int) *harness {
	h := &harness{
		sim:     newSim(rr, beats),
		mon:     NewMonitor(New(DefaultConfig(fs))),
		beats:   &beatLog{},
		batches: &batchLog{},
	}
	h.mon.AddBeatSink(h.beats)
	h.mon.AddBatchSink(h.batches)
	return h
}

// run feeds the whole schedule plus tail milliseconds of trailing signal.
func (h *harness) run(t *testing.T, tail float64) {
	t.Helper()
	n := int((h.sim.Duration() + tail) * fs / 1000)
	for i := 0; i < n; i++ {
		require.NoError(t, h.mon.Push(h.sim.Next()))
	}
}

func TestPipelineScheduledBeats(t *testing.T) {
	rr := []float64{800, 780, 820, 750, 900, 760, 790, 810, 770, 805}
	h := newHarness(rr, len(rr))
	h.run(t, 1000)

	p := h.mon.Pipeline()
	beats := h.beats.real()
	require.Len(t, beats, len(rr))

	want := h.sim.RTimes(len(rr))
	for i, b := range beats {
		require.InDelta(t, want[i], b.Time, 20, "beat %d", i)
		require.GreaterOrEqual(t, b.Index, int64(0))
		require.Greater(t, b.Width, 45.0)
		require.Less(t, b.Width, 130.0)
		if i > 0 {
			require.InDelta(t, rr[i-1], b.RR, 8, "beat %d", i)
		}
		if i < qrs.LearnCount {
			require.Equal(t, qrs.ClassUnknown, b.Class, "beat %d", i)
			continue
		}
		require.Equal(t, qrs.ClassNormal, b.Class, "beat %d", i)
		require.Equal(t, qrs.ArrhythmiaNone, b.Arrhythmia, "beat %d", i)
	}

	require.False(t, p.Learning())
	t1, t2 := p.Templates()
	require.Equal(t, qrs.ClassNormal, t1.Class)
	require.Equal(t, qrs.ClassNormal, t2.Class)

	counts := p.Stats().Counts()
	require.Equal(t, len(rr)-qrs.LearnCount, counts.Total)
	require.Equal(t, counts.Total, counts.Normal)
	require.Zero(t, counts.Arrests)

	hr := 60000 / ((rr[6] + rr[7] + rr[8]) / 3)
	require.InEpsilon(t, hr, p.Stats().HeartRate(), 0.03)
	require.Equal(t, qrs.StateInvalid, p.State())
	require.Equal(t, uint64(len(rr)), h.mon.Emitted())
}

func TestPipelineSteadyRate(t *testing.T) {
	h := newHarness([]float64{1000}, 25)
	h.run(t, 500)

	stats := h.mon.Pipeline().Stats()
	require.Len(t, h.beats.real(), 25)
	require.InDelta(t, 60, stats.HeartRate(), 1)
	require.InDelta(t, 1000, stats.MeanRR(), 4)
	require.InDelta(t, 1000, stats.RR(), 4)

	// learning ends at beat 6; ten intervals later the first window closes
	require.Len(t, h.batches.batches, 1)
	b := h.batches.batches[0]
	require.Equal(t, 10, b.Intervals)
	require.InDelta(t, 1000, b.MeanRR, 1)
	require.Less(t, b.SDNN, 5.0)
	require.Zero(t, b.NN50)
	require.InDelta(t, 10000, b.End-b.Start, 8)

	_, fresh := stats.TakeBatch()
	require.False(t, fresh)
}

func TestPipelineCardiacArrest(t *testing.T) {
	h := newHarness([]float64{800}, 10)
	h.run(t, 5000)

	var arrests []Beat
	for _, b := range h.beats.beats {
		if b.Arrhythmia == qrs.ArrhythmiaCardiacArrest {
			arrests = append(arrests, b)
		}
	}
	require.Len(t, arrests, 1)

	a := arrests[0]
	require.True(t, a.Virtual)
	require.Equal(t, int64(-1), a.Index)
	require.Equal(t, qrs.ClassUnknown, a.Class)
	require.Greater(t, a.RR, 3500.0)
	require.Less(t, a.RR, 3600.0)

	last := h.beats.beats[len(h.beats.beats)-2]
	require.InDelta(t, last.Time+a.RR, a.Time, 1e-9)
	require.Equal(t, 1, h.mon.Pipeline().Stats().Counts().Arrests)
}

func TestPipelineArrestOncePerPause(t *testing.T) {
	rr := []float64{800, 800, 800, 800, 800, 800, 800, 800, 800, 5000}
	h := newHarness(rr, 21)
	h.run(t, 1000)

	n := 0
	for _, b := range h.beats.beats {
		if b.Arrhythmia == qrs.ArrhythmiaCardiacArrest {
			n++
		}
	}
	require.Equal(t, 2, n)
	require.Len(t, h.beats.real(), 21)
}

func TestPipelineNoArrestBeforeFirstBeat(t *testing.T) {
	p := New(DefaultConfig(fs))
	for i := int64(0); i < 10*int64(fs); i++ {
		p.Process(0, i)
		require.Equal(t, qrs.StateInvalid, p.State())
	}
	require.Zero(t, p.Stats().Counts().Arrests)
}

func TestPipelineEscapeInsertsVirtualBeat(t *testing.T) {
	rr := []float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 550, 1000, 1000}
	h := newHarness(rr, 12)
	h.run(t, 1000)

	var virtual, escape Beat
	found := false
	for i, b := range h.beats.beats {
		if b.Virtual && b.Arrhythmia == qrs.ArrhythmiaEscape {
			require.Less(t, i+1, len(h.beats.beats))
			virtual, escape, found = b, h.beats.beats[i+1], true
			break
		}
	}
	require.True(t, found)
	require.False(t, escape.Virtual)
	require.Equal(t, qrs.ArrhythmiaEscape, escape.Arrhythmia)
	require.InDelta(t, 550, escape.RR, 8)
	require.InDelta(t, escape.Time-escape.RR/2, virtual.Time, 1e-9)
	require.Less(t, virtual.Index, escape.Index)

	// virtual beats never reach the statistics
	counts := h.mon.Pipeline().Stats().Counts()
	require.Equal(t, 12-qrs.LearnCount, counts.Total)
}

func TestPipelineOutputs(t *testing.T) {
	p := New(DefaultConfig(fs))
	sim := newSim([]float64{800}, 3)
	for i := int64(0); i < 2000; i++ {
		y := p.Process(sim.Next(), i)
		require.Equal(t, y, p.Output(dsp.StageIntegrated))
		require.GreaterOrEqual(t, y, -1e-9)
	}
	require.Equal(t, fs, p.SamplingRate())
	require.Greater(t, p.Threshold(), 0.0)
}

// nearest returns the distance from t to the closest time in times.
func nearest(times []float64, t float64) float64 {
	d := math.Inf(1)
	for _, r := range times {
		d = math.Min(d, math.Abs(r-t))
	}
	return d
}

// The producer's default trace starts its first beat 300 ms in, while the
// filters are still settling, and carries a P wave, wander and noise.
func TestPipelineProducerSignal(t *testing.T) {
	sim := signal.NewECGSim(fs, 72, 0.02)
	want := sim.RTimes(80)
	mon := NewMonitor(New(DefaultConfig(fs)))
	beats := &beatLog{}
	mon.AddBeatSink(beats)

	require.NoError(t, mon.PushBatch(sim.Samples(60*int(fs))))

	located := beats.real()
	require.GreaterOrEqual(t, len(located), 69)
	require.LessOrEqual(t, len(located), 72)
	for i, b := range located {
		require.Less(t, nearest(want, b.Time), 20.0, "beat %d at %.0f ms", i, b.Time)
	}

	artifacts := 0
	for _, b := range located[qrs.LearnCount:] {
		if b.Arrhythmia == qrs.ArrhythmiaArtifact {
			artifacts++
		}
	}
	require.LessOrEqual(t, artifacts, 1)
	for _, b := range located[len(located)-20:] {
		require.Equal(t, qrs.ClassNormal, b.Class)
		require.Equal(t, qrs.ArrhythmiaNone, b.Arrhythmia)
	}
}

func TestPipelineJoinsMidStream(t *testing.T) {
	for skip := 0; skip < 840; skip += 42 {
		sim := signal.NewECGSim(fs, 72, 0.02)
		sim.Samples(skip)
		want := sim.RTimes(60)
		for i := range want {
			want[i] -= float64(skip) * 1000 / fs
		}

		mon := NewMonitor(New(DefaultConfig(fs)))
		beats := &beatLog{}
		mon.AddBeatSink(beats)
		require.NoError(t, mon.PushBatch(sim.Samples(30*int(fs))))

		located := beats.real()
		require.Greater(t, len(located), 30, "skip %d", skip)
		require.Less(t, nearest(want, located[0].Time), 20.0, "skip %d", skip)
		for _, b := range located[len(located)-10:] {
			require.Equal(t, qrs.ClassNormal, b.Class, "skip %d", skip)
			require.Equal(t, qrs.ArrhythmiaNone, b.Arrhythmia, "skip %d", skip)
		}
	}
}

func TestPipelineIgnoresWarmUp(t *testing.T) {
	// a beat right at the start falls inside the warm-up and is skipped
	sim := signal.NewScheduled(fs, []float64{1000}, signal.Options{Offset: 200, Beats: 3})
	mon := NewMonitor(New(DefaultConfig(fs)))
	beats := &beatLog{}
	mon.AddBeatSink(beats)
	require.NoError(t, mon.PushBatch(sim.Samples(int((sim.Duration()+1000)*fs/1000))))

	require.Len(t, beats.beats, 2)
	require.InDelta(t, 1200, beats.beats[0].Time, 20)
	require.InDelta(t, 1000, beats.beats[1].RR, 8)
}

// runOn opens a segment whose band-passed input keeps rising, so no R peak
// is ever confirmed.
func runOn(p *Pipeline) *qrs.Record {
	cur := p.pool.Current()
	cur.State = qrs.StateThresholdCrossed
	p.crossedAt = p.index
	p.rPeak.Reset()
	for i := 0; i <= p.d.pre+p.d.post+1 && cur.State == qrs.StateThresholdCrossed; i++ {
		p.index++
		p.searchR(cur, float64(i), math.Inf(1))
	}
	return cur
}

func TestPipelineRunOnSegment(t *testing.T) {
	t.Run("before templates", func(t *testing.T) {
		p := New(DefaultConfig(fs))
		cur := runOn(p)
		require.Equal(t, qrs.StateInvalid, cur.State)
		require.False(t, cur.HasR())
	})

	t.Run("with templates", func(t *testing.T) {
		h := newHarness([]float64{800}, qrs.LearnCount+2)
		h.run(t, 1000)
		p := h.mon.Pipeline()
		require.False(t, p.Learning())
		require.Equal(t, qrs.StateInvalid, p.State())

		start := p.index
		cur := runOn(p)
		require.Equal(t, qrs.StateFinished, cur.State)
		require.Equal(t, qrs.ClassAberrant, cur.Class)
		require.Equal(t, qrs.ArrhythmiaArtifact, cur.Arrhythmia)
		require.Equal(t, int64(p.d.pre+p.d.confirm+1), p.index-start)
		require.InDelta(t, float64(p.index-dsp.TotalDelay)*1000/fs, cur.RTime, 1e-9)
	})
}

// seedBand fills the band-pass history with a large spike long ago and a
// three-sample bump of height amp centred 30 samples back, then runs the R
// detector over the last 40 samples.
func seedBand(p *Pipeline, amp float64) *qrs.Record {
	vals := make([]float64, 200)
	vals[199-150] = 5
	vals[199-31], vals[199-30], vals[199-29] = amp/2, amp, amp/2
	for _, v := range vals {
		p.band.Add(v)
		p.integ.Add(0)
	}
	p.index = 199

	cur := p.pool.Current()
	cur.State = qrs.StateThresholdCrossed
	p.rPeak.Reset()
	p.seedBase = p.index - 39
	for k := 39; k >= 0; k-- {
		if p.rPeak.Add(p.band.Past(k)) {
			p.locateR(cur)
			break
		}
	}
	return cur
}

func TestPipelineRejectsSmallR(t *testing.T) {
	p := New(DefaultConfig(fs))
	cur := seedBand(p, 0.2)
	require.Equal(t, uint64(1), p.Rejected())
	require.Equal(t, qrs.StateInvalid, cur.State)
	require.False(t, cur.HasR())

	p = New(DefaultConfig(fs))
	cur = seedBand(p, 1)
	require.Zero(t, p.Rejected())
	require.Equal(t, qrs.StateRFound, cur.State)
	require.Equal(t, int64(169), cur.RIndex)
	require.Equal(t, 1.0, cur.RAmp)
	require.Equal(t, 0.0, cur.QAmp)
	require.Equal(t, 1.0, cur.Wave[p.d.pre])
}

var errSink = errors.New("sink down")

func TestMonitorSinkErrors(t *testing.T) {
	sim := newSim([]float64{800}, 4)
	mon := NewMonitor(New(DefaultConfig(fs)))
	good := &beatLog{}
	bad := &beatLog{err: errSink}
	mon.AddBeatSink(bad)
	mon.AddBeatSink(good)

	batch := sim.Samples(int((sim.Duration() + 500) * fs / 1000))
	err := mon.PushBatch(batch)
	require.ErrorIs(t, err, errSink)

	require.Len(t, good.beats, 4)
	require.Len(t, bad.beats, 4)
	require.Equal(t, int64(len(batch)), mon.Index())
}
