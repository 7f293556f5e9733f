package analysis

import (
	"errors"
	"log/slog"

	"github.com/ivanzxc/go-realtime-ecg/internal/qrs"
)

// Beat is an immutable snapshot of a finished beat, safe to keep after the
// pipeline recycles the record it came from.
type Beat struct {
	Index      int64          `json:"index"` // R sample index, -1 for a cardiac arrest
	Time       float64        `json:"time_ms"`
	RR         float64        `json:"rr_ms"`
	Width      float64        `json:"width_ms"`
	QRA        float64        `json:"qra"`
	RSA        float64        `json:"rsa"`
	Area       float64        `json:"area"`
	CCT1       float64        `json:"cct1"`
	CCT2       float64        `json:"cct2"`
	Class      qrs.Class      `json:"class"`
	Arrhythmia qrs.Arrhythmia `json:"arrhythmia"`
	Virtual    bool           `json:"virtual,omitempty"`
	HeartRate  float64        `json:"hr_bpm"`
}

func snapshot(r *qrs.Record, hr float64) Beat {
	return Beat{
		Index:      r.RIndex,
		Time:       r.RTime,
		RR:         r.RR,
		Width:      r.Width,
		QRA:        r.QRA,
		RSA:        r.RSA,
		Area:       r.Area,
		CCT1:       r.CCT1,
		CCT2:       r.CCT2,
		Class:      r.Class,
		Arrhythmia: r.Arrhythmia,
		Virtual:    r.Virtual,
		HeartRate:  hr,
	}
}

// BeatSink receives every finished beat, virtual ones included.
type BeatSink interface {
	WriteBeat(Beat) error
}

// BatchSink receives each HRV batch once it closes.
type BatchSink interface {
	WriteHRV(HRV) error
}

// Monitor drives a Pipeline from a sample stream: it numbers the samples,
// hands finished beats to the sinks and acknowledges them.
type Monitor struct {
	p     *Pipeline
	log   *slog.Logger
	index int64

	beats   []BeatSink
	batches []BatchSink

	emitted uint64
}

func NewMonitor(p *Pipeline) *Monitor {
	return &Monitor{p: p, log: p.log}
}

func (m *Monitor) AddBeatSink(s BeatSink)   { m.beats = append(m.beats, s) }
func (m *Monitor) AddBatchSink(s BatchSink) { m.batches = append(m.batches, s) }

// Push processes one sample. Sink errors do not stop the pipeline; they are
// joined and returned after every sink has been called.
func (m *Monitor) Push(raw float64) error {
	m.p.Process(raw, m.index)
	m.index++

	if !m.p.Finished() {
		return nil
	}

	var errs []error
	hr := m.p.Stats().HeartRate()
	if v := m.p.Inserted(); v != nil {
		errs = m.emit(errs, snapshot(v, hr))
	}
	errs = m.emit(errs, snapshot(m.p.Current(), hr))
	m.p.MarkProcessed()

	if batch, ok := m.p.Stats().TakeBatch(); ok {
		for _, s := range m.batches {
			if err := s.WriteHRV(batch); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Monitor) emit(errs []error, b Beat) []error {
	m.emitted++
	for _, s := range m.beats {
		if err := s.WriteBeat(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// PushBatch processes samples in order and returns the joined sink errors.
func (m *Monitor) PushBatch(samples []float64) error {
	var errs []error
	for _, v := range samples {
		if err := m.Push(v); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		m.log.Warn("sink errors", slog.Int("count", len(errs)))
	}
	return errors.Join(errs...)
}

// Index is the number of samples pushed so far.
func (m *Monitor) Index() int64 { return m.index }

// Emitted counts beats handed to the sinks.
func (m *Monitor) Emitted() uint64 { return m.emitted }

func (m *Monitor) Pipeline() *Pipeline { return m.p }
