package writer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ivanzxc/go-realtime-ecg/internal/analysis"
)

// BeatWriter persists finished beats and HRV batches.
type BeatWriter interface {
	analysis.BeatSink
	analysis.BatchSink
	Close() error
}

var (
	beatHeader = []string{
		"time_ms", "index", "rr_ms", "width_ms", "class", "arrhythmia",
		"virtual", "cct1", "cct2", "area", "hr_bpm",
	}
	hrvHeader = []string{
		"start_ms", "end_ms", "intervals", "mean_rr_ms", "sdnn_ms", "rmssd_ms", "sdsd_ms",
		"nn50", "nn20", "pnn50", "pnn20",
		"total", "normal", "aberrant", "pvc", "apc", "abnormal", "arrests",
	}
)

// CSV appends beats to beats.csv and HRV batches to hrv.csv in a directory.
// Headers are written when a file is new.
type CSV struct {
	beatsFile *os.File
	hrvFile   *os.File

	beats *csv.Writer
	hrv   *csv.Writer
}

var _ BeatWriter = (*CSV)(nil)

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	w := &CSV{}
	var err error
	if w.beatsFile, w.beats, err = open(filepath.Join(dir, "beats.csv"), beatHeader); err != nil {
		return nil, err
	}
	if w.hrvFile, w.hrv, err = open(filepath.Join(dir, "hrv.csv"), hrvHeader); err != nil {
		w.beatsFile.Close()
		return nil, err
	}
	return w, nil
}

func open(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := flush(w, header); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("write %s header: %w", path, err)
		}
	}
	return f, w, nil
}

func flush(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
func fi(v int) string     { return strconv.Itoa(v) }

func (w *CSV) WriteBeat(b analysis.Beat) error {
	err := flush(w.beats, []string{
		ff(b.Time),
		strconv.FormatInt(b.Index, 10),
		ff(b.RR),
		ff(b.Width),
		b.Class.String(),
		b.Arrhythmia.String(),
		strconv.FormatBool(b.Virtual),
		ff(b.CCT1),
		ff(b.CCT2),
		ff(b.Area),
		ff(b.HeartRate),
	})
	if err != nil {
		return fmt.Errorf("write beat: %w", err)
	}
	return nil
}

func (w *CSV) WriteHRV(h analysis.HRV) error {
	err := flush(w.hrv, []string{
		ff(h.Start), ff(h.End), fi(h.Intervals),
		ff(h.MeanRR), ff(h.SDNN), ff(h.RMSSD), ff(h.SDSD),
		fi(h.NN50), fi(h.NN20), ff(h.PNN50), ff(h.PNN20),
		fi(h.Total), fi(h.Normal), fi(h.Aberrant), fi(h.PVC), fi(h.APC),
		fi(h.Abnormal), fi(h.Arrests),
	})
	if err != nil {
		return fmt.Errorf("write hrv: %w", err)
	}
	return nil
}

func (w *CSV) Close() error {
	w.beats.Flush()
	w.hrv.Flush()
	return errors.Join(w.beats.Error(), w.hrv.Error(), w.beatsFile.Close(), w.hrvFile.Close())
}
