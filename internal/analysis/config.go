package analysis

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanzxc/go-realtime-ecg/internal/dsp"
	"github.com/ivanzxc/go-realtime-ecg/internal/qrs"
)

// Config holds the detector parameters. Durations are converted to sample
// counts once, when the pipeline is built.
type Config struct {
	SamplingRate float64 // Hz

	PreSegment       time.Duration // waveform kept before R
	PostSegment      time.Duration // waveform kept after R
	IntegratorWindow time.Duration
	BaselineWindow   time.Duration
	History          time.Duration // band-pass and integrator history (maxQrsSize)
	SeedLookback     time.Duration // history replayed into the R detector on a crossing
	PeakConfirm      time.Duration // a candidate R must stay the maximum this long
	ArrestTimeout    time.Duration
	HRVWindow        time.Duration

	MinRR time.Duration // R-R intervals outside (MinRR, MaxRR) are not aggregated
	MaxRR time.Duration

	PoolSize int // rolling beat history
	MaxLag   int // correlation lag, in samples

	Logger *slog.Logger
}

// MinPoolSize keeps the previous beat alive while an escape beat is
// inserted before the current one.
const MinPoolSize = 8

// DefaultConfig returns the nominal parameters for a sampling rate.
func DefaultConfig(samplingRate float64) Config {
	return Config{
		SamplingRate:     samplingRate,
		PreSegment:       120 * time.Millisecond,
		PostSegment:      280 * time.Millisecond,
		IntegratorWindow: 150 * time.Millisecond,
		BaselineWindow:   350 * time.Millisecond,
		History:          2 * time.Second,
		SeedLookback:     60 * time.Millisecond,
		PeakConfirm:      80 * time.Millisecond,
		ArrestTimeout:    3500 * time.Millisecond,
		HRVWindow:        10 * time.Second,
		MinRR:            180 * time.Millisecond,
		MaxRR:            4000 * time.Millisecond,
		PoolSize:         MinPoolSize,
		MaxLag:           qrs.DefaultMaxLag,
	}
}

type derived struct {
	ts float64 // ms per sample

	pre      int
	post     int
	window   int
	baseline int
	history  int
	seed     int
	confirm  int
	snippet  int
	warmup   int // samples before the first crossing is accepted

	arrest float64 // ms
	hrv    float64 // ms
	minRR  float64 // ms
	maxRR  float64 // ms
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func (c Config) derive() derived {
	fs := c.SamplingRate
	d := derived{
		pre:      dsp.Samples(ms(c.PreSegment), fs),
		post:     dsp.Samples(ms(c.PostSegment), fs),
		window:   dsp.Samples(ms(c.IntegratorWindow), fs),
		baseline: max(1, dsp.Samples(ms(c.BaselineWindow), fs)),
		history:  dsp.Samples(ms(c.History), fs),
		seed:     max(2, dsp.Samples(ms(c.SeedLookback), fs)),
		confirm:  max(1, dsp.Samples(ms(c.PeakConfirm), fs)),
		arrest:   ms(c.ArrestTimeout),
		hrv:      ms(c.HRVWindow),
		minRR:    ms(c.MinRR),
		maxRR:    ms(c.MaxRR),
	}
	if fs > 0 {
		d.ts = 1000 / fs
	}
	d.snippet = d.pre + 1 + d.post
	d.warmup = dsp.TotalDelay + d.baseline + d.window
	return d
}

// Validate reports a configuration the detector cannot run with.
func (c Config) Validate() error {
	if c.SamplingRate <= 0 {
		return fmt.Errorf("sampling rate must be positive, got %v", c.SamplingRate)
	}
	d := c.derive()
	switch {
	case d.window < 1:
		return fmt.Errorf("integrator window of %v is shorter than one sample", c.IntegratorWindow)
	case d.history < d.window+dsp.TotalDelay+2:
		return fmt.Errorf("history of %d samples must exceed integrator window %d + delay %d + 2",
			d.history, d.window, dsp.TotalDelay)
	case d.snippet > d.history:
		return fmt.Errorf("beat waveform of %d samples does not fit the %d sample history", d.snippet, d.history)
	case d.seed > d.history:
		return fmt.Errorf("seed lookback of %d samples exceeds the history", d.seed)
	case c.PoolSize < MinPoolSize:
		return fmt.Errorf("pool size must be at least %d, got %d", MinPoolSize, c.PoolSize)
	case c.MaxLag < 0:
		return fmt.Errorf("negative correlation lag %d", c.MaxLag)
	case c.MinRR >= c.MaxRR:
		return fmt.Errorf("R-R range (%v, %v) is empty", c.MinRR, c.MaxRR)
	case d.hrv <= 0:
		return fmt.Errorf("HRV window must be positive, got %v", c.HRVWindow)
	}
	return nil
}

// MustValidate panics on an invalid configuration.
func (c Config) MustValidate() {
	if err := c.Validate(); err != nil {
		panic("analysis: " + err.Error())
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
