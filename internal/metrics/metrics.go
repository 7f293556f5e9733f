package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ivanzxc/go-realtime-ecg/internal/analysis"
)

const metricNamespace = "ecg"

// Collector exports detector output to Prometheus. It implements
// analysis.BeatSink and analysis.BatchSink.
type Collector struct {
	beats     *prometheus.CounterVec
	heartRate prometheus.Gauge
	rr        prometheus.Gauge
	width     prometheus.Histogram

	sdnn    prometheus.Gauge
	rmssd   prometheus.Gauge
	pnn50   prometheus.Gauge
	batches prometheus.Counter

	samples      prometheus.Counter
	rejected     prometheus.Counter
	decodeErrors prometheus.Counter
}

// New creates a collector using the default Prometheus registerer.
func New() *Collector {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a collector on a given registerer. Metrics
// already registered there are shared.
func NewWithRegisterer(reg prometheus.Registerer) *Collector {
	return &Collector{
		beats: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "beats_total",
				Help:      "Finished beats by class and arrhythmia",
			},
			[]string{"class", "arrhythmia"},
		)),
		heartRate: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "heart_rate_bpm",
			Help:      "Mean of the last three instantaneous heart rates",
		})),
		rr: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "rr_interval_ms",
			Help:      "Most recent R-R interval",
		})),
		width: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "qrs_width_ms",
			Help:      "Estimated QRS width of located beats",
			Buckets:   prometheus.LinearBuckets(40, 15, 8),
		})),
		sdnn: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "hrv_sdnn_ms",
			Help:      "SDNN of the last HRV window",
		})),
		rmssd: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "hrv_rmssd_ms",
			Help:      "RMSSD of the last HRV window",
		})),
		pnn50: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "hrv_pnn50_percent",
			Help:      "Cumulative pNN50",
		})),
		batches: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "hrv_batches_total",
			Help:      "HRV windows closed",
		})),
		samples: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "samples_total",
			Help:      "ECG samples processed",
		})),
		rejected: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "r_rejected_total",
			Help:      "R candidates that failed amplitude validation",
		})),
		decodeErrors: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "decode_errors_total",
			Help:      "Malformed sample batches",
		})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		return are.ExistingCollector.(C)
	}
	return c
}

func (c *Collector) WriteBeat(b analysis.Beat) error {
	c.beats.WithLabelValues(b.Class.String(), b.Arrhythmia.String()).Inc()
	if b.Virtual {
		return nil
	}
	if b.Index >= 0 && b.Width > 0 {
		c.width.Observe(b.Width)
	}
	if b.RR > 0 {
		c.rr.Set(b.RR)
	}
	if b.HeartRate > 0 {
		c.heartRate.Set(b.HeartRate)
	}
	return nil
}

func (c *Collector) WriteHRV(h analysis.HRV) error {
	c.sdnn.Set(h.SDNN)
	c.rmssd.Set(h.RMSSD)
	c.pnn50.Set(h.PNN50)
	c.batches.Inc()
	return nil
}

func (c *Collector) AddSamples(n int)     { c.samples.Add(float64(n)) }
func (c *Collector) AddRejected(n uint64) { c.rejected.Add(float64(n)) }
func (c *Collector) DecodeError()         { c.decodeErrors.Inc() }
