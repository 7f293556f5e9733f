package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ivanzxc/go-realtime-ecg/internal/analysis"
	"github.com/ivanzxc/go-realtime-ecg/internal/qrs"
)

func TestCollectorBeats(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithRegisterer(reg)

	normal := analysis.Beat{Index: 300, RR: 800, Width: 80, HeartRate: 75, Class: qrs.ClassNormal}
	require.NoError(t, c.WriteBeat(normal))
	require.NoError(t, c.WriteBeat(normal))
	require.NoError(t, c.WriteBeat(analysis.Beat{
		Index: -1, RR: 3600, Class: qrs.ClassUnknown,
		Arrhythmia: qrs.ArrhythmiaCardiacArrest, Virtual: true,
	}))

	require.Equal(t, 2.0, testutil.ToFloat64(c.beats.WithLabelValues("NORMAL", "NONE")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.beats.WithLabelValues("UNKNOWN", "CARDIAC_ARREST")))
	require.Equal(t, 75.0, testutil.ToFloat64(c.heartRate))
	// the arrest beat does not move the interval gauge
	require.Equal(t, 800.0, testutil.ToFloat64(c.rr))
	require.Equal(t, 2, testutil.CollectAndCount(c.beats))
}

func TestCollectorHRV(t *testing.T) {
	c := NewWithRegisterer(prometheus.NewRegistry())
	require.NoError(t, c.WriteHRV(analysis.HRV{SDNN: 42, RMSSD: 31, PNN50: 12.5}))

	require.Equal(t, 42.0, testutil.ToFloat64(c.sdnn))
	require.Equal(t, 31.0, testutil.ToFloat64(c.rmssd))
	require.Equal(t, 12.5, testutil.ToFloat64(c.pnn50))
	require.Equal(t, 1.0, testutil.ToFloat64(c.batches))
}

func TestCollectorCounters(t *testing.T) {
	c := NewWithRegisterer(prometheus.NewRegistry())
	c.AddSamples(250)
	c.AddSamples(10)
	c.AddRejected(2)
	c.DecodeError()

	require.Equal(t, 260.0, testutil.ToFloat64(c.samples))
	require.Equal(t, 2.0, testutil.ToFloat64(c.rejected))
	require.Equal(t, 1.0, testutil.ToFloat64(c.decodeErrors))
}

func TestCollectorSharesRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewWithRegisterer(reg)
	b := NewWithRegisterer(reg)

	a.AddSamples(5)
	b.AddSamples(7)
	require.Equal(t, 12.0, testutil.ToFloat64(a.samples))
	require.Same(t, a.samples, b.samples)
}
