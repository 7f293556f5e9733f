package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(fs)
	require.NoError(t, cfg.Validate())

	d := cfg.derive()
	require.Equal(t, 4.0, d.ts)
	require.Equal(t, 30, d.pre)
	require.Equal(t, 70, d.post)
	require.Equal(t, 101, d.snippet)
	require.Equal(t, 38, d.window)
	require.Equal(t, 500, d.history)
	require.Equal(t, 15, d.seed)
	require.Equal(t, 20, d.confirm)
	require.Equal(t, 150, d.warmup)
	require.Equal(t, 3500.0, d.arrest)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no rate", func(c *Config) { c.SamplingRate = 0 }},
		{"history too short", func(c *Config) { c.History = 200 * time.Millisecond }},
		{"snippet exceeds history", func(c *Config) { c.PostSegment = 3 * time.Second }},
		{"tiny pool", func(c *Config) { c.PoolSize = 1 }},
		{"pool too small for escape insertion", func(c *Config) { c.PoolSize = MinPoolSize - 1 }},
		{"negative lag", func(c *Config) { c.MaxLag = -1 }},
		{"empty rr range", func(c *Config) { c.MinRR = c.MaxRR }},
		{"no hrv window", func(c *Config) { c.HRVWindow = 0 }},
		{"zero integrator", func(c *Config) { c.IntegratorWindow = time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(fs)
			tt.modify(&cfg)
			require.Error(t, cfg.Validate())
			require.PanicsWithValue(t, "analysis: "+cfg.Validate().Error(), func() { New(cfg) })
		})
	}
}
