package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log, err := New(&buf, "warn")
	require.NoError(t, err)
	require.Same(t, log, slog.Default())

	log.Info("hidden")
	log.Warn("shown", slog.Int("beats", 3))
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "beats")

	_, err = New(&buf, "loud")
	require.Error(t, err)
}
