package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a colored text logger at the named level (debug, info, warn,
// error) and installs it as the slog default.
func New(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	log := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      l,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(log)
	return log, nil
}
