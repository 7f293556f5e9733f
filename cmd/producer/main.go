package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	osSignal "os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/ivanzxc/go-realtime-ecg/internal/logging"
	"github.com/ivanzxc/go-realtime-ecg/internal/sensor"
	"github.com/ivanzxc/go-realtime-ecg/internal/signal"
	"github.com/ivanzxc/go-realtime-ecg/internal/stream"
)

func main() {

	var (
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS url")
		subject  = flag.String("subject", stream.SubjectWave, "subject")
		frames   = flag.Bool("frames", false, "publish JSON ECG+accelerometer frames instead of float32 batches")
		fs       = flag.Int("fs", 250, "sampling rate Hz")
		hr       = flag.Float64("hr", 72, "heart rate bpm")
		rr       = flag.String("rr", "", "comma separated R-R schedule in ms, overrides -hr")
		noise    = flag.Float64("noise", 0.02, "noise amplitude")
		batch    = flag.Int("batch", 10, "samples per message")
		logLevel = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	log, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		slog.Error("bad flags", slog.Any("err", err))
		os.Exit(2)
	}

	sim := signal.NewECGSim(float64(*fs), *hr, *noise)
	if *rr != "" {
		schedule, err := parseSchedule(*rr)
		if err != nil {
			log.Error("bad -rr", slog.Any("err", err))
			os.Exit(2)
		}
		sim = signal.NewScheduled(float64(*fs), schedule, signal.Options{Offset: 300, Wander: 0.05, Noise: *noise})
	}

	nc, err := stream.Connect(*natsURL, "ecg-producer")
	if err != nil {
		log.Error("nats", slog.Any("err", err))
		os.Exit(1)
	}
	defer nc.Drain()

	if *frames && *subject == stream.SubjectWave {
		*subject = stream.SubjectFrames
	}

	ctx, cancel := osSignal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	period := time.Second / time.Duration(*fs)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buffer := make([]float64, 0, *batch)
	out := make([]byte, 0, 4*cap(buffer))
	var n int64

	log.Info("producer running", slog.String("subject", *subject), slog.Int("fs", *fs))
	for {
		select {
		case <-ctx.Done():
			log.Info("producer: stopping", slog.Int64("samples", n))
			return

		case <-ticker.C:
			buffer = append(buffer, sim.Next())
			n++

			if len(buffer) >= *batch {
				var err error
				if *frames {
					out, err = encodeFrames(out[:0], buffer, n-int64(len(buffer)), *fs)
				} else {
					out = stream.EncodeBatch(out[:0], buffer)
				}
				if err == nil {
					err = nc.Publish(*subject, out)
				}
				if err != nil {
					log.Warn("publish", slog.Any("err", err))
				}
				buffer = buffer[:0]
			}
		}
	}
}

func parseSchedule(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, fmt.Errorf("R-R interval %v is not positive", v)
		}
		out = append(out, v)
	}
	return out, nil
}

// encodeFrames interleaves the ECG samples with a slowly swaying
// accelerometer, the way a chest strap reports them.
func encodeFrames(dst []byte, samples []float64, first int64, fs int) ([]byte, error) {
	frames := make([]sensor.Frame, 0, 2*len(samples))
	for i, v := range samples {
		t := (first + int64(i)) * 1000 / int64(fs)
		frames = append(frames, sensor.ECG(t, v))
		sway := 0.3 * math.Sin(2*math.Pi*0.25*float64(t)/1000)
		frames = append(frames, sensor.Accel(t, sway, 0, 9.81))
	}
	b, err := json.Marshal(frames)
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}
