package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ivanzxc/go-realtime-ecg/internal/analysis"
	"github.com/ivanzxc/go-realtime-ecg/internal/logging"
	"github.com/ivanzxc/go-realtime-ecg/internal/metrics"
	"github.com/ivanzxc/go-realtime-ecg/internal/sensor"
	"github.com/ivanzxc/go-realtime-ecg/internal/stream"
	"github.com/ivanzxc/go-realtime-ecg/internal/writer"
)

func main() {

	var (
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS url")
		in       = flag.String("in", stream.SubjectWave, "input subject (float32 batches)")
		frames   = flag.String("frames", stream.SubjectFrames, "input subject (JSON sensor frames), empty to disable")
		fs       = flag.Float64("fs", 250, "sampling rate Hz")
		mqttURL  = flag.String("mqtt", "", "MQTT broker url for beat/HRV messages, empty to disable")
		mqttQoS  = flag.Int("mqtt-qos", 1, "MQTT QoS")
		csvDir   = flag.String("csv", "", "directory for beats.csv and hrv.csv, empty to disable")
		addr     = flag.String("metrics", ":9100", "prometheus listen address, empty to disable")
		logLevel = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	log, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		slog.Error("bad flags", slog.Any("err", err))
		os.Exit(2)
	}

	cfg := analysis.DefaultConfig(*fs)
	cfg.Logger = log
	if err := cfg.Validate(); err != nil {
		log.Error("invalid detector configuration", slog.Any("err", err))
		os.Exit(2)
	}

	if err := run(cfg, options{
		natsURL: *natsURL,
		in:      *in,
		frames:  *frames,
		mqttURL: *mqttURL,
		mqttQoS: byte(*mqttQoS),
		csvDir:  *csvDir,
		addr:    *addr,
	}, log); err != nil {
		log.Error("processor failed", slog.Any("err", err))
		os.Exit(1)
	}
}

type options struct {
	natsURL, in, frames string
	mqttURL             string
	mqttQoS             byte
	csvDir              string
	addr                string
}

func run(cfg analysis.Config, opt options, log *slog.Logger) error {
	ctx, stop := osSignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nc, err := stream.Connect(opt.natsURL, "ecg-processor")
	if err != nil {
		return err
	}
	defer nc.Drain()

	p := analysis.New(cfg)
	mon := analysis.NewMonitor(p)
	pub := stream.NewNATSPublisher(nc, stream.NewSession())
	log = log.With(slog.String("session", pub.Session()))
	mon.AddBeatSink(pub)
	mon.AddBatchSink(pub)

	coll := metrics.New()
	mon.AddBeatSink(coll)
	mon.AddBatchSink(coll)

	if opt.mqttURL != "" {
		client, err := stream.ConnectMQTT(opt.mqttURL, "ecg-processor-"+pub.Session(), log)
		if err != nil {
			return err
		}
		defer client.Disconnect(1000)
		mp := stream.NewMQTTPublisher(client, pub.Session(), opt.mqttQoS, 5*time.Second)
		mon.AddBeatSink(mp)
		mon.AddBatchSink(mp)
	}

	if opt.csvDir != "" {
		w, err := writer.NewCSV(opt.csvDir)
		if err != nil {
			return err
		}
		defer w.Close()
		mon.AddBeatSink(w)
		mon.AddBatchSink(w)
	}

	router := sensor.NewRouter(mon)

	// the pipeline is single-threaded: both subscriptions feed one worker
	waves := make(chan *nats.Msg, 256)
	sub, err := nc.ChanSubscribe(opt.in, waves)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	var frameMsgs chan *nats.Msg
	if opt.frames != "" {
		frameMsgs = make(chan *nats.Msg, 256)
		fsub, err := nc.ChanSubscribe(opt.frames, frameMsgs)
		if err != nil {
			return err
		}
		defer fsub.Unsubscribe()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w := worker{mon: mon, router: router, metrics: coll, log: log, ts: 1000 / cfg.SamplingRate}
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-waves:
				w.wave(msg.Data)
			case msg := <-frameMsgs:
				w.frames(msg.Data)
			}
		}
	})

	if opt.addr != "" {
		srv := &http.Server{Addr: opt.addr, Handler: promhttp.Handler()}
		g.Go(func() error {
			log.Info("metrics listening", slog.String("addr", opt.addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		})
	}

	log.Info("processor running", slog.String("in", opt.in), slog.Float64("fs", cfg.SamplingRate))
	err = g.Wait()
	stats := p.Stats()
	log.Info("processor stopped",
		slog.Int64("samples", mon.Index()),
		slog.Uint64("beats", mon.Emitted()),
		slog.Any("counts", stats.Counts()),
		slog.Int("unflushed_intervals", stats.Pending()),
	)
	if b, ok := stats.Batch(); ok {
		log.Info("last hrv batch",
			slog.Float64("end_ms", b.End),
			slog.Float64("sdnn", b.SDNN),
			slog.Float64("rmssd", b.RMSSD),
		)
	}
	return err
}

type worker struct {
	mon     *analysis.Monitor
	router  *sensor.Router
	metrics *metrics.Collector
	log     *slog.Logger
	ts      float64 // ms per sample

	buf      []float64
	rejected uint64
}

func (w *worker) wave(data []byte) {
	var err error
	w.buf, err = stream.DecodeBatch(w.buf[:0], data)
	if err != nil {
		w.metrics.DecodeError()
		w.log.Warn("dropping wave batch", slog.Any("err", err))
		return
	}
	start := w.mon.Index()
	for i, v := range w.buf {
		t := int64(float64(start+int64(i)) * w.ts)
		if err := w.router.Route(sensor.ECG(t, v)); err != nil {
			w.log.Warn("sink error", slog.Any("err", err))
		}
	}
	w.account(len(w.buf))
}

func (w *worker) frames(data []byte) {
	var batch []sensor.Frame
	if err := json.Unmarshal(data, &batch); err != nil {
		w.metrics.DecodeError()
		w.log.Warn("dropping frame batch", slog.Any("err", err))
		return
	}
	before := w.mon.Index()
	if err := w.router.RouteAll(batch); err != nil {
		w.log.Warn("frames not routed", slog.Any("err", err))
	}
	w.account(int(w.mon.Index() - before))
}

func (w *worker) account(samples int) {
	w.metrics.AddSamples(samples)
	if r := w.mon.Pipeline().Rejected(); r > w.rejected {
		w.metrics.AddRejected(r - w.rejected)
		w.rejected = r
	}
}
