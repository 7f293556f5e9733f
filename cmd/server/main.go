package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	osSignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ivanzxc/go-realtime-ecg/internal/logging"
	"github.com/ivanzxc/go-realtime-ecg/internal/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var relayed = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecg",
	Subsystem: "server",
	Name:      "messages_total",
	Help:      "Messages relayed to websocket clients",
}, []string{"subject"})

type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
	log   *slog.Logger
}

func newHub(log *slog.Logger) *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool), log: log}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	return clients
}

// broadcast writes b to every client, dropping the ones that fail.
func (h *Hub) broadcast(messageType int, b []byte) {
	for _, c := range h.snapshot() {
		_ = c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(messageType, b); err != nil {
			h.log.Debug("dropping client", slog.String("remote", c.RemoteAddr().String()), slog.Any("err", err))
			_ = c.Close()
			h.remove(c)
		}
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.add(conn)
	defer func() {
		h.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// relay forwards subject to the hub: waves as binary, beats and HRV as text.
func relay(nc *nats.Conn, hub *Hub, subject string, messageType int) (*nats.Subscription, error) {
	counter := relayed.WithLabelValues(subject)
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		counter.Inc()
		hub.broadcast(messageType, msg.Data)
	})
}

func main() {

	var (
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS url")
		addr     = flag.String("addr", ":8080", "http address")
		web      = flag.String("web", "./web", "static files")
		logLevel = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	log, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		slog.Error("bad flags", slog.Any("err", err))
		os.Exit(2)
	}
	prometheus.MustRegister(relayed)

	nc, err := stream.Connect(*natsURL, "ecg-server")
	if err != nil {
		log.Error("nats", slog.Any("err", err))
		os.Exit(1)
	}
	defer nc.Drain()

	hub := newHub(log)
	for _, r := range []struct {
		subject     string
		messageType int
	}{
		{stream.SubjectWave, websocket.BinaryMessage},
		{stream.SubjectBeats, websocket.TextMessage},
		{stream.SubjectHRV, websocket.TextMessage},
	} {
		if _, err := relay(nc, hub, r.subject, r.messageType); err != nil {
			log.Error("subscribe", slog.String("subject", r.subject), slog.Any("err", err))
			os.Exit(1)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(*web)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", hub.serveWS)

	server := &http.Server{Addr: *addr, Handler: mux}

	ctx, stop := osSignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server running", slog.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdown)
	})

	if err := g.Wait(); err != nil {
		log.Error("server failed", slog.Any("err", err))
	}
	log.Info("server stopped")
}
