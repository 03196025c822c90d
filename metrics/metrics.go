// Package metrics exposes server counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sicilica/yachu-server/transport"
)

const namespace = "yachu"

// Metrics owns its registry so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	MessagesReceived    *prometheus.CounterVec
	MessagesSent        *prometheus.CounterVec
	HandlerPanics       prometheus.Counter
	Logins              *prometheus.CounterVec
	RoomsPlaying        prometheus.Gauge
	GamesFinished       *prometheus.CounterVec
	GameDesyncs         prometheus.Counter
	TickDuration        prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the listener.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Clients currently tracked by the game loop.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages dispatched, by type.",
		}, []string{"type"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages queued for sending, by type.",
		}, []string{"type"}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Message handlers that panicked.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login and register attempts, by kind and result.",
		}, []string{"kind", "result"}),
		RoomsPlaying: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_playing",
			Help:      "Rooms with a game in progress.",
		}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games, by outcome.",
		}, []string{"outcome"}),
		GameDesyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_desync_total",
			Help:      "Games whose clients reported different winners.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one game loop tick.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectionsAccepted,
		m.ConnectionsActive,
		m.MessagesReceived,
		m.MessagesSent,
		m.HandlerPanics,
		m.Logins,
		m.RoomsPlaying,
		m.GamesFinished,
		m.GameDesyncs,
		m.TickDuration,
	)
	return m
}

// WatchPool publishes the buffer pool occupancy, read at scrape time.
func (m *Metrics) WatchPool(pool *transport.Pool) {
	gauge := func(name, help string, value func(transport.PoolStats) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(pool.Stats())) })
	}

	m.registry.MustRegister(
		gauge("slots", "Slots the arena can hold.", func(s transport.PoolStats) int { return s.Slots }),
		gauge("in_use", "Slots handed out and not yet released.", func(s transport.PoolStats) int { return s.InUse }),
		gauge("free", "Released slots waiting for reuse.", func(s transport.PoolStats) int { return s.Free }),
		gauge("discarded", "Released slots dropped because the free list was full.", func(s transport.PoolStats) int { return s.Discarded }),
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve runs the /metrics endpoint on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info("serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
