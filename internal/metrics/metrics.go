// Package metrics provides Prometheus instrumentation for the arena engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"arena/internal/arena"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements arena.Recorder on a dedicated registry.
type Metrics struct {
	reg *prometheus.Registry

	MatchesCreated   *prometheus.CounterVec
	MatchesResolved  *prometheus.CounterVec
	SideEffects      *prometheus.CounterVec
	SlotFailures     prometheus.Counter
	CoinsBurnedTotal prometheus.Counter
	TickLatency      prometheus.Histogram
	LiveClients      prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		MatchesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_matches_created_total",
			Help: "Matches scheduled, partitioned by mode",
		}, []string{"mode"}),
		MatchesResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_matches_resolved_total",
			Help: "Matches resolved, partitioned by mode and forfeit",
		}, []string{"mode", "forfeit"}),
		SideEffects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_side_effects_total",
			Help: "Best-effort resolution steps by outcome",
		}, []string{"step", "ok"}),
		SlotFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_slot_failures_total",
			Help: "Slots that failed to schedule",
		}),
		CoinsBurnedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_coins_burned_total",
			Help: "Coins removed from circulation by fees and penalties",
		}),
		TickLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_tick_duration_seconds",
			Help:    "Daily tick duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "arena_websocket_clients",
			Help: "Number of connected WebSocket clients",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) MatchCreated(mode arena.Mode) {
	m.MatchesCreated.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) MatchResolved(mode arena.Mode, forfeit bool) {
	m.MatchesResolved.WithLabelValues(string(mode), strconv.FormatBool(forfeit)).Inc()
}

func (m *Metrics) SideEffect(step string, ok bool) {
	m.SideEffects.WithLabelValues(step, strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) SlotFailed() { m.SlotFailures.Inc() }

func (m *Metrics) CoinsBurned(n int64) {
	if n > 0 {
		m.CoinsBurnedTotal.Add(float64(n))
	}
}

func (m *Metrics) TickDuration(d time.Duration) { m.TickLatency.Observe(d.Seconds()) }

// ClientsChanged tracks the live WebSocket audience.
func (m *Metrics) ClientsChanged(n int) { m.LiveClients.Set(float64(n)) }

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records request metrics labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

var _ arena.Recorder = (*Metrics)(nil)
