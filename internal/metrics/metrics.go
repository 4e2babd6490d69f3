// Package metrics exposes Prometheus metrics for sweeps and live sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// Metrics owns a private registry so tests and multiple sessions never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	// Sweep
	SweepRuns   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Live
	LiveTicks       *prometheus.GaugeVec
	LiveTrades      *prometheus.GaugeVec
	LiveRealized    *prometheus.GaugeVec
	LiveUnrealized  *prometheus.GaugeVec
	LiveOpen        *prometheus.GaugeVec
	LiveSmoothed    *prometheus.GaugeVec
	LiveDisconnects *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsbot_sweep_runs_total",
				Help: "Simulation runs completed by the sweep optimizer",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddsbot_sweep_run_duration_seconds",
				Help:    "Wall time of one (game, parameter set) simulation",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
			},
			[]string{"status"},
		),

		LiveTicks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsbot_live_ticks",
				Help: "Ticks processed by the live loop",
			},
			[]string{"game"},
		),
		LiveTrades: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsbot_live_trades",
				Help: "BUY and SELL decisions taken by the live loop",
			},
			[]string{"game"},
		),
		LiveRealized: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsbot_live_realized_pnl_usd",
				Help: "Realized P&L of the live session",
			},
			[]string{"game"},
		),
		LiveUnrealized: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsbot_live_unrealized_pnl_usd",
				Help: "Mark-to-market P&L of open positions",
			},
			[]string{"game"},
		),
		LiveOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsbot_live_open_positions",
				Help: "Teams currently holding shares",
			},
			[]string{"game"},
		),
		LiveSmoothed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsbot_live_smoothed_price",
				Help: "Current EMA-smoothed implied probability",
			},
			[]string{"game", "team"},
		),
		LiveDisconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsbot_live_disconnects_total",
				Help: "Tick source disconnects seen by the live loop",
			},
			[]string{"game"},
		),
	}

	m.registry.MustRegister(
		m.SweepRuns,
		m.RunDuration,
		m.LiveTicks,
		m.LiveTrades,
		m.LiveRealized,
		m.LiveUnrealized,
		m.LiveOpen,
		m.LiveSmoothed,
		m.LiveDisconnects,
	)
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun implements sweep.RunRecorder.
func (m *Metrics) ObserveRun(failed bool, elapsed time.Duration) {
	status := "ok"
	if failed {
		status = "failed"
	}
	m.SweepRuns.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveSnapshot implements live.Observer.
func (m *Metrics) ObserveSnapshot(s domain.Snapshot) {
	m.LiveTicks.WithLabelValues(s.GameID).Set(float64(s.Ticks))
	m.LiveTrades.WithLabelValues(s.GameID).Set(float64(s.Trades))
	m.LiveRealized.WithLabelValues(s.GameID).Set(s.RealizedPnL)
	m.LiveUnrealized.WithLabelValues(s.GameID).Set(s.UnrealizedPnL)
	m.LiveOpen.WithLabelValues(s.GameID).Set(float64(s.OpenPositions()))
	for team, v := range s.Smoothed {
		m.LiveSmoothed.WithLabelValues(s.GameID, team).Set(v)
	}
}

// ObserveDisconnect implements live.Observer.
func (m *Metrics) ObserveDisconnect(gameID string) {
	m.LiveDisconnects.WithLabelValues(gameID).Inc()
}
