// Package metrics exposes Prometheus metrics for backtest activity.
//
// Metrics:
//   - dca_backtests_total{kind,outcome}: runs finished, outcome ok|invalid|error
//   - dca_transactions_total{type,rule}: simulated executions
//   - dca_backtest_duration_seconds{kind}: wall time per run
//   - dca_sweep_combinations_total: parameter combinations evaluated
//   - dca_stored_runs_deleted_total: runs removed by retention cleanup
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/modules/backtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so independent instances never collide
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	combinations prometheus.Counter
	deleted      prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_backtests_total",
				Help: "Backtest runs finished",
			},
			[]string{"kind", "outcome"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_transactions_total",
				Help: "Simulated executions split by side and rule",
			},
			[]string{"type", "rule"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dca_backtest_duration_seconds",
				Help:    "Wall time of one backtest request",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"kind"},
		),
		combinations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dca_sweep_combinations_total",
				Help: "Parameter combinations evaluated by sweeps",
			},
		),
		deleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dca_stored_runs_deleted_total",
				Help: "Stored runs removed by retention cleanup",
			},
		),
	}

	m.registry.MustRegister(
		m.runs,
		m.transactions,
		m.duration,
		m.combinations,
		m.deleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run of kind; res may be nil when err is set.
func (m *Metrics) ObserveRun(kind string, elapsed time.Duration, res *backtest.Result, err error) {
	m.runs.WithLabelValues(kind, outcome(err)).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if res != nil {
		m.ObserveTransactions(res.Transactions)
	}
}

// ObserveTransactions counts executions by side and rule
func (m *Metrics) ObserveTransactions(txs []backtest.Transaction) {
	for _, tx := range txs {
		m.transactions.WithLabelValues(string(tx.Type), string(tx.Rule)).Inc()
	}
}

// ObserveSweep records the size of a finished sweep
func (m *Metrics) ObserveSweep(combinations int) {
	m.combinations.Add(float64(combinations))
}

// ObserveCleanup records runs removed by retention cleanup
func (m *Metrics) ObserveCleanup(deleted int64) {
	m.deleted.Add(float64(deleted))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, backtest.ErrInvalidConfig):
		return "invalid"
	default:
		return "error"
	}
}
