// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	SymbolsProcessed prometheus.Counter
	SymbolsSkipped   *prometheus.CounterVec
	TradesRecorded   *prometheus.CounterVec
	ShockEvents      prometheus.Counter
	StrategyFaults   prometheus.Counter
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram

	// Rebalance metrics
	RebalanceCycles    *prometheus.CounterVec
	CandidatesScreened prometheus.Gauge
	CandidatesSelected prometheus.Gauge

	// Trader metrics
	QuotesReceived prometheus.Counter
	TraderCycles   *prometheus.CounterVec

	// Notification metrics
	NotifyFailures prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun   prometheus.Gauge
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "equity_quant_lab"
	}

	return &Metrics{
		SymbolsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "symbols_processed_total",
			Help:      "Total number of symbols run through the strategy loop",
		}),
		SymbolsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "symbols_skipped_total",
			Help:      "Total number of symbols skipped by reason",
		}, []string{"reason"}),
		TradesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_recorded_total",
			Help:      "Total number of trades recorded by action",
		}, []string{"action"}),
		ShockEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "shock_events_total",
			Help:      "Total number of single-bar equity shocks detected",
		}),
		StrategyFaults: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "strategy_faults_total",
			Help:      "Total number of per-symbol strategy faults recovered",
		}),
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		RebalanceCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "cycles_total",
			Help:      "Total number of rebalance cycles by status",
		}, []string{"status"}),
		CandidatesScreened: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "candidates_screened",
			Help:      "Candidates that passed screening in the last cycle",
		}),
		CandidatesSelected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "candidates_selected",
			Help:      "Candidates selected into the allocation in the last cycle",
		}),

		QuotesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "quotes_received_total",
			Help:      "Total number of streamed quotes consumed",
		}),
		TraderCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "cycles_total",
			Help:      "Total number of trader poll cycles by status",
		}, []string{"status"}),

		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Total number of notification delivery failures",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful backtest run",
		}),
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful rebalance cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSymbolProcessed increments the symbols processed counter.
func RecordSymbolProcessed() {
	DefaultMetrics.SymbolsProcessed.Inc()
}

// RecordSymbolSkipped records a skipped symbol with its reason.
func RecordSymbolSkipped(reason string) {
	DefaultMetrics.SymbolsSkipped.WithLabelValues(reason).Inc()
}

// RecordTrade records one trade by action tag.
func RecordTrade(action string) {
	DefaultMetrics.TradesRecorded.WithLabelValues(action).Inc()
}

// RecordShock increments the shock events counter.
func RecordShock() {
	DefaultMetrics.ShockEvents.Inc()
}

// RecordStrategyFault increments the recovered strategy faults counter.
func RecordStrategyFault() {
	DefaultMetrics.StrategyFaults.Inc()
}

// RecordRun records a backtest run with its status and duration.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordRebalanceCycle records a rebalance cycle with candidate counts.
func RecordRebalanceCycle(status string, screened, selected int) {
	DefaultMetrics.RebalanceCycles.WithLabelValues(status).Inc()
	if status == "success" {
		DefaultMetrics.CandidatesScreened.Set(float64(screened))
		DefaultMetrics.CandidatesSelected.Set(float64(selected))
	}
}

// RecordQuote increments the streamed quotes counter.
func RecordQuote() {
	DefaultMetrics.QuotesReceived.Inc()
}

// RecordTraderCycle records a trader poll cycle by status.
func RecordTraderCycle(status string) {
	DefaultMetrics.TraderCycles.WithLabelValues(status).Inc()
}

// RecordNotifyFailure increments the notification failures counter.
func RecordNotifyFailure() {
	DefaultMetrics.NotifyFailures.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
