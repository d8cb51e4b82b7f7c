// Package metrics exposes the engine's prometheus surface: one gauge/
// histogram/counter group per moving part (runner ticks, the pending-order
// queue, fills, reconciliation), registered against a private registry
// instead of the global default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Registry = prometheus.NewRegistry()

var (
	// TickDuration tracks how long one Runner.tick() pass takes, per strategy.
	TickDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantdriver",
			Subsystem: "runner",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one strategy tick, from price refresh through signal dispatch",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"strategy_id"},
	)

	// RunnerRunning reports whether a strategy's runner goroutine is alive.
	RunnerRunning = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "quantdriver",
			Subsystem: "runner",
			Name:      "running",
			Help:      "Whether the strategy's runner goroutine is active (1) or not (0)",
		},
		[]string{"strategy_id"},
	)

	// SignalsEmittedTotal counts signals a runner enqueues, by type.
	SignalsEmittedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantdriver",
			Subsystem: "runner",
			Name:      "signals_emitted_total",
			Help:      "Signals enqueued to pending_orders, by signal type",
		},
		[]string{"strategy_id", "signal_type"},
	)

	// QueueDepth tracks how many pending_orders rows sit in each status.
	QueueDepth = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "quantdriver",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Number of pending_orders rows currently in a given status",
		},
		[]string{"status"},
	)

	// DispatchDuration tracks how long one claim->terminal-status dispatch takes.
	DispatchDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantdriver",
			Subsystem: "worker",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of one pending-order dispatch, from claim to terminal status",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"execution_mode"},
	)

	// FillRate tracks fills vs. attempted amount per dispatch, for
	// tracking maker/market slippage and partial-fill frequency.
	FillRate = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantdriver",
			Subsystem: "worker",
			Name:      "fill_rate",
			Help:      "filled/requested ratio per live-mode dispatch",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 1.0},
		},
		[]string{"exchange"},
	)

	// DispatchResultTotal counts terminal dispatch outcomes.
	DispatchResultTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantdriver",
			Subsystem: "worker",
			Name:      "dispatch_result_total",
			Help:      "Terminal pending-order outcomes by execution mode and status",
		},
		[]string{"execution_mode", "status"},
	)

	// ReconcileDrift tracks the absolute size divergence reconciliation
	// found between the local position row and the exchange snapshot.
	ReconcileDrift = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "quantdriver",
			Subsystem: "reconcile",
			Name:      "size_drift",
			Help:      "abs(local_size - exchange_size) observed at the last reconciliation pass",
		},
		[]string{"strategy_id", "symbol"},
	)

	// ReconcileGhostClosedTotal counts ghost-position cleanups.
	ReconcileGhostClosedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantdriver",
			Subsystem: "reconcile",
			Name:      "ghost_closed_total",
			Help:      "Local position rows deleted because the exchange reported them flat",
		},
		[]string{"strategy_id", "symbol"},
	)

	// PositionUnrealizedPnL tracks per-position unrealized P&L in quote currency.
	PositionUnrealizedPnL = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "quantdriver",
			Subsystem: "position",
			Name:      "unrealized_pnl",
			Help:      "Unrealized P&L per open position",
		},
		[]string{"strategy_id", "symbol", "side"},
	)

	// AIFilterDuration tracks entry-filter AI call latency.
	AIFilterDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantdriver",
			Subsystem: "ai",
			Name:      "filter_duration_seconds",
			Help:      "entryfilter.Filter.Allow call duration",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider"},
	)

	// AIFilterRejectedTotal counts entry signals the AI gate vetoed.
	AIFilterRejectedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantdriver",
			Subsystem: "ai",
			Name:      "filter_rejected_total",
			Help:      "Entry signals rejected by the AI entry filter",
		},
		[]string{"strategy_id"},
	)
)

// Init registers the standard process/go collectors alongside the
// engine-specific ones above.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// ObserveReconcileDrift records a size divergence and, when it's a ghost
// cleanup (exchange size of zero against a nonzero local size), also bumps
// the ghost-closed counter.
func ObserveReconcileDrift(strategyID, symbol string, localSize, exchangeSize float64) {
	drift := localSize - exchangeSize
	if drift < 0 {
		drift = -drift
	}
	ReconcileDrift.WithLabelValues(strategyID, symbol).Set(drift)
	if exchangeSize <= 0 && localSize > 0 {
		ReconcileGhostClosedTotal.WithLabelValues(strategyID, symbol).Inc()
	}
}
