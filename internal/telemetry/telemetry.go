// Package telemetry exposes the PRM's internal state as Prometheus
// gauges and counters, grounded on the pi5-trading-system metrics
// registry. These are internal observability instruments, not a
// dashboard: the PRM has no HTTP surface of its own (see the exclusion
// in the orchestrator's external interfaces), so nothing here is served
// directly — a caller's own metrics endpoint would register this
// registry.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every gauge/counter the PRM updates on its write path.
type Metrics struct {
	PortfolioValue    prometheus.Gauge
	Cash              prometheus.Gauge
	DailyPnL          prometheus.Gauge
	CurrentDrawdown   prometheus.Gauge
	ActivePositions   prometheus.Gauge
	TotalRiskExposure prometheus.Gauge
	Leverage          prometheus.Gauge

	TradeDecisions *prometheus.CounterVec
	RiskDenials    *prometheus.CounterVec
	Rebalances     prometheus.Counter

	StrategyAllocation *prometheus.GaugeVec
}

// New creates and registers the PRM's metrics under the given namespace
// against reg. Callers pass prometheus.DefaultRegisterer to expose the
// PRM's internal state on their own process-wide metrics endpoint, or a
// fresh prometheus.NewRegistry() in tests to avoid collisions with other
// instances registered in the same process.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "prm"
	}
	factory := promauto.With(reg)
	return &Metrics{
		PortfolioValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Total portfolio equity.",
		}),
		Cash: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash",
			Help:      "Available cash balance.",
		}),
		DailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_pnl",
			Help:      "Profit and loss since the last daily reset.",
		}),
		CurrentDrawdown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_drawdown_pct",
			Help:      "Current drawdown as a percentage of peak equity.",
		}),
		ActivePositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_positions",
			Help:      "Total open positions across all strategies.",
		}),
		TotalRiskExposure: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_risk_exposure",
			Help:      "Total notional exposure across all strategies.",
		}),
		Leverage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leverage",
			Help:      "Ratio of total exposure to total equity.",
		}),
		TradeDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_decisions_total",
				Help:      "Trade sizing decisions by outcome.",
			},
			[]string{"outcome"},
		),
		RiskDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_denials_total",
				Help:      "Gate denials by the predicate that fired.",
			},
			[]string{"predicate"},
		),
		Rebalances: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebalances_total",
			Help:      "Number of committed rebalance events.",
		}),
		StrategyAllocation: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "strategy_allocation",
				Help:      "Current target allocation weight per strategy.",
			},
			[]string{"strategy_id"},
		),
	}
}
