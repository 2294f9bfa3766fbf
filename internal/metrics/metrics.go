// Package metrics exposes the Prometheus instruments the engine updates
// during operation, served at /metrics in the text exposition format:
//   - engine_decisions_total{outcome} - decision cycles by outcome
//   - engine_orders_total{side,result} - orders by side and result
//   - engine_equity - current account equity (gauge)
//   - engine_trades_total{kind} - execution reports by kind
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_decisions_total",
			Help: "Decision cycles by outcome",
		},
		[]string{"outcome"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_total",
			Help: "Orders placed by side and result",
		},
		[]string{"side", "result"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_equity",
			Help: "Account equity in account currency",
		},
	)

	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_total",
			Help: "Execution reports by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(Decisions, Orders, Equity, Trades)
}
