// Package telemetry counts simulator events with Prometheus collectors.
// A batch run writes them once at exit in the textfile exposition format.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/backtester/backtest"
)

// Collector implements backtest.Observer on its own registry.
type Collector struct {
	reg *prometheus.Registry

	bars    *prometheus.CounterVec
	fills   *prometheus.CounterVec
	trades  *prometheus.CounterVec
	pnl     *prometheus.GaugeVec
	faults  *prometheus.CounterVec
	symbols *prometheus.CounterVec
}

var _ backtest.Observer = (*Collector)(nil)

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		bars: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_bars_processed_total",
				Help: "Bars stepped through the simulator",
			},
			[]string{"symbol"},
		),
		fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_fills_total",
				Help: "Order fills by leg",
			},
			[]string{"symbol", "leg"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_trades_closed_total",
				Help: "Round-trip trades closed by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		pnl: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backtest_realized_pnl",
				Help: "Realized PnL after commissions",
			},
			[]string{"symbol"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_strategy_faults_total",
				Help: "Strategy errors and malformed intents",
			},
			[]string{"symbol"},
		),
		symbols: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_symbols_total",
				Help: "Symbols finished by batch status",
			},
			[]string{"status"},
		),
	}
	c.reg.MustRegister(c.bars, c.fills, c.trades, c.pnl, c.faults, c.symbols)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) BarProcessed(symbol string) {
	c.bars.WithLabelValues(symbol).Inc()
}

func (c *Collector) OrderFilled(symbol string, opening bool) {
	leg := "close"
	if opening {
		leg = "open"
	}
	c.fills.WithLabelValues(symbol, leg).Inc()
}

func (c *Collector) TradeClosed(symbol string, pnlAfterCost float64) {
	outcome := "loss"
	if pnlAfterCost > 0 {
		outcome = "win"
	}
	c.trades.WithLabelValues(symbol, outcome).Inc()
	c.pnl.WithLabelValues(symbol).Add(pnlAfterCost)
}

func (c *Collector) Fault(symbol string) {
	c.faults.WithLabelValues(symbol).Inc()
}

// RecordBatch counts each symbol's final status.
func (c *Collector) RecordBatch(res backtest.BatchResult) {
	for _, r := range res.Results {
		c.symbols.WithLabelValues(string(r.Status)).Inc()
	}
}

// WriteTextfile writes every collector to path for a node_exporter
// textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}
