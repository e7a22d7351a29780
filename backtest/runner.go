package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

// Result is the outcome of one instrument's run.
type Result struct {
	Symbol   string
	Strategy string
	Interval market.Interval
	Start    time.Time
	End      time.Time
	Bars     int
	Faults   int

	FinalCash   float64
	FinalEquity float64

	Trades  []ledger.Trade
	Metrics metrics.Metrics
}

// Run simulates one series end to end: indicators, every bar, Finalize and
// metrics. The context is checked between bars.
//
// A run without closed trades returns the populated Result together with
// metrics.ErrInsufficientData.
func Run(ctx context.Context, series *market.Series, strat Strategy, policy Policy, opts ...Option) (Result, error) {
	if series == nil || series.Len() == 0 {
		return Result{}, fmt.Errorf("backtest: %w", &market.DataError{Reason: "empty series"})
	}
	if strat == nil {
		return Result{}, configErr("strategy", "must not be nil")
	}

	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithInterval(series.Interval))
	sim, err := New(series.Symbol, policy, strat, all...)
	if err != nil {
		return Result{}, err
	}

	prov, err := indicators.NewProvider(series, strat.Indicators())
	if err != nil {
		return Result{}, &ConfigurationError{Field: "indicators", Reason: err.Error()}
	}

	for i := 0; i < series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := sim.Step(series.At(i), prov.At(i)); err != nil {
			return Result{}, fmt.Errorf("backtest %s: %w", series.Symbol, err)
		}
	}

	led, err := sim.Finalize()
	if err != nil {
		return Result{}, fmt.Errorf("backtest %s: finalize: %w", series.Symbol, err)
	}

	res := Result{
		Symbol:      series.Symbol,
		Strategy:    strat.Name(),
		Interval:    series.Interval,
		Start:       series.First().Time,
		End:         series.Last().Time,
		Bars:        sim.Bars(),
		Faults:      sim.Faults(),
		FinalCash:   sim.Cash(),
		FinalEquity: sim.Equity(),
		Trades:      led.Snapshot(),
	}

	m, err := metrics.Compute(res.Trades, metrics.Params{
		InitialCapital:     policy.StartingCash,
		BarInterval:        series.Interval,
		TradingDaysPerYear: sim.opts.tradingDays,
	})
	if err != nil {
		if errors.Is(err, metrics.ErrInsufficientData) {
			return res, fmt.Errorf("backtest %s: %w", series.Symbol, err)
		}
		return res, err
	}
	res.Metrics = m
	return res, nil
}
