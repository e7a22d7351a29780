// Package journal persists backtest runs: a SQLite run store, CSV and
// Parquet ledger exports and an Org-mode report.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

// Run is everything recorded about one batch invocation.
type Run struct {
	RunID    string
	Created  time.Time
	Strategy string
	Params   map[string]float64
	Interval market.Interval
	Dataset  string
	Policy   backtest.Policy

	Symbols []SymbolRun
	Trades  []ledger.Trade
	// Summary covers every symbol's trades against the combined starting
	// cash of all symbols; zero when no trade closed.
	Summary metrics.Metrics

	Notes []string
}

// SymbolRun is one instrument's row.
type SymbolRun struct {
	Symbol      string
	Status      backtest.Status
	Error       string
	Start       time.Time
	End         time.Time
	Bars        int
	Faults      int
	FinalCash   float64
	FinalEquity float64
	Metrics     metrics.Metrics
}

// Journal records completed runs.
type Journal interface {
	RecordRun(ctx context.Context, r Run) error
	Close() error
}

// Multi fans a run out to several journals.
type Multi []Journal

func (m Multi) RecordRun(ctx context.Context, r Run) error {
	var errs []error
	for _, j := range m {
		if err := j.RecordRun(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}

// NewRun flattens a batch result into a Run. Every symbol runs its own
// account, so the summary's capital is the starting cash times the number
// of symbols in the batch.
func NewRun(runID, strategy string, params map[string]float64, policy backtest.Policy, mp metrics.Params, res backtest.BatchResult) Run {
	mp.InitialCapital = SummaryCapital(policy, len(res.Results))
	r := Run{
		RunID:    runID,
		Created:  time.Now().UTC(),
		Strategy: strategy,
		Params:   params,
		Interval: mp.BarInterval,
		Policy:   policy,
		Trades:   res.Trades,
	}
	for _, sr := range res.Results {
		row := SymbolRun{
			Symbol:      sr.Symbol,
			Status:      sr.Status,
			Start:       sr.Result.Start,
			End:         sr.Result.End,
			Bars:        sr.Result.Bars,
			Faults:      sr.Result.Faults,
			FinalCash:   sr.Result.FinalCash,
			FinalEquity: sr.Result.FinalEquity,
			Metrics:     sr.Result.Metrics,
		}
		if sr.Err != nil {
			row.Error = sr.Err.Error()
		}
		r.Symbols = append(r.Symbols, row)
	}
	if m, err := res.Metrics(mp); err == nil {
		r.Summary = m
	}
	return r
}

// SummaryCapital is the combined starting cash of a batch of accounts.
func SummaryCapital(policy backtest.Policy, accounts int) float64 {
	return policy.StartingCash * float64(max(1, accounts))
}

// Equity is the per-trade equity curve of one symbol, or of the whole run
// when symbol is empty.
func (r Run) Equity(symbol string) []metrics.EquityPoint {
	return metrics.EquityCurve(r.TradesFor(symbol), r.Policy.StartingCash)
}

// TradesFor filters the run's trades by symbol; empty keeps all.
func (r Run) TradesFor(symbol string) []ledger.Trade {
	if symbol == "" {
		return r.Trades
	}
	var out []ledger.Trade
	for _, t := range r.Trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out
}

// Failed counts symbols that ended in an error status.
func (r Run) Failed() int {
	n := 0
	for _, s := range r.Symbols {
		if s.Status == backtest.StatusDataError || s.Status == backtest.StatusFailed {
			n++
		}
	}
	return n
}
