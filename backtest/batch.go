package backtest

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

// Status of one instrument in a batch.
type Status string

const (
	StatusOK        Status = "ok"
	StatusDataError Status = "data_error"
	StatusNoTrades  Status = "no_trades"
	StatusFailed    Status = "failed"
)

// Loader fetches the bar series for a symbol.
type Loader func(ctx context.Context, symbol string) (*market.Series, error)

// Batch describes a multi-instrument run. Every symbol gets its own strategy
// instance and simulator.
type Batch struct {
	Symbols     []string
	Load        Loader
	NewStrategy StrategyFactory
	Policy      Policy
	// Workers caps concurrency; 0 means runtime.NumCPU().
	Workers int
	Options []Option
}

// SymbolResult is one instrument's outcome.
type SymbolResult struct {
	Symbol string
	Status Status
	Err    error
	Result Result
}

// BatchResult collects per-symbol outcomes in input order plus the merged
// ledger.
type BatchResult struct {
	Results []SymbolResult
	Trades  []ledger.Trade
}

// Failed counts symbols that did not finish with StatusOK or StatusNoTrades.
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == StatusDataError || r.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Summary is the one-line error tally.
func (b BatchResult) Summary() string {
	return fmt.Sprintf("%d errors out of %d symbols", b.Failed(), len(b.Results))
}

// Metrics computes combined statistics over every symbol's trades.
// p.InitialCapital should cover every account in the batch.
func (b BatchResult) Metrics(p metrics.Params) (metrics.Metrics, error) {
	return metrics.Compute(b.Trades, p)
}

// RunBatch runs every symbol independently. A failing instrument is recorded
// in its SymbolResult and never stops the others. The returned error is
// non-nil only when the batch is misconfigured or ctx is cancelled.
func RunBatch(ctx context.Context, b Batch) (BatchResult, error) {
	if b.Load == nil {
		return BatchResult{}, configErr("loader", "must not be nil")
	}
	if b.NewStrategy == nil {
		return BatchResult{}, configErr("strategy", "factory must not be nil")
	}
	if err := b.Policy.Validate(); err != nil {
		return BatchResult{}, err
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]SymbolResult, len(b.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, sym := range b.Symbols {
		i, sym := i, sym
		g.Go(func() error {
			results[i] = runOne(gctx, b, sym)
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{Results: results}
	sets := make([][]ledger.Trade, 0, len(results))
	for _, r := range results {
		sets = append(sets, r.Result.Trades)
	}
	out.Trades = ledger.Merge(sets...)

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func runOne(ctx context.Context, b Batch, sym string) SymbolResult {
	sr := SymbolResult{Symbol: sym}
	if err := ctx.Err(); err != nil {
		sr.Status, sr.Err = StatusFailed, err
		return sr
	}

	series, err := b.Load(ctx, sym)
	if err != nil {
		sr.Status, sr.Err = classify(err), err
		return sr
	}
	strat, err := b.NewStrategy()
	if err != nil {
		sr.Status, sr.Err = StatusFailed, err
		return sr
	}

	res, err := Run(ctx, series, strat, b.Policy, b.Options...)
	sr.Result = res
	if err != nil {
		sr.Status, sr.Err = classify(err), err
		return sr
	}
	sr.Status = StatusOK
	return sr
}

func classify(err error) Status {
	switch {
	case errors.Is(err, market.ErrData):
		return StatusDataError
	case errors.Is(err, metrics.ErrInsufficientData):
		return StatusNoTrades
	default:
		return StatusFailed
	}
}
