package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

func TestNewRun(t *testing.T) {
	trades := fixtureTrades()
	res := backtest.BatchResult{
		Results: []backtest.SymbolResult{
			{Symbol: "AAA", Status: backtest.StatusOK, Result: backtest.Result{Symbol: "AAA", Bars: 12, Trades: trades[:1]}},
			{Symbol: "BAD", Status: backtest.StatusDataError, Err: errors.New("boom")},
		},
		Trades: trades,
	}

	r := NewRun("id", "noop", nil, backtest.DefaultPolicy(), metrics.DefaultParams(), res)
	assert.Equal(t, "id", r.RunID)
	assert.Equal(t, market.Daily, r.Interval)
	assert.False(t, r.Created.IsZero())
	require.Len(t, r.Symbols, 2)
	assert.Equal(t, 12, r.Symbols[0].Bars)
	assert.Equal(t, "boom", r.Symbols[1].Error)
	assert.Equal(t, 1, r.Failed())
	assert.Equal(t, 2, r.Summary.TotalTrades)

	perSymbol, err := metrics.Compute(trades, metrics.DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, perSymbol.NetPnL, r.Summary.NetPnL, 1e-9)
	assert.InDelta(t, perSymbol.TotalReturnPct/2, r.Summary.TotalReturnPct, 1e-9)

	assert.Len(t, r.TradesFor("AAA"), 2)
	assert.Len(t, r.TradesFor(""), 3)
	assert.Len(t, r.Equity("BBB"), 1)
}

func TestSummaryCapital(t *testing.T) {
	policy := backtest.DefaultPolicy()
	assert.Equal(t, policy.StartingCash, SummaryCapital(policy, 0))
	assert.Equal(t, policy.StartingCash, SummaryCapital(policy, 1))
	assert.Equal(t, 3*policy.StartingCash, SummaryCapital(policy, 3))
}

func TestNewRunWithoutTrades(t *testing.T) {
	r := NewRun("id", "noop", nil, backtest.DefaultPolicy(), metrics.DefaultParams(), backtest.BatchResult{})
	assert.Zero(t, r.Summary.TotalTrades)
	assert.Empty(t, r.Equity(""))
}

type failingJournal struct{ closed bool }

func (f *failingJournal) RecordRun(context.Context, Run) error { return errors.New("disk full") }
func (f *failingJournal) Close() error                          { f.closed = true; return nil }

func TestMulti(t *testing.T) {
	dir := t.TempDir()
	csvj, err := NewCSV(dir)
	require.NoError(t, err)
	bad := &failingJournal{}

	m := Multi{bad, csvj}
	err = m.RecordRun(context.Background(), fixtureRun(t, "multi"))
	assert.EqualError(t, err, "disk full")
	assert.FileExists(t, csvj.RunDir("multi")+"/trades.csv", "later journals still run")

	require.NoError(t, m.Close())
	assert.True(t, bad.closed)
}
