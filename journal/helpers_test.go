package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func fixtureTrades() []ledger.Trade {
	return []ledger.Trade{
		{
			TradeID: "AAA-000001", Symbol: "AAA",
			EntryTime: t0, EntryPrice: 100,
			ExitTime: ptr(t0.AddDate(0, 0, 3)), ExitPrice: ptr(110.0),
			Size: 10, Status: ledger.StatusClosed,
			PnL: 100, PnLAfterCost: 97.9, Commission: 2.1, Duration: 3,
			Reason: "take_profit",
		},
		{
			TradeID: "BBB-000001", Symbol: "BBB",
			EntryTime: t0.AddDate(0, 0, 1), EntryPrice: 100,
			ExitTime: ptr(t0.AddDate(0, 0, 8)), ExitPrice: ptr(105.0),
			Size: -20, Status: ledger.StatusClosed,
			PnL: -100, PnLAfterCost: -104.1, Commission: 4.1, Duration: 7,
			Reason: "stop",
		},
		{
			TradeID: "AAA-000002", Symbol: "AAA",
			EntryTime: t0.AddDate(0, 0, 10), EntryPrice: 105,
			Size: 10, Status: ledger.StatusOpen, Commission: 1.05,
		},
	}
}

func fixtureRun(t *testing.T, runID string) Run {
	t.Helper()

	policy := backtest.DefaultPolicy()
	r := Run{
		RunID:    runID,
		Created:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Strategy: "ema-crossover",
		Params:   map[string]float64{"ema_fast": 5, "risk_reward": 1.5},
		Interval: market.Daily,
		Dataset:  "testdata",
		Policy:   policy,
		Trades:   fixtureTrades(),
		Notes:    []string{"first note", "second note"},
	}

	p := metrics.DefaultParams()
	for _, sym := range []string{"AAA", "BBB"} {
		m, err := metrics.Compute(r.TradesFor(sym), p)
		require.NoError(t, err)
		r.Symbols = append(r.Symbols, SymbolRun{
			Symbol: sym, Status: backtest.StatusOK,
			Start: t0, End: t0.AddDate(0, 0, 11),
			Bars: 12, FinalCash: 100000 + m.NetPnL, FinalEquity: 100000 + m.NetPnL,
			Metrics: m,
		})
	}
	r.Symbols = append(r.Symbols, SymbolRun{
		Symbol: "BAD", Status: backtest.StatusDataError, Error: "data error: BAD: duplicate timestamp",
	})

	p.InitialCapital = SummaryCapital(policy, len(r.Symbols))
	sum, err := metrics.Compute(r.Trades, p)
	require.NoError(t, err)
	r.Summary = sum
	return r
}

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}
