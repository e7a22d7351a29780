package journal

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
)

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, table := range []string{"runs", "run_symbols", "trades", "equity"} {
		assert.True(t, found[table], table)
	}
}

func TestSQLiteRunRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	defer j.Close()

	want := fixtureRun(t, "01HRUN0000000000000000000A")
	require.NoError(t, j.RecordRun(ctx, want))

	got, err := j.GetRun(ctx, want.RunID)
	require.NoError(t, err)

	assert.Equal(t, want.RunID, got.RunID)
	assert.True(t, want.Created.Equal(got.Created))
	assert.Equal(t, want.Strategy, got.Strategy)
	assert.Equal(t, want.Params, got.Params)
	assert.Equal(t, market.Daily, got.Interval)
	assert.Equal(t, want.Dataset, got.Dataset)
	assert.Equal(t, want.Policy, got.Policy)
	assert.Equal(t, want.Notes, got.Notes)
	assert.Equal(t, want.Summary.TotalTrades, got.Summary.TotalTrades)
	assert.InDelta(t, want.Summary.NetPnL, got.Summary.NetPnL, 1e-9)
	assert.InDelta(t, want.Summary.MaxDrawdownPct, got.Summary.MaxDrawdownPct, 1e-9)

	require.Len(t, got.Symbols, 3)
	aaa := got.Symbols[0]
	assert.Equal(t, "AAA", aaa.Symbol)
	assert.Equal(t, backtest.StatusOK, aaa.Status)
	assert.True(t, aaa.Start.Equal(t0))
	assert.Equal(t, 1, aaa.Metrics.TotalTrades)
	assert.True(t, math.IsInf(aaa.Metrics.ProfitFactor, 1), "no losers round-trips as +Inf")
	assert.InDelta(t, want.Symbols[0].Metrics.TotalReturnPct, aaa.Metrics.TotalReturnPct, 1e-9)

	bbb := got.Symbols[1]
	assert.Equal(t, 0.0, bbb.Metrics.ProfitFactor)
	assert.Equal(t, 1, bbb.Metrics.Losses)

	bad := got.Symbols[2]
	assert.Equal(t, backtest.StatusDataError, bad.Status)
	assert.Contains(t, bad.Error, "duplicate timestamp")
	assert.True(t, bad.Start.IsZero())

	require.Len(t, got.Trades, 3)
	assert.Equal(t, []string{"AAA-000001", "BBB-000001", "AAA-000002"},
		[]string{got.Trades[0].TradeID, got.Trades[1].TradeID, got.Trades[2].TradeID})
	short := got.Trades[1]
	assert.Equal(t, -20.0, short.Size)
	require.NotNil(t, short.ExitPrice)
	assert.Equal(t, 105.0, *short.ExitPrice)
	assert.InDelta(t, -104.1, short.PnLAfterCost, 1e-9)
	assert.Equal(t, "stop", short.Reason)

	open := got.Trades[2]
	assert.False(t, open.IsClosed())
	assert.Nil(t, open.ExitTime)
	assert.Nil(t, open.ExitPrice)
}

func TestSQLiteRecordRunTwice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	defer j.Close()

	r := fixtureRun(t, "dup")
	require.NoError(t, j.RecordRun(ctx, r))
	assert.Error(t, j.RecordRun(ctx, r))

	// The failed transaction leaves the first copy intact.
	trades, err := j.ListTrades(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, trades, 3)
}

func TestSQLiteRecordRunNeedsID(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	assert.Error(t, j.RecordRun(context.Background(), Run{}))
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	defer j.Close()

	older := fixtureRun(t, "older")
	newer := fixtureRun(t, "newer")
	newer.Created = older.Created.Add(time.Hour)
	require.NoError(t, j.RecordRun(ctx, older))
	require.NoError(t, j.RecordRun(ctx, newer))

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].RunID)
	assert.Equal(t, "older", runs[1].RunID)
	assert.Equal(t, 2, runs[0].TotalTrades)
}

func TestSQLiteListEquity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	defer j.Close()

	r := fixtureRun(t, "eq")
	require.NoError(t, j.RecordRun(ctx, r))

	pts, err := j.ListEquity(ctx, "eq", "AAA")
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.True(t, pts[0].Time.Equal(t0.AddDate(0, 0, 3)))
	assert.InDelta(t, 100097.9, pts[0].Equity, 1e-6)
	assert.InDelta(t, 0.0, pts[0].DrawdownPct, 1e-9)

	pts, err = j.ListEquity(ctx, "eq", "BBB")
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Less(t, pts[0].DrawdownPct, 0.0)

	pts, err = j.ListEquity(ctx, "eq", "BAD")
	require.NoError(t, err)
	assert.Empty(t, pts)
}
