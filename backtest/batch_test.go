package backtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

func TestRunBatch_IsolatesFailures(t *testing.T) {
	t.Parallel()

	good := mustSeries(t, "AAA",
		bar(day(0), 99, 101, 98, 100),
		bar(day(1), 100, 106, 99, 105),
		bar(day(2), 110, 117, 109, 116),
	)
	quiet := mustSeries(t, "QQQ", flatBar(day(10), 50), flatBar(day(11), 51))

	load := func(_ context.Context, sym string) (*market.Series, error) {
		switch sym {
		case "AAA":
			return good, nil
		case "QQQ":
			return quiet, nil
		case "BAD":
			return nil, &market.DataError{Symbol: sym, Index: 7, Reason: "duplicate timestamp"}
		}
		return nil, fmt.Errorf("no data for %s", sym)
	}

	obs := &countingObserver{}
	res, err := RunBatch(context.Background(), Batch{
		Symbols: []string{"AAA", "BAD", "QQQ", "ZZZ"},
		Load:    load,
		NewStrategy: func() (Strategy, error) {
			return enterOnce(day(0), bracketBuy), nil
		},
		Policy:  DefaultPolicy(),
		Workers: 2,
		Options: []Option{WithObserver(obs)},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 4)

	byStatus := map[string]Status{}
	for _, r := range res.Results {
		byStatus[r.Symbol] = r.Status
	}
	assert.Equal(t, map[string]Status{
		"AAA": StatusOK,
		"BAD": StatusDataError,
		"QQQ": StatusNoTrades,
		"ZZZ": StatusFailed,
	}, byStatus)

	assert.Equal(t, "AAA", res.Results[0].Symbol)
	assert.NoError(t, res.Results[0].Err)
	assert.ErrorIs(t, res.Results[1].Err, ErrData)
	assert.ErrorIs(t, res.Results[2].Err, metrics.ErrInsufficientData)

	assert.Equal(t, 2, res.Failed())
	assert.Equal(t, "2 errors out of 4 symbols", res.Summary())

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "AAA-000001", res.Trades[0].TradeID)

	m, err := res.Metrics(metrics.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalTrades)

	assert.Equal(t, 5, obs.bars)
	assert.Equal(t, 1, obs.trades)
}

func TestRunBatch_MergesInEntryOrder(t *testing.T) {
	t.Parallel()

	mk := func(sym string, offset int) *market.Series {
		return mustSeries(t, sym,
			flatBar(day(offset), 100),
			flatBar(day(offset+1), 101),
			flatBar(day(offset+2), 102),
		)
	}
	data := map[string]*market.Series{
		"CCC": mk("CCC", 2),
		"AAA": mk("AAA", 0),
		"BBB": mk("BBB", 1),
	}

	res, err := RunBatch(context.Background(), Batch{
		Symbols: []string{"CCC", "AAA", "BBB"},
		Load: func(_ context.Context, sym string) (*market.Series, error) {
			return data[sym], nil
		},
		NewStrategy: func() (Strategy, error) {
			return &scriptStrategy{fn: alwaysLong}, nil
		},
		Policy: DefaultPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed())

	var syms []string
	for _, tr := range res.Trades {
		syms = append(syms, tr.Symbol)
	}
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, syms)
	assert.Equal(t, "CCC", res.Results[0].Symbol)
}

func TestRunBatch_Configuration(t *testing.T) {
	t.Parallel()

	_, err := RunBatch(context.Background(), Batch{Symbols: []string{"A"}})
	assert.ErrorIs(t, err, ErrConfiguration)

	bad := DefaultPolicy()
	bad.FillPrice = "vwap"
	_, err = RunBatch(context.Background(), Batch{
		Symbols:     []string{"A"},
		Load:        func(context.Context, string) (*market.Series, error) { return nil, nil },
		NewStrategy: func() (Strategy, error) { return &scriptStrategy{}, nil },
		Policy:      bad,
	})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRunBatch_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	series := mustSeries(t, "A", flatBar(day(0), 100))
	res, err := RunBatch(ctx, Batch{
		Symbols: []string{"A", "B"},
		Load: func(context.Context, string) (*market.Series, error) {
			return series, nil
		},
		NewStrategy: func() (Strategy, error) { return &scriptStrategy{}, nil },
		Policy:      DefaultPolicy(),
	})
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range res.Results {
		assert.Equal(t, StatusFailed, r.Status)
	}
}
