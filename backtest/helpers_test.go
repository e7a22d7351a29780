package backtest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return day0.AddDate(0, 0, i) }

func bar(t time.Time, o, h, l, c float64) market.Bar {
	return market.Bar{Time: t, Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func flatBar(t time.Time, px float64) market.Bar {
	return bar(t, px, px+1, px-1, px)
}

func mustSeries(t *testing.T, symbol string, bars ...market.Bar) *market.Series {
	t.Helper()
	s, err := market.NewSeries(symbol, market.Daily, bars)
	require.NoError(t, err)
	return s
}

// scriptStrategy delegates to fn and remembers when it was consulted.
type scriptStrategy struct {
	specs []indicators.Spec
	fn    func(b market.Bar, snap indicators.Snapshot, pos Position) (*OrderIntent, error)
	calls []time.Time
}

func (s *scriptStrategy) Name() string                  { return "script" }
func (s *scriptStrategy) Indicators() []indicators.Spec { return s.specs }

func (s *scriptStrategy) Decide(b market.Bar, snap indicators.Snapshot, pos Position) (*OrderIntent, error) {
	s.calls = append(s.calls, b.Time)
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(b, snap, pos)
}

// enterOnce buys with the given bracket on the bar at t and never exits.
func enterOnce(t time.Time, intent func() *OrderIntent) *scriptStrategy {
	return &scriptStrategy{
		fn: func(b market.Bar, _ indicators.Snapshot, pos Position) (*OrderIntent, error) {
			if pos.Flat() && b.Time.Equal(t) {
				return intent(), nil
			}
			return nil, nil
		},
	}
}

func alwaysLong(_ market.Bar, _ indicators.Snapshot, pos Position) (*OrderIntent, error) {
	if pos.Flat() {
		return Buy("always"), nil
	}
	return nil, nil
}

func stepAll(t *testing.T, sim *Simulator, bars ...market.Bar) {
	t.Helper()
	for _, b := range bars {
		require.NoError(t, sim.Step(b, indicators.Snapshot{}))
	}
}

type countingObserver struct {
	mu     sync.Mutex
	bars   int
	opens  int
	closes int
	trades int
	pnl    float64
	faults int
}

func (c *countingObserver) BarProcessed(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars++
}

func (c *countingObserver) OrderFilled(_ string, opening bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opening {
		c.opens++
	} else {
		c.closes++
	}
}

func (c *countingObserver) TradeClosed(_ string, pnl float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades++
	c.pnl += pnl
}

func (c *countingObserver) Fault(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults++
}
