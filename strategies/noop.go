package strategies

import (
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// NoopStrategy never trades. Useful as a baseline and for data checks.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) Indicators() []indicators.Spec { return nil }

func (NoopStrategy) Decide(market.Bar, indicators.Snapshot, backtest.Position) (*backtest.OrderIntent, error) {
	return nil, nil
}
