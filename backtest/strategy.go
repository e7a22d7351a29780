package backtest

import (
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// Strategy decides, bar by bar, whether to enter or leave a position. It
// sees the current bar, indicator values computed from bars up to and
// including it, and a copy of the open position (flat when Size is 0).
// A nil intent means do nothing.
type Strategy interface {
	Name() string
	Indicators() []indicators.Spec
	Decide(bar market.Bar, snap indicators.Snapshot, pos Position) (*OrderIntent, error)
}

// StrategyFactory builds a fresh strategy per instrument so workers share
// no state.
type StrategyFactory func() (Strategy, error)

// Observer receives simulator events. Implementations must be safe for use
// from several simulators at once.
type Observer interface {
	BarProcessed(symbol string)
	OrderFilled(symbol string, opening bool)
	TradeClosed(symbol string, pnlAfterCost float64)
	Fault(symbol string)
}

type nopObserver struct{}

func (nopObserver) BarProcessed(string)         {}
func (nopObserver) OrderFilled(string, bool)    {}
func (nopObserver) TradeClosed(string, float64) {}
func (nopObserver) Fault(string)                {}
