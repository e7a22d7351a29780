package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

// trueRange is the widest of high-low and the gaps from the previous close.
func trueRange(cur, prev market.Bar) float64 {
	highLow := cur.High - cur.Low
	highClose := math.Abs(cur.High - prev.Close)
	lowClose := math.Abs(cur.Low - prev.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// ATR is a streaming Average True Range with Wilder smoothing. It is fed
// whole bars since the true range needs the previous close.
type ATR struct {
	period  int
	atr     float64
	count   int
	sum     float64
	prev    market.Bar
	hasPrev bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup is period+1 bars: the first bar only seeds the previous close.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Reset() {
	a.atr, a.sum = 0, 0
	a.count = 0
	a.hasPrev = false
}

func (a *ATR) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev = b
		a.hasPrev = true
		return
	}
	tr := trueRange(b, a.prev)
	a.prev = b

	if a.count < a.period {
		a.sum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.sum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return math.NaN()
	}
	return a.atr
}

// AverageTrueRange is the ATR column over bars.
func AverageTrueRange(bars []market.Bar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	a := NewATR(period)
	out := make([]float64, len(bars))
	for i, b := range bars {
		a.Update(b)
		out[i] = a.Value()
	}
	return out, nil
}
