package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

// ADX implements Wilder's Average Directional Index (trend strength, 0-100).
//
//	adx := indicators.NewADX(14)
//	for _, b := range bars {
//		adx.Update(b)
//	}
//	if adx.Ready() && adx.Value() >= 20 { ... }
//
// It needs 2*period+1 bars: one to seed the previous bar, period to seed the
// smoothed ranges and period DX values to seed the index itself.
type ADX struct {
	period int

	prev    market.Bar
	hasPrev bool

	tr, pdm, mdm float64

	adx   float64
	dxSum float64
	count int
	ready bool
}

func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string { return fmt.Sprintf("ADX(%d)", a.period) }

func (a *ADX) Warmup() int { return 2*a.period + 1 }

func (a *ADX) Reset() {
	*a = ADX{period: a.period}
}

func (a *ADX) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev = b
		a.hasPrev = true
		a.count = 1
		return
	}

	up := b.High - a.prev.High
	down := a.prev.Low - b.Low
	var pdm, mdm float64
	if up > down && up > 0 {
		pdm = up
	}
	if down > up && down > 0 {
		mdm = down
	}
	tr := trueRange(b, a.prev)
	a.prev = b
	a.count++

	p := float64(a.period)
	if a.count <= a.period+1 {
		a.tr += tr
		a.pdm += pdm
		a.mdm += mdm
		if a.count == a.period+1 {
			a.tr /= p
			a.pdm /= p
			a.mdm /= p
		}
		return
	}

	a.tr = (a.tr*(p-1) + tr) / p
	a.pdm = (a.pdm*(p-1) + pdm) / p
	a.mdm = (a.mdm*(p-1) + mdm) / p

	dx := 0.0
	if a.tr > 0 {
		pdi := 100 * a.pdm / a.tr
		mdi := 100 * a.mdm / a.tr
		if den := pdi + mdi; den > 0 {
			dx = 100 * math.Abs(pdi-mdi) / den
		}
	}

	if a.ready {
		a.adx = (a.adx*(p-1) + dx) / p
		return
	}
	a.dxSum += dx
	if a.count == 2*a.period+1 {
		a.adx = a.dxSum / p
		a.ready = true
	}
}

func (a *ADX) Ready() bool { return a.ready }

func (a *ADX) Value() float64 {
	if !a.ready {
		return math.NaN()
	}
	return a.adx
}

// DirectionalIndex is the ADX column over bars.
func DirectionalIndex(bars []market.Bar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	a := NewADX(period)
	out := make([]float64, len(bars))
	for i, b := range bars {
		a.Update(b)
		out[i] = a.Value()
	}
	return out, nil
}
