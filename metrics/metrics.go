// Package metrics derives risk and return statistics from a finished trade
// ledger. Everything here is a pure function of the closed trades.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
)

// ErrInsufficientData is returned when there are no closed trades to
// measure. The accompanying Metrics value is empty, never NaN-filled.
var ErrInsufficientData = errors.New("insufficient data: no closed trades")

// SessionHours is the regular-session length used to scale intraday bars.
const SessionHours = 6.5

// Params are the run-level inputs metrics depend on.
type Params struct {
	InitialCapital     float64
	BarInterval        market.Interval
	TradingDaysPerYear float64
}

// DefaultParams matches a 100k account on daily bars.
func DefaultParams() Params {
	return Params{
		InitialCapital:     100000,
		BarInterval:        market.Daily,
		TradingDaysPerYear: 252,
	}
}

func (p Params) validate() error {
	if p.InitialCapital <= 0 {
		return fmt.Errorf("metrics: initial capital must be positive, got %v", p.InitialCapital)
	}
	if p.BarInterval <= 0 {
		return fmt.Errorf("metrics: bar interval must be positive")
	}
	if p.TradingDaysPerYear <= 0 {
		return fmt.Errorf("metrics: trading days per year must be positive, got %v", p.TradingDaysPerYear)
	}
	return nil
}

// Metrics is the flat summary of one ledger.
type Metrics struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // percent

	GrossProfit  float64
	GrossLoss    float64
	NetPnL       float64
	ProfitFactor float64 // +Inf when there are no losing trades

	TotalReturnPct      float64
	AnnualizedReturnPct float64
	SharpeRatio         float64
	MaxDrawdownPct      float64 // <= 0, percentage points of initial capital

	PeakEquityPct  float64
	FinalEquityPct float64
	FinalEquity    float64

	AvgTradeDuration      float64 // bar units
	AvgTradeDurationHours float64
	AverageTradeValue     float64

	FirstExit  time.Time
	LastExit   time.Time
	DaysActive int
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time        time.Time
	Equity      float64
	EquityPct   float64
	DrawdownPct float64
}

// Compute derives Metrics from trades. Open trades are ignored.
func Compute(trades []ledger.Trade, p Params) (Metrics, error) {
	if err := p.validate(); err != nil {
		return Metrics{}, err
	}

	closed := byExit(ledger.Closed(trades))
	if len(closed) == 0 {
		return Metrics{}, ErrInsufficientData
	}

	var m Metrics
	m.TotalTrades = len(closed)

	returns := make([]float64, 0, len(closed))
	var durSum, valueSum float64
	for _, t := range closed {
		pnl := t.PnLAfterCost
		switch {
		case pnl > 0:
			m.Wins++
			m.GrossProfit += pnl
		case pnl < 0:
			m.Losses++
			m.GrossLoss += pnl
		}
		m.NetPnL += pnl
		returns = append(returns, t.Return(p.InitialCapital))
		durSum += t.Duration
		valueSum += t.Value()
	}

	n := float64(len(closed))
	m.WinRate = float64(m.Wins) / n * 100
	m.ProfitFactor = ProfitFactor(m.GrossProfit, m.GrossLoss)
	m.AvgTradeDuration = durSum / n
	m.AvgTradeDurationHours = m.AvgTradeDuration * p.BarInterval.Minutes() / 60
	m.AverageTradeValue = valueSum / n
	m.TotalReturnPct = m.NetPnL / p.InitialCapital * 100
	m.SharpeRatio = Sharpe(returns, BarsPerYear(p.BarInterval, p.TradingDaysPerYear))

	curve := equityCurve(closed, p.InitialCapital)
	last := curve[len(curve)-1]
	m.FinalEquity = last.Equity
	m.FinalEquityPct = last.EquityPct
	m.PeakEquityPct = 100
	for _, pt := range curve {
		m.PeakEquityPct = math.Max(m.PeakEquityPct, pt.EquityPct)
	}

	daily := DailyEquity(curve, p.InitialCapital)
	m.MaxDrawdownPct = MaxDrawdown(daily)
	m.FirstExit = curve[0].Time
	m.LastExit = last.Time
	m.DaysActive = daysActive(daily)
	m.AnnualizedReturnPct = AnnualizedReturn(daily[len(daily)-1].Equity/p.InitialCapital-1, p.TradingDaysPerYear, m.DaysActive)

	return m, nil
}

// EquityCurve returns one point per closed trade, ordered by exit time.
func EquityCurve(trades []ledger.Trade, initialCapital float64) []EquityPoint {
	return equityCurve(byExit(ledger.Closed(trades)), initialCapital)
}

func equityCurve(closed []ledger.Trade, capital float64) []EquityPoint {
	out := make([]EquityPoint, 0, len(closed))
	equity := capital
	for _, t := range closed {
		equity += t.PnLAfterCost
		out = append(out, EquityPoint{
			Time:      *t.ExitTime,
			Equity:    equity,
			EquityPct: equity / capital * 100,
		})
	}
	applyDrawdown(out)
	return out
}

// DailyEquity resamples a trade-indexed curve to one point per calendar day,
// holding the last known equity flat on days without exits.
func DailyEquity(curve []EquityPoint, initialCapital float64) []EquityPoint {
	if len(curve) == 0 {
		return nil
	}
	first := startOfDay(curve[0].Time)
	last := startOfDay(curve[len(curve)-1].Time)

	var out []EquityPoint
	j := 0
	equity := initialCapital
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		next := d.AddDate(0, 0, 1)
		for j < len(curve) && curve[j].Time.Before(next) {
			equity = curve[j].Equity
			j++
		}
		out = append(out, EquityPoint{
			Time:      d,
			Equity:    equity,
			EquityPct: equity / initialCapital * 100,
		})
	}
	applyDrawdown(out)
	return out
}

// applyDrawdown sets DrawdownPct = EquityPct - running max, where the running
// max starts at 100 (the initial capital).
func applyDrawdown(pts []EquityPoint) {
	peak := 100.0
	for i := range pts {
		peak = math.Max(peak, pts[i].EquityPct)
		pts[i].DrawdownPct = pts[i].EquityPct - peak
	}
}

// MaxDrawdown is the most negative DrawdownPct in the series (0 if empty).
func MaxDrawdown(pts []EquityPoint) float64 {
	dd := 0.0
	for _, p := range pts {
		dd = math.Min(dd, p.DrawdownPct)
	}
	return dd
}

// BarsPerYear converts trading days into bars for the interval. Daily and
// longer bars count calendar multiples of a day; intraday bars count only the
// regular session.
func BarsPerYear(iv market.Interval, tradingDays float64) float64 {
	d := iv.Duration()
	if d <= 0 {
		return 0
	}
	if d >= 24*time.Hour {
		return tradingDays * float64(24*time.Hour) / float64(d)
	}
	return tradingDays * SessionHours * float64(time.Hour) / float64(d)
}

// Sharpe is mean/stdev of per-trade returns scaled by sqrt(barsPerYear). It is
// 0 when the sample standard deviation is 0 or undefined.
func Sharpe(returns []float64, barsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(ss / float64(len(returns)-1))
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return mean / sd * math.Sqrt(barsPerYear)
}

// AnnualizedReturn compounds totalReturn (a fraction) over daysActive.
func AnnualizedReturn(totalReturn, tradingDays float64, daysActive int) float64 {
	if daysActive < 1 {
		daysActive = 1
	}
	base := 1 + totalReturn
	if base <= 0 {
		return -100
	}
	return (math.Pow(base, tradingDays/float64(daysActive)) - 1) * 100
}

// ProfitFactor is gross profit over absolute gross loss, +Inf without losses.
func ProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		return math.Inf(1)
	}
	return grossProfit / math.Abs(grossLoss)
}

func daysActive(daily []EquityPoint) int {
	if len(daily) == 0 {
		return 1
	}
	d := int(daily[len(daily)-1].Time.Sub(daily[0].Time).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}

// byExit orders trades by exit time, dropping any without one.
func byExit(trades []ledger.Trade) []ledger.Trade {
	out := make([]ledger.Trade, 0, len(trades))
	for _, t := range trades {
		if t.ExitTime != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExitTime.Before(*out[j].ExitTime)
	})
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
