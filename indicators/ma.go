package indicators

import (
	"fmt"
	"math"
)

// Series functions return one value per input, NaN while warming up. Each
// output at index i is computed from inputs [0..i] only.

// Run feeds values through acc and collects its output column. NaN inputs
// are skipped, so accumulators can be chained onto a warming-up column.
func Run(acc Accumulator, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		acc.Update(v)
		out[i] = acc.Value()
	}
	return out
}

// SMA is the simple moving average column.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	return Run(NewMA(period), values), nil
}

// EMA is the exponential moving average column.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	return Run(NewEMA(period), values), nil
}

// Highest is the rolling maximum column (Donchian upper band).
func Highest(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	return Run(NewHighest(period), values), nil
}

// Lowest is the rolling minimum column (Donchian lower band).
func Lowest(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	return Run(NewLowest(period), values), nil
}

// MACDLines holds the three MACD columns.
type MACDLines struct {
	MACD   []float64
	Signal []float64
	Hist   []float64
}

// MACD computes fast-minus-slow with an EMA signal line. When fastSMA is set
// the fast leg is a simple moving average instead of an EMA.
func MACD(values []float64, fast, slow, signal int, fastSMA bool) (MACDLines, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDLines{}, fmt.Errorf("macd periods must be positive, got %d/%d/%d", fast, slow, signal)
	}
	if fast >= slow {
		return MACDLines{}, fmt.Errorf("macd fast period %d must be below slow %d", fast, slow)
	}

	var fastAcc Accumulator = NewEMA(fast)
	if fastSMA {
		fastAcc = NewMA(fast)
	}
	f := Run(fastAcc, values)
	s := Run(NewEMA(slow), values)

	line := make([]float64, len(values))
	for i := range values {
		line[i] = f[i] - s[i]
	}
	sig := Run(NewEMA(signal), line)

	hist := make([]float64, len(values))
	for i := range values {
		hist[i] = line[i] - sig[i]
	}
	return MACDLines{MACD: line, Signal: sig, Hist: hist}, nil
}

// VolumeOscillator is (SMA(short) - SMA(long)) / SMA(long).
func VolumeOscillator(volume []float64, short, long int) ([]float64, error) {
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("volume oscillator needs 0 < short < long, got %d/%d", short, long)
	}
	s := Run(NewMA(short), volume)
	l := Run(NewMA(long), volume)
	out := make([]float64, len(volume))
	for i := range volume {
		if l[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (s[i] - l[i]) / l[i]
	}
	return out, nil
}
